package server

import (
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"example.com/pvdxlink/internal/report"
)

func dialWS(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebsocketDecode(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	conn := dialWS(t, ts.URL)
	raw := sampleUplink(t)

	if err := conn.WriteMessage(websocket.BinaryMessage, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply struct {
		Summary *report.Summary `json:"summary"`
		Error   string          `json:"error"`
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Error != "" || reply.Summary == nil {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.Summary.Callsign != "PVDX01" || len(reply.Summary.Commands) != 2 {
		t.Fatalf("summary = %+v", reply.Summary)
	}
}

func TestWebsocketErrors(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	conn := dialWS(t, ts.URL)
	tests := []struct {
		msgType int
		data    []byte
		want    string
	}{
		{websocket.TextMessage, []byte("hello"), "binary"},
		{websocket.BinaryMessage, []byte{1, 2, 3}, "truncated"},
	}
	for _, tc := range tests {
		if err := conn.WriteMessage(tc.msgType, tc.data); err != nil {
			t.Fatalf("write: %v", err)
		}
		var reply struct {
			Error string `json:"error"`
		}
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("read: %v", err)
		}
		if !strings.Contains(reply.Error, tc.want) {
			t.Fatalf("error = %q, want to contain %q", reply.Error, tc.want)
		}
	}
}
