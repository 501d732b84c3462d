package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"example.com/pvdxlink/internal/common"
	"example.com/pvdxlink/internal/report"
	"example.com/pvdxlink/internal/uplink"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16384,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsReply struct {
	Summary *report.Summary `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// serveWS decodes every binary message as an uplink packet and answers with
// one JSON text message per request, in order.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		common.Logf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.opts.MaxBodyBytes)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				common.Logf("websocket read: %v", err)
			}
			return
		}
		if err := conn.WriteJSON(s.decodeMessage(msgType, data)); err != nil {
			common.Logf("websocket write: %v", err)
			return
		}
	}
}

func (s *Server) decodeMessage(msgType int, data []byte) wsReply {
	if msgType != websocket.BinaryMessage {
		s.metrics.AddFailure()
		return wsReply{Error: fmt.Sprintf("expected a binary message, got type %d", msgType)}
	}
	pkt, err := uplink.Decode(data)
	if err != nil {
		s.metrics.AddFailure()
		return wsReply{Error: err.Error()}
	}
	s.metrics.AddDecoded(len(data))
	sum := report.Summarize(data, pkt, nil)
	return wsReply{Summary: &sum}
}
