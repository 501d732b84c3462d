package server

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"example.com/pvdxlink/internal/common"
	"example.com/pvdxlink/internal/plan"
	"example.com/pvdxlink/internal/report"
	"example.com/pvdxlink/internal/spp"
	"example.com/pvdxlink/internal/uplink"
)

var (
	errMethodNotAllowed = errors.New("method not allowed")
	errEmptyBody        = errors.New("empty request body")
	errBitmapFile       = errors.New("bitmapFile is not accepted over HTTP; send bitmapBase64")
)

// Server coordinates HTTP handlers and keeps the uplinks and reports it
// produced available for download.
type Server struct {
	artifacts *ArtifactStore
	workDir   string
	opts      Options
	seq       *spp.SequenceCounter
	metrics   *common.Metrics
}

// Artifact represents a file generated by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer constructs a Server rooted at a temporary workspace directory
// under opts.StorageDir.
func NewServer(opts Options) (*Server, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.StorageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(opts.StorageDir, "uplinkd-")
	if err != nil {
		return nil, err
	}
	return &Server{
		artifacts: &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:   workDir,
		opts:      opts,
		seq:       spp.NewSequenceCounter(),
		metrics:   opts.Metrics,
	}, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

// Metrics returns the counters the server updates.
func (s *Server) Metrics() *common.Metrics {
	return s.metrics
}

func (s *Server) saveArtifact(pattern, displayName, contentType, kind string, data []byte) (Artifact, error) {
	f, err := os.CreateTemp(s.workDir, pattern)
	if err != nil {
		return Artifact{}, err
	}
	path := f.Name()
	f.Close()
	if err := common.WriteFile(path, data); err != nil {
		os.Remove(path)
		return Artifact{}, err
	}
	return s.addArtifact(path, displayName, contentType, kind)
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	id := randomID()
	art := Artifact{
		ID:          id,
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[id] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return nil, errEmptyBody
	}
	return body, nil
}

// handleBuild turns a YAML or JSON plan into the bytes to transmit.
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, bodyStatus(err), err)
		return
	}
	p, err := plan.Parse(body, "")
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	for i, e := range p.Commands {
		if e.BitmapFile != "" {
			s.fail(w, http.StatusBadRequest, fmt.Errorf("command %d: %w", i, errBitmapFile))
			return
		}
	}
	if p.Callsign == "" {
		p.Callsign = s.opts.Callsign
	}
	if p.SpacePacket == nil && s.opts.APID != nil {
		p.SpacePacket = &plan.SpacePacket{APID: *s.opts.APID}
	}
	res, err := p.Assemble(s.seq)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	sum := common.Sha256Hex(res.Bytes)
	art, err := s.saveArtifact("uplink-*.bin", "uplink-"+sum[:12]+".bin", "application/octet-stream", "uplink", res.Bytes)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, fmt.Errorf("store uplink: %w", err))
		return
	}
	s.metrics.AddEncoded(len(res.Bytes))
	common.Logf("built uplink %s: %d commands, %d bytes", art.ID, len(res.Uplink.Commands), len(res.Bytes))

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Bytes)))
	w.Header().Set("X-Uplink-SHA256", sum)
	w.Header().Set("X-Artifact-ID", art.ID)
	w.WriteHeader(http.StatusOK)
	w.Write(res.Bytes)
}

type decodeResponse struct {
	Summary  report.Summary `json:"summary"`
	Artifact *ArtifactRef   `json:"artifact,omitempty"`
}

// handleDecode decodes one uplink packet. validate=1 rejects packets whose
// headers disagree with their commands; pdf=1 also renders an uplink sheet.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, bodyStatus(err), err)
		return
	}
	pkt, err := uplink.Decode(body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	if queryBool(q.Get("validate")) {
		if err := pkt.Validate(); err != nil {
			s.fail(w, http.StatusUnprocessableEntity, err)
			return
		}
	}
	s.metrics.AddDecoded(len(body))
	resp := decodeResponse{Summary: report.Summarize(body, pkt, nil)}
	if queryBool(q.Get("pdf")) {
		art, err := s.renderPDF(resp.Summary)
		if err != nil {
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
		ref := toRef(art)
		resp.Artifact = &ref
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) renderPDF(sum report.Summary) (Artifact, error) {
	f, err := os.CreateTemp(s.workDir, "uplink-*.pdf")
	if err != nil {
		return Artifact{}, err
	}
	path := f.Name()
	f.Close()
	if err := report.SavePDF(sum, path); err != nil {
		os.Remove(path)
		return Artifact{}, fmt.Errorf("render pdf: %w", err)
	}
	return s.addArtifact(path, "uplink-"+sum.SHA256[:12]+".pdf", "application/pdf", "report")
}

type spacePacketRecord struct {
	Type    string            `json:"type"`
	Index   int               `json:"index"`
	Offset  int64             `json:"offset"`
	Header  spp.PrimaryHeader `json:"header"`
	DataHex string            `json:"dataHex,omitempty"`
	Uplink  *report.Summary   `json:"uplink,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// handleSpacePacketDecode streams one NDJSON record per space packet in the
// body. uplink=1 also decodes each data field as an uplink packet.
func (s *Server) handleSpacePacketDecode(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, bodyStatus(err), err)
		return
	}
	withUplink := queryBool(r.URL.Query().Get("uplink"))
	w.Header().Set("Content-Type", "application/x-ndjson")
	writer := NewNDJSONWriter(w)
	scanner := spp.NewScanner(bytes.NewReader(body))
	index := 0
	for scanner.Scan() {
		pkt := scanner.Packet()
		rec := spacePacketRecord{
			Type:   "packet",
			Index:  index,
			Offset: scanner.Offset() - int64(pkt.EncodedLen()),
			Header: pkt.Primary,
		}
		if withUplink {
			if inner, err := uplink.Decode(pkt.Data); err != nil {
				rec.Error = err.Error()
			} else {
				sum := report.Summarize(pkt.Data, inner, &pkt.Primary)
				rec.Uplink = &sum
			}
		} else {
			rec.DataHex = hex.EncodeToString(pkt.Data)
		}
		s.metrics.AddDecoded(pkt.EncodedLen())
		if err := writer.WriteObject(rec); err != nil {
			common.Logf("spacepacket decode: write record: %v", err)
			return
		}
		index++
	}
	if err := scanner.Err(); err != nil {
		s.metrics.AddFailure()
		_ = writer.WriteError(err)
	}
}

// CommandInfo describes one registered command.
type CommandInfo struct {
	Type uint16 `json:"type"`
	Name string `json:"name"`
	Size uint32 `json:"size"`
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CommandTable())
}

// CommandTable lists every registered command in tag order.
func CommandTable() []CommandInfo {
	kinds := uplink.Kinds()
	out := make([]CommandInfo, 0, len(kinds))
	for _, k := range kinds {
		size, _ := k.PayloadSize()
		out = append(out, CommandInfo{Type: uint16(k), Name: k.String(), Size: size})
	}
	return out
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.listArtifacts())
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, fmt.Errorf("open artifact: %w", err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, fmt.Errorf("stat artifact: %w", err))
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	disposition := fmt.Sprintf("attachment; filename=\"%s\"", art.Name)
	w.Header().Set("Content-Disposition", disposition)
	io.Copy(w, f)
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	s.metrics.AddFailure()
	writeError(w, status, err)
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		common.Logf("encode response: %v", err)
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func bodyStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func queryBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func guessContentType(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return "application/json"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func randomID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		now := time.Now().UTC()
		return fmt.Sprintf("%d%06d", now.UnixNano(), os.Getpid())
	}
	return hex.EncodeToString(b[:])
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}
