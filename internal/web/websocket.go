package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edgard/aiphone/internal/transcript"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// frame is one server-to-page WebSocket message.
type frame struct {
	Type   string            `json:"type"`
	Entry  *transcript.Entry `json:"entry,omitempty"`
	Status string            `json:"status,omitempty"`
}

// handleWebSocket pushes transcript entries with seq > after and every
// status change until the page disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	after, err := parseAfter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "after must be a non-negative integer")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "WebSocket upgrade failed", "session_id", sess.ID, "error", err)
		return
	}
	defer conn.Close()
	defer sess.Attach()()

	log := s.logger.With("session_id", sess.ID)
	log.DebugContext(r.Context(), "WebSocket connected")

	// Subscribe before reading the backlog so nothing falls in between.
	entries, cancelEntries := sess.Transcript().Subscribe()
	defer cancelEntries()
	statuses, cancelStatus := s.watchStatus()
	defer cancelStatus()

	closed := make(chan struct{})
	go readPump(conn, closed)

	lastSeq := after
	send := func(f frame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(f); err != nil {
			log.DebugContext(r.Context(), "WebSocket write failed", "error", err)
			return false
		}
		return true
	}
	sendEntry := func(e transcript.Entry) bool {
		if e.Seq <= lastSeq {
			return true
		}
		lastSeq = e.Seq
		return send(frame{Type: "entry", Entry: &e})
	}

	if !send(frame{Type: "status", Status: s.status.Current()}) {
		return
	}
	for _, e := range sess.Transcript().Entries(after) {
		if !sendEntry(e) {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-entries:
			if !ok || !sendEntry(e) {
				return
			}
		case st := <-statuses:
			if !send(frame{Type: "status", Status: st}) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			log.DebugContext(r.Context(), "WebSocket disconnected")
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readPump drains client frames so control messages are processed, and
// closes done when the connection goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
