package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	if s.deps.Events == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	log := pslog.Ctx(r.Context()).With("remote", clientIP(r))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	if lastID == 0 {
		lastID = parseUint(r.URL.Query().Get("after"))
	}

	// Subscribe before replaying so nothing published in between is lost;
	// the high-water mark filters duplicates.
	ch, unsubscribe, current := s.deps.Events.Subscribe()
	defer unsubscribe()

	// An id from a previous host run is ahead of this bus; start live.
	if lastID > current {
		lastID = current
	}
	sent := current
	if lastID > 0 {
		sent = s.catchUp(w, log, lastID)
		flusher.Flush()
	}

	notify := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "seq", sent)
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				log.Info("http stream closed")
				return
			}
			if event.Seq > sent+1 {
				// The subscriber buffer overflowed; recover the missed
				// events from history before this one.
				sent = s.catchUp(w, log, sent)
			}
			if event.Seq > sent {
				sent = event.Seq
				_ = writeSSEvent(w, event)
			}
			flusher.Flush()
		}
	}
}

// catchUp writes every retained event after sent and returns the new
// high-water mark. Events already evicted from history are reported to the
// client as a single host diagnostic.
func (s *Server) catchUp(w http.ResponseWriter, log pslog.Logger, sent uint64) uint64 {
	for _, event := range s.deps.Events.Replay(sent) {
		if event.Seq <= sent {
			continue
		}
		if lost := event.Seq - sent - 1; lost > 0 {
			log.Warn("http stream events lost", "after", sent, "lost", lost)
			_ = writeSSEvent(w, schema.UIEvent{
				Type:      schema.UIEventTerminalData,
				Source:    schema.SourceHost,
				Data:      fmt.Sprintf("\n[warning] %d output events were dropped\n", lost),
				Timestamp: time.Now(),
			})
		}
		_ = writeSSEvent(w, event)
		sent = event.Seq
	}
	return sent
}
