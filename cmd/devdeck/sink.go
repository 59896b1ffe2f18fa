package main

import (
	"io"
	"sync"

	"pkt.systems/devdeck/core"
	"pkt.systems/devdeck/schema"
)

// writerSink copies terminal data to a writer, for CLI commands that run
// jobs or mirror the UI channel to the console.
type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

func newWriterSink(w io.Writer) *writerSink {
	return &writerSink{w: w}
}

func (s *writerSink) Publish(event schema.UIEvent) {
	if event.Type != schema.UIEventTerminalData || event.Data == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, event.Data)
}

var _ core.EventSink = (*writerSink)(nil)
