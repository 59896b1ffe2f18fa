package core

import (
	"strings"

	"pkt.systems/devdeck/schema"
)

// EventSink receives messages destined for the UI channel.
type EventSink interface {
	Publish(event schema.UIEvent)
}

// EmitOutput publishes a chunk of process output.
func EmitOutput(sink EventSink, source schema.OutputSource, jobID schema.JobID, text string) {
	if sink == nil || text == "" {
		return
	}
	sink.Publish(schema.UIEvent{
		Type:   schema.UIEventTerminalData,
		Source: source,
		JobID:  jobID,
		Data:   text,
	})
}

// EmitDiagnostic publishes a synthesized status line terminated by a newline.
func EmitDiagnostic(sink EventSink, source schema.OutputSource, jobID schema.JobID, line string) {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	EmitOutput(sink, source, jobID, line)
}
