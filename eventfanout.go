package devdeck

import (
	"pkt.systems/devdeck/core"
	"pkt.systems/devdeck/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) Publish(event schema.UIEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.Publish(event)
	}
}
