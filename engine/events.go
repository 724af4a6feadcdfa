package engine

import (
	"github.com/adamant-labs/fragment/shard"
	"github.com/google/uuid"
)

// Event is a one-line message queued for a process's next rendered view.
type Event struct {
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	TimestampMS int64  `json:"timestamp_ms"`
}

func (e *TickEngine) emitProcessEvent(pid uuid.UUID, ev Event) {
	e.processEvents[pid] = append(e.processEvents[pid], ev)
}

func (e *TickEngine) emitShardEvent(s *shard.State, ev Event) {
	for _, pid := range s.ProcessOrder {
		e.emitProcessEvent(pid, ev)
	}
}
