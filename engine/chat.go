package engine

import (
	"fmt"
	"sort"

	"github.com/adamant-labs/fragment/geometry"
	"github.com/adamant-labs/fragment/shard"
	"github.com/google/uuid"
)

const (
	chatArtifactStatic = "[STATIC]"
	chatArtifactDots   = "..."
)

// handleBroadcast records an immediate shard-wide message, queues a
// [BCAST] event to every process, and clears the watchdog.
func (e *TickEngine) handleBroadcast(s *shard.State, processID uuid.UUID, message string) {
	ts := shard.NowMS()
	s.Broadcasts = append(s.Broadcasts, shard.Broadcast{ProcessID: processID, Message: message, TimestampMS: ts})
	e.emitShardEvent(s, Event{Kind: "broadcast", Message: fmt.Sprintf("[BCAST] %s", message), TimestampMS: ts})
	e.resetWatchdog(s, "broadcast")
}

// handleSay records a local-chat message and delivers it to adjacent
// processes, substituting a noise artifact for the clean message per the
// burst-counter policy: once a burst starts, every following recipient in
// the burst gets noise until the counter runs out.
func (e *TickEngine) handleSay(s *shard.State, processID uuid.UUID, message string) {
	sender, ok := s.Processes[processID]
	if !ok {
		return
	}
	ts := shard.NowMS()
	walls := s.WallSet()

	var recipients []*shard.Process
	for _, pid := range s.ProcessOrder {
		proc := s.Processes[pid]
		if proc.ID == processID || !proc.Alive {
			continue
		}
		if geometry.IsAdjacent(sender.Pos, proc.Pos, walls) {
			recipients = append(recipients, proc)
		}
	}

	spatial := append([]*shard.Process(nil), recipients...)
	sort.SliceStable(spatial, func(i, j int) bool {
		return spatialOrder(sender.Pos, spatial[i].Pos) < spatialOrder(sender.Pos, spatial[j].Pos)
	})
	sayRecipients := make([]shard.SayRecipient, 0, len(spatial))
	for _, proc := range spatial {
		sayRecipients = append(sayRecipients, shard.SayRecipient{ProcessID: proc.ID, Pos: proc.Pos})
	}
	s.SayEvents = append(s.SayEvents, shard.SayEvent{
		SenderID:    processID,
		SenderPos:   sender.Pos,
		Message:     message,
		Recipients:  sayRecipients,
		TimestampMS: ts,
		Tick:        s.Tick,
	})

	byID := append([]*shard.Process(nil), recipients...)
	sort.Slice(byID, func(i, j int) bool { return byID[i].ID.String() < byID[j].ID.String() })

	for _, proc := range byID {
		if e.artifactBurst(s) {
			artifact := chatArtifactStatic
			if e.rng.IntN(2) == 1 {
				artifact = chatArtifactDots
			}
			e.emitProcessEvent(proc.ID, Event{Kind: "noise", Message: artifact, TimestampMS: ts})
			continue
		}
		text := fmt.Sprintf("[ADJACENT: %s] %s", processID, message)
		e.emitProcessEvent(proc.ID, Event{Kind: "local", Message: text, TimestampMS: ts})
	}
}

// artifactBurst reports whether the next SAY delivery should be replaced
// by noise, per the shard's burst counter: once running, it decrements to
// zero before a fresh roll is possible.
func (e *TickEngine) artifactBurst(s *shard.State) bool {
	if s.NoiseBurstRemaining > 0 {
		s.NoiseBurstRemaining--
		return true
	}
	if e.rng.Float64() < e.conf.ChatArtifactProb {
		s.NoiseBurstRemaining = e.rng.IntN(e.conf.ChatArtifactBurstMax)
		return true
	}
	return false
}

func spatialOrder(a, b geometry.Tile) int {
	dx, dy := b.X-a.X, b.Y-a.Y
	if code, ok := shard.SpatialOrder[[2]int{dx, dy}]; ok {
		return code
	}
	return 99
}
