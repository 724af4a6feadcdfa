package engine

import (
	"context"
	"sort"

	"github.com/adamant-labs/fragment/geometry"
	"github.com/adamant-labs/fragment/replay"
	"github.com/adamant-labs/fragment/shard"
)

// trimSayEvents retains only the rolling window of SAY events young
// enough for a spectator to still care about.
func (e *TickEngine) trimSayEvents(s *shard.State) {
	maxAge := int64(e.conf.SayEventTTLTicks - 1)
	kept := s.SayEvents[:0]
	for _, ev := range s.SayEvents {
		if s.Tick-ev.Tick <= maxAge {
			kept = append(kept, ev)
		}
	}
	s.SayEvents = kept
}

// trimEchoTiles retains only the rolling window of echo tiles young
// enough for a spectator to still care about.
func (e *TickEngine) trimEchoTiles(s *shard.State) {
	maxAge := int64(e.conf.EchoTTLTicks - 1)
	kept := s.EchoTiles[:0]
	for _, echo := range s.EchoTiles {
		if s.Tick-echo.Tick <= maxAge {
			kept = append(kept, echo)
		}
	}
	s.EchoTiles = kept
}

// recordReplayTick builds and persists the full per-tick snapshot through
// the persistence port.
func (e *TickEngine) recordReplayTick(ctx context.Context, s *shard.State) {
	snapshot := e.buildReplayTick(s)
	e.store.RecordReplayTick(ctx, s.ID, s.Tick, snapshot)
}

func (e *TickEngine) buildReplayTick(s *shard.State) replay.Tick {
	walls := make([][4]int, 0, len(s.Walls))
	for _, id := range sortedWallIDs(s.Walls) {
		edge := s.Walls[id].Canonical()
		walls = append(walls, [4]int{edge.A.X, edge.A.Y, edge.B.X, edge.B.Y})
	}

	gates := make([]replay.Gate, 0, len(s.Gates))
	for _, g := range s.Gates {
		gates = append(gates, replay.Gate{Pos: [2]int{g.Pos.X, g.Pos.Y}, Type: string(g.Kind)})
	}

	procs := make([]replay.Process, 0, len(s.Processes))
	for _, pid := range s.ProcessOrder {
		p := s.Processes[pid]
		procs = append(procs, replay.Process{
			ID:             p.ID,
			CallSign:       p.CallSign,
			Pos:            [2]int{p.Pos.X, p.Pos.Y},
			Alive:          p.Alive,
			BufferedCmd:    string(p.Buffered.Kind),
			BufferedArg:    p.Buffered.Arg,
			LOSLock:        p.LOSLock,
			LastSprintTick: p.LastSprintTick,
		})
	}

	defragger := replay.Defragger{
		Pos:          [2]int{s.Defragger.Pos.X, s.Defragger.Pos.Y},
		TargetReason: string(s.Defragger.TargetReason),
	}
	if s.Defragger.TargetID != nil {
		id := *s.Defragger.TargetID
		defragger.TargetID = &id
	}

	broadcasts := make([]replay.Broadcast, 0, len(s.Broadcasts))
	for _, b := range s.Broadcasts {
		broadcasts = append(broadcasts, replay.Broadcast{ProcessID: b.ProcessID, Message: b.Message, TimestampMS: b.TimestampMS})
	}

	sayEvents := make([]replay.SayEvent, 0, len(s.SayEvents))
	for _, ev := range s.SayEvents {
		recipients := make([]replay.SayRecipient, 0, len(ev.Recipients))
		for _, r := range ev.Recipients {
			recipients = append(recipients, replay.SayRecipient{ID: r.ProcessID, Pos: [2]int{r.Pos.X, r.Pos.Y}})
		}
		sayEvents = append(sayEvents, replay.SayEvent{
			SenderID:    ev.SenderID,
			SenderPos:   [2]int{ev.SenderPos.X, ev.SenderPos.Y},
			Message:     ev.Message,
			TimestampMS: ev.TimestampMS,
			Tick:        ev.Tick,
			Recipients:  recipients,
		})
	}

	echoTiles := make([]replay.EchoTile, 0, len(s.EchoTiles))
	for _, echo := range s.EchoTiles {
		echoTiles = append(echoTiles, replay.EchoTile{Pos: [2]int{echo.Pos.X, echo.Pos.Y}, Tick: echo.Tick})
	}

	return replay.Tick{
		ShardID:    s.ID,
		TickNumber: s.Tick,
		GridSize:   geometry.GridSize,
		Walls:      walls,
		Gates:      gates,
		Processes:  procs,
		Defragger:  defragger,
		Watchdog: replay.Watchdog{
			QuietTicks: s.Watchdog.QuietTicks,
			Countdown:  s.Watchdog.Countdown,
			Active:     s.Watchdog.Active,
			BonusStep:  s.Watchdog.BonusStep,
		},
		Broadcasts: broadcasts,
		SayEvents:  sayEvents,
		EchoTiles:  echoTiles,
		Events: replay.Events{
			Kills:     s.TickEvents.Kills,
			Survivals: s.TickEvents.Survivals,
			Ghosts:    s.TickEvents.Ghosts,
			Spawns:    s.TickEvents.Spawns,
		},
	}
}

func sortedWallIDs(walls map[int]geometry.WallEdge) []int {
	ids := make([]int, 0, len(walls))
	for id := range walls {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
