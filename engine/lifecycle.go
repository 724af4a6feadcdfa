package engine

import (
	"context"

	"github.com/adamant-labs/fragment/geometry"
	"github.com/adamant-labs/fragment/shard"
	"github.com/google/uuid"
)

// resolveGateInteractions applies STABLE (survival) and GHOST (transfer)
// effects for every alive process now standing on a gate tile.
func (e *TickEngine) resolveGateInteractions(ctx context.Context, s *shard.State) {
	for _, pid := range append([]uuid.UUID(nil), s.ProcessOrder...) {
		proc, ok := s.Processes[pid]
		if !ok || !proc.Alive {
			continue
		}
		gate := s.GateAt(proc.Pos)
		if gate == nil {
			continue
		}
		switch gate.Kind {
		case shard.GateStable:
			e.store.RecordSurvival(ctx, proc.CallSign)
			s.TickEvents.Survivals = append(s.TickEvents.Survivals, proc.ID)
			s.Counters.TotalSurvivals++
			e.removeProcess(s, proc, false)
		case shard.GateGhost:
			e.store.RecordGhost(ctx, proc.CallSign)
			s.TickEvents.Ghosts = append(s.TickEvents.Ghosts, proc.ID)
			s.Counters.TotalGhosts++
			e.transferProcess(ctx, s, proc)
		}
	}
}

// killProcess marks proc dead, records the death, notifies the shard, and
// removes it, leaving an EchoTile behind.
func (e *TickEngine) killProcess(ctx context.Context, s *shard.State, proc *shard.Process) {
	proc.Alive = false
	e.store.RecordDeath(ctx, proc.CallSign)
	s.TickEvents.Kills = append(s.TickEvents.Kills, proc.ID)
	s.Counters.TotalKills++
	e.emitShardEvent(s, Event{
		Kind:        "static_burst",
		Message:     "[GLOBAL_ALRT]: ######## STATIC BURST DETECTED ########",
		TimestampMS: shard.NowMS(),
	})
	e.resetWatchdog(s, "kill")
	e.recordEcho(s, proc.Pos)
	e.removeProcess(s, proc, false)
}

// removeProcess deletes proc from the shard and process/token indexes,
// dropping its session tokens unless preserveTokens (used by gate
// transfer, which remaps them instead).
func (e *TickEngine) removeProcess(s *shard.State, proc *shard.Process, preserveTokens bool) {
	s.RemoveProcess(proc.ID)
	delete(e.processShard, proc.ID)
	delete(e.processEvents, proc.ID)
	if !preserveTokens {
		for token, entry := range e.sessionTokens {
			if entry.processID == proc.ID {
				delete(e.sessionTokens, token)
			}
		}
	}
}

func (e *TickEngine) recordEcho(s *shard.State, pos geometry.Tile) {
	s.EchoTiles = append(s.EchoTiles, shard.EchoTile{Pos: pos, Tick: s.Tick})
	e.emitShardEvent(s, Event{
		Kind:        "system",
		Message:     "[WARN]: SECTOR CORRUPTED.",
		TimestampMS: shard.NowMS(),
	})
}

// transferProcess moves proc's identity (call sign, session token) into a
// freshly spawned process in another shard (the least-populated other
// shard with capacity, or a newly created one), preserving the original
// token's issued-at time.
func (e *TickEngine) transferProcess(ctx context.Context, s *shard.State, proc *shard.Process) {
	oldID := proc.ID
	callSign := proc.CallSign
	e.removeProcess(s, proc, true)

	var newShard *shard.State
	for _, id := range e.shardOrder {
		cand, ok := e.shards[id]
		if !ok || cand.ID == s.ID || len(cand.Processes) >= e.conf.MaxProcessesPerShard {
			continue
		}
		if newShard == nil || len(cand.Processes) < len(newShard.Processes) {
			newShard = cand
		}
	}
	if newShard == nil {
		created, err := e.createShardLocked(ctx)
		if err != nil {
			e.conf.Logger().Error("engine: ghost-gate transfer could not find a shard", "error", err)
			return
		}
		newShard = created
	}
	pos, err := e.randomEmptyTile(newShard.AlivePositions(), forbiddenTiles(newShard))
	if err != nil {
		e.conf.Logger().Error("engine: ghost-gate transfer could not place process", "error", err)
		return
	}
	newProc := &shard.Process{
		ID:             uuid.New(),
		CallSign:       callSign,
		Pos:            pos,
		Buffered:       shard.Idle,
		Alive:          true,
		LastSprintTick: -1,
	}
	newShard.AddProcess(newProc)
	newShard.Counters.TotalProcesses++
	e.processShard[newProc.ID] = newShard.ID
	e.processEvents[newProc.ID] = nil

	for token, entry := range e.sessionTokens {
		if entry.processID == oldID {
			e.sessionTokens[token] = sessionEntry{processID: newProc.ID, issuedAt: entry.issuedAt}
		}
	}
}
