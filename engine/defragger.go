package engine

import (
	"context"
	"sort"

	"github.com/adamant-labs/fragment/fragconf"
	"github.com/adamant-labs/fragment/geometry"
	"github.com/adamant-labs/fragment/shard"
	"github.com/google/uuid"
)

// resolveDefragger picks this tick's target (if any) and advances the
// defragmenter 1+bonus steps toward it, killing any process it lands on.
func (e *TickEngine) resolveDefragger(ctx context.Context, s *shard.State) {
	targetID, reason, bonus := e.selectDefraggerTarget(s)
	s.Defragger.TargetID = targetID
	s.Defragger.TargetReason = reason

	steps := 1 + bonus
	for i := 0; i < steps; i++ {
		next, halt := e.defraggerNextStep(s)
		if next == nil || halt {
			break
		}
		s.Defragger.Pos = *next
		if victim := s.ProcessAt(*next); victim != nil {
			e.killProcess(ctx, s, victim)
			break
		}
	}
}

// selectDefraggerTarget applies the priority chain: broadcast inbox, then
// any currently LOS-locked process (sticky on close-quarters re-target),
// then fresh LOS acquisition, then watchdog-driven patrol bonus, then
// plain patrol.
func (e *TickEngine) selectDefraggerTarget(s *shard.State) (*uuid.UUID, shard.TargetReason, int) {
	if len(s.Broadcasts) > 0 {
		target := latestBroadcastTarget(s.Broadcasts)
		count := 0
		for _, b := range s.Broadcasts {
			if b.ProcessID == target {
				count++
			}
		}
		bonus := fibBonus(count - 1)
		id := target
		return &id, shard.ReasonBroadcast, bonus
	}

	walls := s.WallSet()

	var locked []*shard.Process
	for _, pid := range s.ProcessOrder {
		if p := s.Processes[pid]; p.Alive && p.LOSLock {
			locked = append(locked, p)
		}
	}
	if len(locked) > 0 {
		if sticky := e.stickyLockedTarget(s, locked, walls); sticky != nil {
			id := sticky.ID
			s.Defragger.LastLOSTargetID = &id
			return &id, shard.ReasonLOS, 0
		}
		target := roundRobinByID(ids(locked), s.Defragger.LastLOSTargetID)
		s.Defragger.LastLOSTargetID = &target
		return &target, shard.ReasonLOS, 0
	}

	var visible []*shard.Process
	for _, pid := range s.ProcessOrder {
		p := s.Processes[pid]
		if p.Alive && geometry.LOSClear(s.Defragger.Pos, p.Pos, walls) {
			visible = append(visible, p)
		}
	}
	if len(visible) > 0 {
		target := roundRobinByID(ids(visible), s.Defragger.LastLOSTargetID)
		for _, p := range visible {
			if p.ID == target {
				p.LOSLock = true
			}
		}
		s.Defragger.LastLOSTargetID = &target
		s.Defragger.TargetAcquiredTick = s.Tick
		e.resetWatchdog(s, "los")
		return &target, shard.ReasonLOS, 0
	}

	if s.Watchdog.Active {
		return nil, shard.ReasonWatchdog, fibBonus(s.Watchdog.BonusStep)
	}
	return nil, shard.ReasonPatrol, 0
}

// stickyLockedTarget keeps pursuing the previous LOS target when it is
// still locked, at least one other process is also locked, and it remains
// adjacent to the defragmenter — avoiding target-flapping in close
// quarters.
func (e *TickEngine) stickyLockedTarget(s *shard.State, locked []*shard.Process, walls map[uint64]geometry.WallEdge) *shard.Process {
	if s.Defragger.LastLOSTargetID == nil || len(locked) < 2 {
		return nil
	}
	for _, p := range locked {
		if p.ID == *s.Defragger.LastLOSTargetID && geometry.IsAdjacent(p.Pos, s.Defragger.Pos, walls) {
			return p
		}
	}
	return nil
}

func ids(procs []*shard.Process) []uuid.UUID {
	out := make([]uuid.UUID, len(procs))
	for i, p := range procs {
		out[i] = p.ID
	}
	return out
}

// roundRobinByID sorts ids lexicographically by string form and returns
// the first one strictly greater than after, wrapping to the smallest.
func roundRobinByID(candidateIDs []uuid.UUID, after *uuid.UUID) uuid.UUID {
	sorted := append([]uuid.UUID(nil), candidateIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })
	if after == nil {
		return sorted[0]
	}
	for _, id := range sorted {
		if id.String() > after.String() {
			return id
		}
	}
	return sorted[0]
}

func latestBroadcastTarget(broadcasts []shard.Broadcast) uuid.UUID {
	latest := broadcasts[0].TimestampMS
	for _, b := range broadcasts {
		if b.TimestampMS > latest {
			latest = b.TimestampMS
		}
	}
	var candidates []uuid.UUID
	for _, b := range broadcasts {
		if b.TimestampMS == latest {
			candidates = append(candidates, b.ProcessID)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].String() < candidates[j].String() })
	return candidates[0]
}

func fibBonus(index int) int {
	if index < 0 {
		return 0
	}
	if index >= len(fragconf.FibonacciEscalation) {
		index = len(fragconf.FibonacciEscalation) - 1
	}
	return fragconf.FibonacciEscalation[index]
}

// defraggerNextStep computes the defragmenter's next tile: uniform patrol
// if untargeted, otherwise BFS-weighted pursuit with an occasional
// suboptimal wander step. halt reports the warning-shot rule firing: the
// victim gets one tick of grace on the very tick LOS was first acquired.
func (e *TickEngine) defraggerNextStep(s *shard.State) (next *geometry.Tile, halt bool) {
	walls := s.WallSet()
	target := targetProcess(s)
	if target == nil {
		options := geometry.AdjacentTiles(s.Defragger.Pos, walls)
		if len(options) == 0 {
			return nil, false
		}
		t := options[e.rng.IntN(len(options))]
		return &t, false
	}

	distances := geometry.DistanceMap(target.Pos, walls)
	current := s.Defragger.Pos
	if _, ok := distances[current]; !ok {
		return nil, false
	}
	var neighbors []geometry.Tile
	for _, n := range geometry.AdjacentTiles(current, walls) {
		if _, ok := distances[n]; ok {
			neighbors = append(neighbors, n)
		}
	}
	if len(neighbors) == 0 {
		return nil, false
	}
	minDist := distances[neighbors[0]]
	for _, n := range neighbors {
		if distances[n] < minDist {
			minDist = distances[n]
		}
	}

	var chosen geometry.Tile
	if e.rng.Float64() < e.conf.DefraggerWanderProb {
		var candidates []geometry.Tile
		var weights []float64
		for _, n := range neighbors {
			if distances[n] <= minDist+1 {
				candidates = append(candidates, n)
				weights = append(weights, 1.0/float64(1+distances[n]))
			}
		}
		chosen = e.weightedChoice(candidates, weights)
	} else {
		var best []geometry.Tile
		for _, n := range neighbors {
			if distances[n] == minDist {
				best = append(best, n)
			}
		}
		sort.Slice(best, func(i, j int) bool { return best[i].Less(best[j]) })
		chosen = best[0]
	}

	if s.Defragger.TargetReason == shard.ReasonLOS &&
		s.Defragger.TargetAcquiredTick == s.Tick &&
		chosen == target.Pos {
		return nil, true
	}
	return &chosen, false
}

func targetProcess(s *shard.State) *shard.Process {
	if s.Defragger.TargetID == nil {
		return nil
	}
	p, ok := s.Processes[*s.Defragger.TargetID]
	if !ok || !p.Alive {
		return nil
	}
	return p
}

func (e *TickEngine) weightedChoice(candidates []geometry.Tile, weights []float64) geometry.Tile {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return candidates[e.rng.IntN(len(candidates))]
	}
	r := e.rng.Float64() * total
	upto := 0.0
	for i, c := range candidates {
		upto += weights[i]
		if upto >= r {
			return c
		}
	}
	return candidates[len(candidates)-1]
}
