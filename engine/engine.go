// Package engine implements the authoritative per-shard tick engine: the
// single exclusive-lock, single-goroutine world the scheduler drives
// forward one tick at a time. Ported from the original's
// segfault/engine/engine.py, generalized to multi-shard bookkeeping, the
// same way the teacher's World drives its per-tick ticker under a single
// exec queue.
package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/adamant-labs/fragment/drift"
	"github.com/adamant-labs/fragment/fragconf"
	"github.com/adamant-labs/fragment/geometry"
	"github.com/adamant-labs/fragment/persistence"
	"github.com/adamant-labs/fragment/replay"
	"github.com/adamant-labs/fragment/shard"
	"github.com/google/uuid"
)

// sessionEntry is the (process id, issued-at unix seconds) pair a token
// resolves to.
type sessionEntry struct {
	processID uuid.UUID
	issuedAt  int64
}

// TickEngine owns every shard and the process/token indexes spanning them.
// All exported methods acquire mu; callers never need their own lock.
type TickEngine struct {
	mu sync.Mutex

	conf  fragconf.Config
	store persistence.Port
	rng   *rand.Rand

	shards        map[uuid.UUID]*shard.State
	shardOrder    []uuid.UUID
	processShard  map[uuid.UUID]uuid.UUID
	sessionTokens map[uuid.UUID]sessionEntry
	processEvents map[uuid.UUID][]Event
}

// New builds a TickEngine with no shards, seeded from conf.RandomSeed.
func New(conf fragconf.Config, store persistence.Port) *TickEngine {
	return &TickEngine{
		conf:          conf,
		store:         store,
		rng:           rand.New(rand.NewPCG(uint64(conf.RandomSeed), uint64(conf.RandomSeed)^0x9e3779b97f4a7c15)),
		shards:        make(map[uuid.UUID]*shard.State),
		processShard:  make(map[uuid.UUID]uuid.UUID),
		sessionTokens: make(map[uuid.UUID]sessionEntry),
		processEvents: make(map[uuid.UUID][]Event),
	}
}

// CreateShard generates a fresh shard (walls, gates, defragmenter) and
// registers it with the persistence port for replay.
func (e *TickEngine) CreateShard(ctx context.Context) (*shard.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createShardLocked(ctx)
}

func (e *TickEngine) createShardLocked(ctx context.Context) (*shard.State, error) {
	walls, err := e.generateWalls()
	if err != nil {
		return nil, err
	}
	gates, err := e.generateGates(walls)
	if err != nil {
		return nil, err
	}
	forbidden := gatePositionSet(gates)
	defraggerPos, err := e.randomEmptyTile(nil, forbidden)
	if err != nil {
		return nil, err
	}
	s := shard.New(uuid.New(), walls, gates, defraggerPos)
	e.shards[s.ID] = s
	e.shardOrder = append(e.shardOrder, s.ID)
	e.store.RegisterReplayShard(ctx, s.ID)
	return s, nil
}

func gatePositionSet(gates []*shard.Gate) map[geometry.Tile]struct{} {
	out := make(map[geometry.Tile]struct{}, len(gates))
	for _, g := range gates {
		out[g.Pos] = struct{}{}
	}
	return out
}

func (e *TickEngine) findOrCreateShard(ctx context.Context) (*shard.State, error) {
	var best *shard.State
	for _, id := range e.shardOrder {
		s, ok := e.shards[id]
		if !ok || len(s.Processes) >= e.conf.MaxProcessesPerShard {
			continue
		}
		if best == nil || len(s.Processes) < len(best.Processes) {
			best = s
		}
	}
	if best != nil {
		return best, nil
	}
	return e.createShardLocked(ctx)
}

func (e *TickEngine) totalProcesses() int {
	n := 0
	for _, s := range e.shards {
		n += len(s.Processes)
	}
	return n
}

// JoinProcess spawns a new process in the least-populated shard with
// capacity and returns its session token and process id. It returns
// ok=false once the global process cap is reached.
func (e *TickEngine) JoinProcess(ctx context.Context) (token, processID uuid.UUID, ok bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conf.MaxTotalProcesses > 0 && e.totalProcesses() >= e.conf.MaxTotalProcesses {
		return uuid.Nil, uuid.Nil, false, nil
	}
	s, err := e.findOrCreateShard(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, false, err
	}
	pos, err := e.randomEmptyTile(s.AlivePositions(), forbiddenTiles(s))
	if err != nil {
		return uuid.Nil, uuid.Nil, false, err
	}
	proc := &shard.Process{
		ID:             uuid.New(),
		CallSign:       e.randomCallSign(),
		Pos:            pos,
		Buffered:       shard.Idle,
		Alive:          true,
		LastSprintTick: -1,
	}
	s.AddProcess(proc)
	s.Counters.TotalProcesses++
	e.processShard[proc.ID] = s.ID
	e.processEvents[proc.ID] = nil

	tok := uuid.New()
	e.sessionTokens[tok] = sessionEntry{processID: proc.ID, issuedAt: time.Now().Unix()}
	return tok, proc.ID, true, nil
}

func forbiddenTiles(s *shard.State) map[geometry.Tile]struct{} {
	out := s.GatePositions()
	out[s.Defragger.Pos] = struct{}{}
	return out
}

// ResolveToken returns the process id a session token currently maps to,
// expiring it if older than ttlSeconds (0 disables expiry).
func (e *TickEngine) ResolveToken(token uuid.UUID, ttlSeconds int64) (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.sessionTokens[token]
	if !ok {
		return uuid.Nil, false
	}
	if ttlSeconds > 0 && time.Now().Unix()-entry.issuedAt > ttlSeconds {
		delete(e.sessionTokens, token)
		return uuid.Nil, false
	}
	return entry.processID, true
}

// BufferCommand stores cmd as a process's next-tick intent. BROADCAST and
// SAY are applied immediately rather than buffered. Unknown or dead
// processes are a silent no-op.
func (e *TickEngine) BufferCommand(processID uuid.UUID, cmd shard.Command) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.shardForProcess(processID)
	if s == nil {
		return
	}
	proc, ok := s.Processes[processID]
	if !ok || !proc.Alive {
		return
	}
	switch cmd.Kind {
	case shard.CommandBroadcast:
		if cmd.Arg != "" {
			e.handleBroadcast(s, processID, truncate(cmd.Arg, 256))
		}
	case shard.CommandSay:
		if cmd.Arg != "" {
			e.handleSay(s, processID, truncate(cmd.Arg, 256))
		}
	default:
		proc.Buffered = cmd
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (e *TickEngine) shardForProcess(processID uuid.UUID) *shard.State {
	shardID, ok := e.processShard[processID]
	if !ok {
		return nil
	}
	return e.shards[shardID]
}

// TickOnce advances every shard by a single tick, in shard-creation order.
func (e *TickEngine) TickOnce(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range append([]uuid.UUID(nil), e.shardOrder...) {
		s, ok := e.shards[id]
		if !ok {
			continue
		}
		e.tickShard(ctx, s)
	}
}

// ShardIDs returns a snapshot of the live shard ids in insertion order, for
// the scheduler to know which spectator views to refresh after a tick.
func (e *TickEngine) ShardIDs() []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uuid.UUID(nil), e.shardOrder...)
}

func (e *TickEngine) tickShard(ctx context.Context, s *shard.State) {
	s.Tick++
	s.TickEvents = shard.TickEvents{Spawns: s.PendingSpawns}
	s.PendingSpawns = nil

	if e.anyLivenessAdjacent(s) {
		e.resetWatchdog(s, "adjacent")
	}

	moves := e.resolveProcessActions(s)
	e.applyProcessMoves(s, moves)
	e.resolveGateInteractions(ctx, s)

	drift.Walls(s, e.rng)
	drift.Gates(s, e.rng)

	e.resolveDefragger(ctx, s)
	if !s.Watchdog.RestoredThisTick {
		e.advanceWatchdog(s)
	}

	e.trimSayEvents(s)
	e.trimEchoTiles(s)

	e.recordReplayTick(ctx, s)
	s.Broadcasts = nil
	s.Watchdog.RestoredThisTick = false

	if len(s.Processes) < e.conf.MinActiveProcesses {
		s.EmptyTicks++
	} else {
		s.EmptyTicks = 0
	}
	if s.EmptyTicks >= e.conf.EmptyShardTicks {
		e.shutdownShard(ctx, s)
	}
}

func (e *TickEngine) anyLivenessAdjacent(s *shard.State) bool {
	walls := s.WallSet()
	for _, pid := range s.ProcessOrder {
		p := s.Processes[pid]
		if p.Alive && geometry.IsAdjacent(p.Pos, s.Defragger.Pos, walls) {
			return true
		}
	}
	return false
}

func (e *TickEngine) shutdownShard(ctx context.Context, s *shard.State) {
	for _, pid := range append([]uuid.UUID(nil), s.ProcessOrder...) {
		if proc, ok := s.Processes[pid]; ok {
			e.removeProcess(s, proc, false)
		}
	}
	e.store.FinalizeReplayShard(ctx, s.ID, s.Tick, replay.ShardStats{
		TotalProcesses: s.Counters.TotalProcesses,
		TotalKills:     s.Counters.TotalKills,
		TotalSurvivals: s.Counters.TotalSurvivals,
		TotalGhosts:    s.Counters.TotalGhosts,
	})
	delete(e.shards, s.ID)
	for i, id := range e.shardOrder {
		if id == s.ID {
			e.shardOrder = append(e.shardOrder[:i], e.shardOrder[i+1:]...)
			break
		}
	}
}

func (e *TickEngine) randomCallSign() string {
	adjectives := []string{"Static", "Ghost", "Null", "Cache", "Wired"}
	nouns := []string{"Runner", "Process", "Echo", "Trace", "Fork"}
	return fmt.Sprintf("%s-%s", adjectives[e.rng.IntN(len(adjectives))], nouns[e.rng.IntN(len(nouns))])
}

func (e *TickEngine) randomEmptyTile(occupied, forbidden map[geometry.Tile]struct{}) (geometry.Tile, error) {
	const maxAttempts = 100
	for i := 0; i < maxAttempts; i++ {
		t := geometry.Tile{X: e.rng.IntN(geometry.GridSize), Y: e.rng.IntN(geometry.GridSize)}
		if _, bad := occupied[t]; bad {
			continue
		}
		if _, bad := forbidden[t]; bad {
			continue
		}
		return t, nil
	}
	return geometry.Tile{}, fmt.Errorf("engine: no empty tile found after %d attempts", maxAttempts)
}
