// Package memstore is an in-memory Persistence.Port implementation, used
// by tests and by a fresh engine with no durable backing store configured
// — the nop/default adapter the teacher's design note in spec.md §9 calls
// for alongside the storage-engine-backed implementation.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/adamant-labs/fragment/persistence"
	"github.com/adamant-labs/fragment/replay"
	"github.com/google/uuid"
)

// Store is a mutex-guarded in-memory Port.
type Store struct {
	mu sync.Mutex

	leaderboard map[string]*persistence.LeaderboardEntry

	shardTicks map[uuid.UUID][]replay.Tick
	shardOrder []uuid.UUID
	finalized  map[uuid.UUID]replay.ShardStats
	totalTicks map[uuid.UUID]int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		leaderboard: make(map[string]*persistence.LeaderboardEntry),
		shardTicks:  make(map[uuid.UUID][]replay.Tick),
		finalized:   make(map[uuid.UUID]replay.ShardStats),
		totalTicks:  make(map[uuid.UUID]int64),
	}
}

func (s *Store) entry(callSign string) *persistence.LeaderboardEntry {
	e, ok := s.leaderboard[callSign]
	if !ok {
		e = &persistence.LeaderboardEntry{CallSign: callSign}
		s.leaderboard[callSign] = e
	}
	return e
}

// RecordSurvival increments callSign's survival count.
func (s *Store) RecordSurvival(_ context.Context, callSign string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(callSign).Survivals++
}

// RecordDeath increments callSign's death count.
func (s *Store) RecordDeath(_ context.Context, callSign string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(callSign).Deaths++
}

// RecordGhost increments callSign's ghost count.
func (s *Store) RecordGhost(_ context.Context, callSign string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(callSign).Ghosts++
}

// Leaderboard returns every entry, ordered by survivals descending then
// call sign ascending.
func (s *Store) Leaderboard(_ context.Context) ([]persistence.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]persistence.LeaderboardEntry, 0, len(s.leaderboard))
	for _, e := range s.leaderboard {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Survivals != out[j].Survivals {
			return out[i].Survivals > out[j].Survivals
		}
		return out[i].CallSign < out[j].CallSign
	})
	return out, nil
}

// RegisterReplayShard opens an empty tick log for shardID.
func (s *Store) RegisterReplayShard(_ context.Context, shardID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shardTicks[shardID]; !ok {
		s.shardTicks[shardID] = nil
		s.shardOrder = append(s.shardOrder, shardID)
	}
}

// RecordReplayTick appends snapshot to shardID's tick log.
func (s *Store) RecordReplayTick(_ context.Context, shardID uuid.UUID, tick int64, snapshot replay.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shardTicks[shardID] = append(s.shardTicks[shardID], snapshot)
	s.totalTicks[shardID] = tick
}

// FinalizeReplayShard records the terminal stats for shardID.
func (s *Store) FinalizeReplayShard(_ context.Context, shardID uuid.UUID, totalTicks int64, stats replay.ShardStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized[shardID] = stats
	s.totalTicks[shardID] = totalTicks
}

// ListReplayShards returns up to limit shard summaries, most recently
// registered first.
func (s *Store) ListReplayShards(_ context.Context, limit int) ([]replay.ShardSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]replay.ShardSummary, 0, len(s.shardOrder))
	for i := len(s.shardOrder) - 1; i >= 0; i-- {
		id := s.shardOrder[i]
		out = append(out, replay.ShardSummary{
			ShardID:    id,
			TotalTicks: s.totalTicks[id],
			Stats:      s.finalized[id],
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetReplayTicks returns up to limit ticks for shardID starting at
// startTick.
func (s *Store) GetReplayTicks(_ context.Context, shardID uuid.UUID, startTick int64, limit int) ([]replay.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []replay.Tick
	for _, t := range s.shardTicks[shardID] {
		if t.TickNumber < startTick {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op; Store holds no external resources.
func (s *Store) Close() error { return nil }

var _ persistence.Port = (*Store)(nil)
