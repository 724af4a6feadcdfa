// Package leveldbstore is a Persistence.Port backed by an embedded LevelDB
// database, adapted from the teacher's leveldb-backed world save path
// (server/world/world.go's Provider) and the original's
// persist/sqlite.py ensure-row-then-increment pattern, re-expressed over
// LevelDB's flat key/value model instead of SQL rows.
package leveldbstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/adamant-labs/fragment/persistence"
	"github.com/adamant-labs/fragment/replay"
	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/util"
	"github.com/google/uuid"
)

const (
	prefixLeaderboard = "lb/"
	prefixReplayMeta  = "replay/meta/"
	prefixReplayTick  = "replay/tick/"
)

// Store is an embedded-LevelDB-backed Port.
type Store struct {
	db  *leveldb.DB
	log *slog.Logger
}

// Open opens (creating if absent) the LevelDB database at path.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldbstore: open %s: %w", path, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log}, nil
}

type leaderboardRow struct {
	CallSign  string `json:"call_sign"`
	Survivals int    `json:"survivals"`
	Deaths    int    `json:"deaths"`
	Ghosts    int    `json:"ghosts"`
}

func (s *Store) bumpLeaderboard(callSign string, field func(*leaderboardRow)) {
	key := []byte(prefixLeaderboard + callSign)
	row := leaderboardRow{CallSign: callSign}
	if data, err := s.db.Get(key, nil); err == nil {
		if jerr := json.Unmarshal(data, &row); jerr != nil {
			s.log.Warn("leveldbstore: corrupt leaderboard row, resetting", "call_sign", callSign, "error", jerr)
			row = leaderboardRow{CallSign: callSign}
		}
	} else if !errors.Is(err, leveldb.ErrNotFound) {
		s.log.Error("leveldbstore: read leaderboard row failed", "call_sign", callSign, "error", err)
		return
	}
	field(&row)
	data, err := json.Marshal(row)
	if err != nil {
		s.log.Error("leveldbstore: encode leaderboard row failed", "call_sign", callSign, "error", err)
		return
	}
	if err := s.db.Put(key, data, nil); err != nil {
		s.log.Error("leveldbstore: write leaderboard row failed", "call_sign", callSign, "error", err)
	}
}

// RecordSurvival increments callSign's survival count.
func (s *Store) RecordSurvival(_ context.Context, callSign string) {
	s.bumpLeaderboard(callSign, func(r *leaderboardRow) { r.Survivals++ })
}

// RecordDeath increments callSign's death count.
func (s *Store) RecordDeath(_ context.Context, callSign string) {
	s.bumpLeaderboard(callSign, func(r *leaderboardRow) { r.Deaths++ })
}

// RecordGhost increments callSign's ghost count.
func (s *Store) RecordGhost(_ context.Context, callSign string) {
	s.bumpLeaderboard(callSign, func(r *leaderboardRow) { r.Ghosts++ })
}

// Leaderboard returns every row, ordered by survivals descending then call
// sign ascending.
func (s *Store) Leaderboard(_ context.Context) ([]persistence.LeaderboardEntry, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefixLeaderboard)), nil)
	defer iter.Release()

	var out []persistence.LeaderboardEntry
	for iter.Next() {
		var row leaderboardRow
		if err := json.Unmarshal(iter.Value(), &row); err != nil {
			continue
		}
		out = append(out, persistence.LeaderboardEntry{
			CallSign:  row.CallSign,
			Survivals: row.Survivals,
			Deaths:    row.Deaths,
			Ghosts:    row.Ghosts,
		})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldbstore: iterate leaderboard: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Survivals != out[j].Survivals {
			return out[i].Survivals > out[j].Survivals
		}
		return out[i].CallSign < out[j].CallSign
	})
	return out, nil
}

// RegisterReplayShard writes an empty summary for shardID if absent.
func (s *Store) RegisterReplayShard(_ context.Context, shardID uuid.UUID) {
	key := []byte(prefixReplayMeta + shardID.String())
	if _, err := s.db.Get(key, nil); err == nil {
		return
	}
	summary := replay.ShardSummary{ShardID: shardID}
	data, err := json.Marshal(summary)
	if err != nil {
		s.log.Error("leveldbstore: encode replay summary failed", "shard", shardID, "error", err)
		return
	}
	if err := s.db.Put(key, data, nil); err != nil {
		s.log.Error("leveldbstore: register replay shard failed", "shard", shardID, "error", err)
	}
}

func tickKey(shardID uuid.UUID, tick int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(tick))
	return append([]byte(prefixReplayTick+shardID.String()+"/"), buf[:]...)
}

// RecordReplayTick writes snapshot under a big-endian tick-ordered key so a
// prefix scan returns ticks in ascending order.
func (s *Store) RecordReplayTick(_ context.Context, shardID uuid.UUID, tick int64, snapshot replay.Tick) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		s.log.Error("leveldbstore: encode replay tick failed", "shard", shardID, "tick", tick, "error", err)
		return
	}
	if err := s.db.Put(tickKey(shardID, tick), data, nil); err != nil {
		s.log.Error("leveldbstore: write replay tick failed", "shard", shardID, "tick", tick, "error", err)
	}
}

// FinalizeReplayShard overwrites shardID's summary with its terminal stats.
func (s *Store) FinalizeReplayShard(_ context.Context, shardID uuid.UUID, totalTicks int64, stats replay.ShardStats) {
	key := []byte(prefixReplayMeta + shardID.String())
	summary := replay.ShardSummary{ShardID: shardID, TotalTicks: totalTicks, Stats: stats}
	data, err := json.Marshal(summary)
	if err != nil {
		s.log.Error("leveldbstore: encode replay finalize failed", "shard", shardID, "error", err)
		return
	}
	if err := s.db.Put(key, data, nil); err != nil {
		s.log.Error("leveldbstore: finalize replay shard failed", "shard", shardID, "error", err)
	}
}

// ListReplayShards returns up to limit shard summaries.
func (s *Store) ListReplayShards(_ context.Context, limit int) ([]replay.ShardSummary, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefixReplayMeta)), nil)
	defer iter.Release()

	var out []replay.ShardSummary
	for iter.Next() {
		var summary replay.ShardSummary
		if err := json.Unmarshal(iter.Value(), &summary); err != nil {
			continue
		}
		out = append(out, summary)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldbstore: iterate replay shards: %w", err)
	}
	return out, nil
}

// GetReplayTicks returns up to limit ticks for shardID at or after
// startTick, in ascending tick order.
func (s *Store) GetReplayTicks(_ context.Context, shardID uuid.UUID, startTick int64, limit int) ([]replay.Tick, error) {
	rng := util.BytesPrefix([]byte(prefixReplayTick + shardID.String() + "/"))
	rng.Start = tickKey(shardID, startTick)
	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()

	var out []replay.Tick
	for iter.Next() {
		var t replay.Tick
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldbstore: iterate replay ticks: %w", err)
	}
	return out, nil
}

// Close releases the underlying LevelDB handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ persistence.Port = (*Store)(nil)
