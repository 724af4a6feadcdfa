// Package replay defines the per-tick snapshot layout recorded through the
// Persistence port, per spec.md §6.
package replay

import "github.com/google/uuid"

// WallEdge names the four tile coordinates of a wall edge. It has no JSON
// tags and is not used by Tick, which records walls as [ax,ay,bx,by]
// arrays.
type WallEdge struct {
	AX, AY, BX, BY int
}

// Gate is the replay-record form of a gate.
type Gate struct {
	Pos  [2]int `json:"pos"`
	Type string `json:"type"`
}

// Process is the replay-record form of a process.
type Process struct {
	ID             uuid.UUID `json:"id"`
	CallSign       string    `json:"call_sign"`
	Pos            [2]int    `json:"pos"`
	Alive          bool      `json:"alive"`
	BufferedCmd    string    `json:"buffered_cmd"`
	BufferedArg    string    `json:"buffered_arg"`
	LOSLock        bool      `json:"los_lock"`
	LastSprintTick int64     `json:"last_sprint_tick"`
}

// Defragger is the replay-record form of the defragmenter.
type Defragger struct {
	Pos          [2]int     `json:"pos"`
	TargetID     *uuid.UUID `json:"target_id,omitempty"`
	TargetReason string     `json:"target_reason"`
}

// Watchdog is the replay-record form of the watchdog.
type Watchdog struct {
	QuietTicks int  `json:"quiet_ticks"`
	Countdown  int  `json:"countdown"`
	Active     bool `json:"active"`
	BonusStep  int  `json:"bonus_step"`
}

// Events bundles the bookkeeping a tick produced.
type Events struct {
	Kills     []uuid.UUID `json:"kills"`
	Survivals []uuid.UUID `json:"survivals"`
	Ghosts    []uuid.UUID `json:"ghosts"`
	Spawns    []uuid.UUID `json:"spawns"`
}

// Broadcast is the replay-record form of a broadcast.
type Broadcast struct {
	ProcessID   uuid.UUID `json:"process_id"`
	Message     string    `json:"message"`
	TimestampMS int64     `json:"timestamp_ms"`
}

// SayRecipient is the replay-record form of a SAY recipient.
type SayRecipient struct {
	ID  uuid.UUID `json:"id"`
	Pos [2]int    `json:"pos"`
}

// SayEvent is the replay-record form of a SAY event.
type SayEvent struct {
	SenderID    uuid.UUID      `json:"sender_id"`
	SenderPos   [2]int         `json:"sender_pos"`
	Message     string         `json:"message"`
	TimestampMS int64          `json:"timestamp_ms"`
	Tick        int64          `json:"tick"`
	Recipients  []SayRecipient `json:"recipients"`
}

// EchoTile is the replay-record form of an echo tile.
type EchoTile struct {
	Pos  [2]int `json:"pos"`
	Tick int64  `json:"tick"`
}

// Tick is the full per-tick snapshot recorded through
// Persistence.RecordReplayTick, a superset dictionary per spec.md §6.
type Tick struct {
	ShardID    uuid.UUID   `json:"shard_id"`
	TickNumber int64       `json:"tick"`
	GridSize   int         `json:"grid_size"`
	Walls      [][4]int    `json:"walls"`
	Gates      []Gate      `json:"gates"`
	Processes  []Process   `json:"processes"`
	Defragger  Defragger   `json:"defragger"`
	Watchdog   Watchdog    `json:"watchdog"`
	Broadcasts []Broadcast `json:"broadcasts"`
	SayEvents  []SayEvent  `json:"say_events"`
	EchoTiles  []EchoTile  `json:"echo_tiles"`
	Events     Events      `json:"events"`
}

// ShardStats summarizes a shard's lifetime for FinalizeReplayShard.
type ShardStats struct {
	TotalProcesses int `json:"total_processes"`
	TotalKills     int `json:"total_kills"`
	TotalSurvivals int `json:"total_survivals"`
	TotalGhosts    int `json:"total_ghosts"`
}

// ShardSummary is one row of Port.ListReplayShards.
type ShardSummary struct {
	ShardID    uuid.UUID  `json:"shard_id"`
	TotalTicks int64      `json:"total_ticks"`
	Stats      ShardStats `json:"stats"`
}
