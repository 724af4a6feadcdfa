package engine

import (
	"fmt"
	"strings"

	"github.com/adamant-labs/fragment/geometry"
	"github.com/adamant-labs/fragment/shard"
	"github.com/google/uuid"
)

// ProcessView is the per-process rendered snapshot returned to the
// request layer; Events is drained (reset to nil) on every read.
type ProcessView struct {
	Tick   int64   `json:"tick"`
	Grid   string  `json:"grid"`
	Events []Event `json:"events"`
}

// SpectatorView is the shard-wide rendered snapshot for onlookers.
type SpectatorView struct {
	Tick             int64            `json:"tick"`
	Grid             [][]byte         `json:"grid"`
	Defragger        geometry.Tile    `json:"defragger"`
	DefraggerTarget  *uuid.UUID       `json:"defragger_target"`
	DefraggerPreview []geometry.Tile  `json:"defragger_preview"`
	Walls            []WallView       `json:"walls"`
	Gates            []GateView       `json:"gates"`
	Processes        []ProcessSummary `json:"processes"`
	Watchdog         WatchdogView     `json:"watchdog"`
	SayEvents        []shard.SayEvent `json:"say_events"`
	EchoTiles        []shard.EchoTile `json:"echo_tiles"`
}

// WallView is a spectator-facing wall edge.
type WallView struct {
	A geometry.Tile `json:"a"`
	B geometry.Tile `json:"b"`
}

// GateView is a spectator-facing gate.
type GateView struct {
	Pos  geometry.Tile  `json:"pos"`
	Type shard.GateKind `json:"type"`
}

// ProcessSummary is the minimal spectator-facing process record.
type ProcessSummary struct {
	ID  uuid.UUID     `json:"id"`
	Pos geometry.Tile `json:"pos"`
}

// WatchdogView mirrors shard.Watchdog's spectator-visible fields.
type WatchdogView struct {
	QuietTicks int  `json:"quiet_ticks"`
	Countdown  int  `json:"countdown"`
	Active     bool `json:"active"`
	BonusStep  int  `json:"bonus_step"`
}

// RenderProcessView renders processID's local view and drains its event
// queue. Returns ok=false for an unknown process or shard.
func (e *TickEngine) RenderProcessView(processID uuid.UUID) (ProcessView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.shardForProcess(processID)
	if s == nil {
		return ProcessView{}, false
	}
	proc, ok := s.Processes[processID]
	if !ok {
		return ProcessView{}, false
	}
	events := e.processEvents[processID]
	e.processEvents[processID] = nil
	return ProcessView{
		Tick:   s.Tick,
		Grid:   renderProcessGrid(s, proc),
		Events: events,
	}, true
}

// RenderSpectatorView renders shardID's spectator snapshot.
func (e *TickEngine) RenderSpectatorView(shardID uuid.UUID) (SpectatorView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.shards[shardID]
	if !ok {
		return SpectatorView{}, false
	}

	walls := make([]WallView, 0, len(s.Walls))
	for _, id := range sortedWallIDs(s.Walls) {
		edge := s.Walls[id].Canonical()
		walls = append(walls, WallView{A: edge.A, B: edge.B})
	}
	gates := make([]GateView, 0, len(s.Gates))
	for _, g := range s.Gates {
		gates = append(gates, GateView{Pos: g.Pos, Type: g.Kind})
	}
	procs := make([]ProcessSummary, 0, len(s.Processes))
	for _, pid := range s.ProcessOrder {
		p := s.Processes[pid]
		if p.Alive {
			procs = append(procs, ProcessSummary{ID: p.ID, Pos: p.Pos})
		}
	}

	var target *uuid.UUID
	var preview []geometry.Tile
	if s.Defragger.TargetID != nil {
		if tp, ok := s.Processes[*s.Defragger.TargetID]; ok {
			id := tp.ID
			target = &id
			preview = bfsPath(s, s.Defragger.Pos, tp.Pos)
		}
	}

	return SpectatorView{
		Tick:             s.Tick,
		Grid:             renderSpectatorGrid(s),
		Defragger:        s.Defragger.Pos,
		DefraggerTarget:  target,
		DefraggerPreview: preview,
		Walls:            walls,
		Gates:            gates,
		Processes:        procs,
		Watchdog: WatchdogView{
			QuietTicks: s.Watchdog.QuietTicks,
			Countdown:  s.Watchdog.Countdown,
			Active:     s.Watchdog.Active,
			BonusStep:  s.Watchdog.BonusStep,
		},
		SayEvents: append([]shard.SayEvent(nil), s.SayEvents...),
		EchoTiles: append([]shard.EchoTile(nil), s.EchoTiles...),
	}, true
}

// bfsPath reconstructs the shortest adjacent_tiles path from start to
// goal, excluding start itself; returns nil if unreachable.
func bfsPath(s *shard.State, start, goal geometry.Tile) []geometry.Tile {
	walls := s.WallSet()
	cameFrom := map[geometry.Tile]geometry.Tile{start: start}
	queue := []geometry.Tile{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == goal {
			break
		}
		for _, n := range geometry.AdjacentTiles(cur, walls) {
			if _, seen := cameFrom[n]; !seen {
				cameFrom[n] = cur
				queue = append(queue, n)
			}
		}
	}
	if _, ok := cameFrom[goal]; !ok {
		return nil
	}
	var path []geometry.Tile
	for cur := goal; cur != start; cur = cameFrom[cur] {
		path = append([]geometry.Tile{cur}, path...)
	}
	return path
}

// adjacentCluster returns the reflexive-transitive set of processes
// mutually reachable from processID via single adjacency hops.
func adjacentCluster(s *shard.State, processID uuid.UUID) []uuid.UUID {
	walls := s.WallSet()
	cluster := map[uuid.UUID]struct{}{processID: {}}
	for changed := true; changed; {
		changed = false
		for _, pid := range s.ProcessOrder {
			if _, in := cluster[pid]; in {
				continue
			}
			proc := s.Processes[pid]
			for c := range cluster {
				if geometry.IsAdjacent(proc.Pos, s.Processes[c].Pos, walls) {
					cluster[pid] = struct{}{}
					changed = true
					break
				}
			}
		}
	}
	out := make([]uuid.UUID, 0, len(cluster))
	for pid := range cluster {
		out = append(out, pid)
	}
	return out
}

// renderProcessGrid renders the ASCII local view: a multi-source BFS from
// every cluster member's tile, depth-capped at min(4, |cluster|), with
// immediate-ring tiles additionally labeled by their numpad digit.
func renderProcessGrid(s *shard.State, proc *shard.Process) string {
	walls := s.WallSet()
	cluster := adjacentCluster(s, proc.ID)
	maxDepth := len(cluster)
	if maxDepth > 4 {
		maxDepth = 4
	}

	depth := make(map[geometry.Tile]int)
	var queue []geometry.Tile
	for _, pid := range cluster {
		pos := s.Processes[pid].Pos
		if _, ok := depth[pos]; !ok {
			depth[pos] = 0
			queue = append(queue, pos)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if depth[cur] >= maxDepth {
			continue
		}
		for _, n := range geometry.AdjacentTiles(cur, walls) {
			if _, ok := depth[n]; !ok {
				depth[n] = depth[cur] + 1
				queue = append(queue, n)
			}
		}
	}

	if len(depth) == 0 {
		return ""
	}
	minX, maxX, minY, maxY := proc.Pos.X, proc.Pos.X, proc.Pos.Y, proc.Pos.Y
	for t := range depth {
		if t.X < minX {
			minX = t.X
		}
		if t.X > maxX {
			maxX = t.X
		}
		if t.Y < minY {
			minY = t.Y
		}
		if t.Y > maxY {
			maxY = t.Y
		}
	}

	var rows []string
	for y := minY; y <= maxY; y++ {
		var row strings.Builder
		for x := minX; x <= maxX; x++ {
			tile := geometry.Tile{X: x, Y: y}
			if _, visible := depth[tile]; !visible {
				row.WriteString(strings.Repeat(" ", 10))
				continue
			}
			label := tileLabel(s, proc, tile)
			digit := digitForTile(proc.Pos, tile)
			row.WriteString(fmt.Sprintf("[%s %-5s] ", digit, label))
		}
		rows = append(rows, strings.TrimRight(row.String(), " "))
	}
	return strings.Join(rows, "\n")
}

func digitForTile(center, tile geometry.Tile) string {
	dx, dy := tile.X-center.X, tile.Y-center.Y
	if abs(dx) > 1 || abs(dy) > 1 {
		return " "
	}
	if code, ok := numpadDigits[[2]int{dx, dy}]; ok {
		return code
	}
	return " "
}

var numpadDigits = map[[2]int]string{
	{-1, -1}: "1", {0, -1}: "2", {1, -1}: "3",
	{-1, 0}: "4", {0, 0}: "5", {1, 0}: "6",
	{-1, 1}: "7", {0, 1}: "8", {1, 1}: "9",
}

func tileLabel(s *shard.State, self *shard.Process, tile geometry.Tile) string {
	if tile == self.Pos {
		return "SELF"
	}
	if s.Defragger.Pos == tile {
		return "DEFRG"
	}
	if other := s.ProcessAt(tile); other != nil && other.ID != self.ID {
		return "PROC"
	}
	if s.GateAt(tile) != nil {
		return "GATE"
	}
	return ""
}

// renderSpectatorGrid renders the shard's full-board character grid.
func renderSpectatorGrid(s *shard.State) [][]byte {
	grid := make([][]byte, geometry.GridSize)
	for y := range grid {
		grid[y] = make([]byte, geometry.GridSize)
		for x := range grid[y] {
			grid[y][x] = '.'
		}
	}
	for _, id := range sortedWallIDs(s.Walls) {
		edge := s.Walls[id].Canonical()
		a, b := edge.Segment()
		wx, wy := int(a.X), int(a.Y)
		_ = b
		if wx >= 0 && wx < geometry.GridSize && wy >= 0 && wy < geometry.GridSize {
			grid[wy][wx] = '#'
		}
	}
	for _, g := range s.Gates {
		c := byte('G')
		if g.Kind == shard.GateStable {
			c = 'S'
		}
		grid[g.Pos.Y][g.Pos.X] = c
	}
	for _, pid := range s.ProcessOrder {
		p := s.Processes[pid]
		if p.Alive {
			grid[p.Pos.Y][p.Pos.X] = 'P'
		}
	}
	grid[s.Defragger.Pos.Y][s.Defragger.Pos.X] = 'D'
	for _, echo := range s.EchoTiles {
		if grid[echo.Pos.Y][echo.Pos.X] == '.' {
			grid[echo.Pos.Y][echo.Pos.X] = 'E'
		}
	}
	return grid
}
