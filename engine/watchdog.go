package engine

import (
	"fmt"

	"github.com/adamant-labs/fragment/fragconf"
	"github.com/adamant-labs/fragment/shard"
)

// resetWatchdog clears a shard's watchdog state in response to a liveness
// signal (broadcast, kill, adjacency, or fresh LOS), emitting a
// restoration notice if it had been degraded.
func (e *TickEngine) resetWatchdog(s *shard.State, reason string) {
	switch reason {
	case "broadcast", "kill", "adjacent", "los":
	default:
		return
	}
	if s.Watchdog.QuietTicks >= e.conf.QuietTicksWarning || s.Watchdog.Countdown > 0 || s.Watchdog.Active {
		e.emitShardEvent(s, Event{Kind: "system", Message: "[OK]: LIVENESS RESTORED.", TimestampMS: shard.NowMS()})
	}
	s.Watchdog = shard.Watchdog{RestoredThisTick: true}
}

// advanceWatchdog steps the escalation state machine for a shard that saw
// no liveness reset this tick: quiet ticks accumulate toward a countdown,
// which on expiry activates the watchdog and grants escalating bonus
// steps to the defragmenter each further quiet tick.
func (e *TickEngine) advanceWatchdog(s *shard.State) {
	wd := &s.Watchdog
	last := len(fragconf.FibonacciEscalation) - 1
	if wd.Active {
		if wd.BonusStep < last {
			wd.BonusStep++
		}
		return
	}
	wd.QuietTicks++
	switch {
	case wd.QuietTicks == e.conf.QuietTicksWarning:
		wd.Countdown = e.conf.WatchdogCountdown
		e.emitShardEvent(s, Event{Kind: "system", Message: "[WARN]: SCHEDULER LIVENESS DEGRADED.", TimestampMS: shard.NowMS()})
		e.emitShardEvent(s, Event{Kind: "system", Message: fmt.Sprintf("[WARN]: DEADLOCK MITIGATION IN: %02d TICKS", wd.Countdown), TimestampMS: shard.NowMS()})
	case wd.Countdown > 0:
		wd.Countdown--
		e.emitShardEvent(s, Event{Kind: "system", Message: fmt.Sprintf("[WARN]: DEADLOCK MITIGATION IN: %02d TICKS", wd.Countdown), TimestampMS: shard.NowMS()})
		if wd.Countdown == 0 {
			wd.Active = true
			wd.BonusStep = 0
			e.emitShardEvent(s, Event{Kind: "system", Message: "[CRITICAL]: WATCHDOG TRIGGERED.", TimestampMS: shard.NowMS()})
			e.emitShardEvent(s, Event{Kind: "system", Message: "[CRITICAL]: EXECUTION REBALANCE APPLIED.", TimestampMS: shard.NowMS()})
		}
	}
}
