package engine

import (
	"testing"

	"github.com/adamant-labs/fragment/shard"
	"github.com/stretchr/testify/require"
)

func TestWatchdogEscalatesThenActivates(t *testing.T) {
	e := newTestTickEngine()
	s := newBareShard()
	e.conf.QuietTicksWarning = 2
	e.conf.WatchdogCountdown = 2

	e.advanceWatchdog(s) // quiet=1
	require.Equal(t, 1, s.Watchdog.QuietTicks)
	require.False(t, s.Watchdog.Active)

	e.advanceWatchdog(s) // quiet=2 == warning -> countdown set
	require.Equal(t, 2, s.Watchdog.Countdown)
	require.False(t, s.Watchdog.Active)

	e.advanceWatchdog(s) // countdown 2->1
	require.Equal(t, 1, s.Watchdog.Countdown)
	require.False(t, s.Watchdog.Active)

	e.advanceWatchdog(s) // countdown 1->0 -> active
	require.True(t, s.Watchdog.Active)
	require.Equal(t, 0, s.Watchdog.BonusStep)

	e.advanceWatchdog(s) // active: bonus step increments
	require.Equal(t, 1, s.Watchdog.BonusStep)
}

func TestResetWatchdogEmitsRestoredOnlyWhenDegraded(t *testing.T) {
	e := newTestTickEngine()
	s := newBareShard()
	p := addProc(s, s.Defragger.Pos, shard.Idle)
	e.processEvents[p.ID] = nil

	// Not yet degraded: no restoration notice.
	e.resetWatchdog(s, "adjacent")
	require.Empty(t, e.processEvents[p.ID])

	e.conf.QuietTicksWarning = 1
	e.advanceWatchdog(s)
	require.Equal(t, 1, s.Watchdog.QuietTicks)

	// Now degraded (quiet_ticks >= warning): resetting announces restoration.
	e.resetWatchdog(s, "kill")
	require.False(t, s.Watchdog.Active)
	require.NotEmpty(t, e.processEvents[p.ID])
}

func TestResetWatchdogIgnoresUnknownReason(t *testing.T) {
	e := newTestTickEngine()
	s := newBareShard()
	s.Watchdog.QuietTicks = 5
	e.resetWatchdog(s, "bogus")
	require.Equal(t, 5, s.Watchdog.QuietTicks)
}
