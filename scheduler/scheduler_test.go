package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adamant-labs/fragment/engine"
	"github.com/adamant-labs/fragment/fragconf"
	"github.com/adamant-labs/fragment/persistence/memstore"
	"github.com/adamant-labs/fragment/scheduler"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	mu    sync.Mutex
	views []engine.SpectatorView
	fail  bool
}

func (r *recordingSubscriber) Send(_ context.Context, view engine.SpectatorView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("boom")
	}
	r.views = append(r.views, view)
	return nil
}

func (r *recordingSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func TestSubscribeReceivesSnapshotsAfterTick(t *testing.T) {
	conf := fragconf.Default()
	conf.TickSeconds = 0.01
	conf.SpectatorSendTimeoutMS = 100
	store := memstore.New()
	eng := engine.New(conf, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, ok, err := eng.JoinProcess(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	shardIDs := eng.ShardIDs()
	require.Len(t, shardIDs, 1)

	d := scheduler.New(conf, eng)
	sub := &recordingSubscriber{}
	unsubscribe := d.Subscribe(shardIDs[0], sub)
	defer unsubscribe()

	go d.Run(ctx)

	require.Eventually(t, func() bool {
		return sub.count() > 0
	}, time.Second, 5*time.Millisecond)
}

func TestUnsubscribeStopsFurtherDelivery(t *testing.T) {
	conf := fragconf.Default()
	conf.TickSeconds = 0.01
	store := memstore.New()
	eng := engine.New(conf, store)
	d := scheduler.New(conf, eng)

	sub := &recordingSubscriber{}
	unsubscribe := d.Subscribe(uuid.New(), sub)
	unsubscribe()
	// No panic on double-stop path, and no delivery to an unsubscribed target.
	require.Equal(t, 0, sub.count())
}
