// Package scheduler drives the tick engine forward on a single cooperative
// loop and fans out spectator snapshots to subscribers, the way the
// teacher's world.ticker.tickLoop drives ticks under a single exec queue
// and pushes viewer updates once the lock is released.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adamant-labs/fragment/engine"
	"github.com/adamant-labs/fragment/fragconf"
	"github.com/google/uuid"
)

// Subscriber receives spectator snapshots for a single shard. Send must
// respect ctx's deadline; a returned error evicts the subscriber.
type Subscriber interface {
	Send(ctx context.Context, view engine.SpectatorView) error
}

// Driver is the single cooperative tick loop. It owns no world state of
// its own; all mutation happens inside the TickEngine under its own lock.
// The subscriber-set lock below is intentionally distinct from the engine
// lock, per the concurrency model's separation of the two.
type Driver struct {
	conf fragconf.Config
	eng  *engine.TickEngine
	log  *slog.Logger

	mu          sync.Mutex
	broadcasts  map[uuid.UUID]*shardBroadcaster
}

// New builds a Driver over eng, using conf.TickSeconds as the inter-tick
// sleep and conf.SpectatorSendTimeoutMS as the per-subscriber send budget.
func New(conf fragconf.Config, eng *engine.TickEngine) *Driver {
	return &Driver{
		conf:       conf,
		eng:        eng,
		log:        conf.Logger(),
		broadcasts: make(map[uuid.UUID]*shardBroadcaster),
	}
}

// Run blocks, ticking the engine every conf.TickSeconds until ctx is
// cancelled. It is meant to be launched once, from cmd/fragserver's main
// goroutine or a dedicated one.
func (d *Driver) Run(ctx context.Context) {
	interval := time.Duration(d.conf.TickSeconds * float64(time.Second))
	tc := time.NewTicker(interval)
	defer tc.Stop()
	for {
		select {
		case <-tc.C:
			d.eng.TickOnce(ctx)
			d.publishAll(ctx)
		case <-ctx.Done():
			d.stopAll()
			return
		}
	}
}

// publishAll renders and overwrites the mailbox for every shard that
// currently has at least one subscriber; shards nobody is watching are
// never rendered.
func (d *Driver) publishAll(ctx context.Context) {
	for _, shardID := range d.eng.ShardIDs() {
		d.mu.Lock()
		b, ok := d.broadcasts[shardID]
		d.mu.Unlock()
		if !ok {
			continue
		}
		view, ok := d.eng.RenderSpectatorView(shardID)
		if !ok {
			continue
		}
		b.publish(view)
	}
}

func (d *Driver) stopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.broadcasts {
		b.cancel()
	}
	d.broadcasts = make(map[uuid.UUID]*shardBroadcaster)
}

// Subscribe registers sub for shardID's spectator broadcasts, spawning the
// shard's broadcaster goroutine on first subscriber. The returned func
// unsubscribes; the broadcaster goroutine exits once its set is empty.
func (d *Driver) Subscribe(shardID uuid.UUID, sub Subscriber) (unsubscribe func()) {
	d.mu.Lock()
	b, ok := d.broadcasts[shardID]
	if !ok {
		b = newShardBroadcaster(shardID, d.conf, d.log)
		d.broadcasts[shardID] = b
		go b.run()
	}
	id := b.addSubscriber(sub)
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if b.removeSubscriber(id) == 0 {
			b.cancel()
			delete(d.broadcasts, shardID)
		}
	}
}

// shardBroadcaster is the consumer side of one shard's 1-slot mailbox: it
// wakes on every publish and fans the latest snapshot out to every
// subscriber still registered, evicting any whose Send times out or
// errors.
type shardBroadcaster struct {
	shardID uuid.UUID
	timeout time.Duration
	log     *slog.Logger

	mailbox chan engine.SpectatorView
	done    chan struct{}
	cancel  context.CancelFunc

	subMu    sync.Mutex
	subs     map[int64]Subscriber
	nextSub  int64
}

func newShardBroadcaster(shardID uuid.UUID, conf fragconf.Config, log *slog.Logger) *shardBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())
	b := &shardBroadcaster{
		shardID: shardID,
		timeout: time.Duration(conf.SpectatorSendTimeoutMS) * time.Millisecond,
		log:     log,
		mailbox: make(chan engine.SpectatorView, 1),
		done:    ctx.Done(),
		cancel:  cancel,
		subs:    make(map[int64]Subscriber),
	}
	return b
}

// publish overwrites the mailbox slot, dropping the previous snapshot if
// the consumer hasn't drained it yet.
func (b *shardBroadcaster) publish(view engine.SpectatorView) {
	select {
	case <-b.mailbox:
	default:
	}
	select {
	case b.mailbox <- view:
	default:
	}
}

func (b *shardBroadcaster) addSubscriber(sub Subscriber) int64 {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = sub
	return id
}

// removeSubscriber deletes id and returns the remaining subscriber count.
func (b *shardBroadcaster) removeSubscriber(id int64) int {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	delete(b.subs, id)
	return len(b.subs)
}

func (b *shardBroadcaster) run() {
	for {
		select {
		case view := <-b.mailbox:
			b.dispatch(view)
		case <-b.done:
			return
		}
	}
}

func (b *shardBroadcaster) dispatch(view engine.SpectatorView) {
	b.subMu.Lock()
	targets := make(map[int64]Subscriber, len(b.subs))
	for id, sub := range b.subs {
		targets[id] = sub
	}
	b.subMu.Unlock()

	var evicted []int64
	for id, sub := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		err := sub.Send(ctx, view)
		cancel()
		if err != nil {
			b.log.Warn("evicting spectator subscriber", "shard", b.shardID, "error", err)
			evicted = append(evicted, id)
		}
	}
	if len(evicted) == 0 {
		return
	}
	b.subMu.Lock()
	for _, id := range evicted {
		delete(b.subs, id)
	}
	b.subMu.Unlock()
}
