package monitor

import (
	"context"
	"sync"

	"fleet-console/internal/logging"
	"fleet-console/internal/store"
)

// Watcher is a second, passive arrival detector. The store can change
// outside the poll loop (an out-of-band Kafka event, a local mutation from
// another handler); the watcher diffs every observed store state against the
// ids it saw last time and sounds the cue for arrivals the poll loop never
// announced. Poll-originated events are skipped because the loop already
// notified for them.
type Watcher struct {
	store    *store.Store
	notifier AudioNotifier
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	seen   map[int64]struct{}
}

// NewWatcher builds a Watcher seeded with the store's current identity set.
func NewWatcher(st *store.Store, notifier AudioNotifier, logger *logging.Logger) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		store:    st,
		notifier: notifier,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		seen:     st.IDSet(),
	}
}

// Start subscribes to store events until Stop is called.
func (w *Watcher) Start(wg *sync.WaitGroup) {
	events, unsubscribe := w.store.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer unsubscribe()
		for {
			select {
			case <-w.ctx.Done():
				w.logger.Infof("Alert watcher stopped")
				return
			case ev := <-events:
				w.observe(ev)
			}
		}
	}()
}

// Stop ends the watch loop.
func (w *Watcher) Stop() {
	w.cancel()
}

func (w *Watcher) observe(ev store.Event) {
	current := make(map[int64]struct{}, len(ev.Alerts))
	for _, a := range ev.Alerts {
		current[a.ID] = struct{}{}
	}

	var fresh []int64
	for id := range current {
		if _, ok := w.seen[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	w.seen = current

	if len(fresh) == 0 || ev.Origin == store.OriginPoll {
		return
	}
	w.logger.Infof("Watcher spotted %d out-of-band alert(s): %v", len(fresh), fresh)
	_ = w.notifier.Notify(w.ctx, nil)
}
