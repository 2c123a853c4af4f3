package plugin

import (
	"sync"
	"time"
)

// doubleClick delays an action so that a quick second invocation can
// replace it with an alternate one.
type doubleClick struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func newDoubleClick(delay time.Duration) *doubleClick {
	return &doubleClick{delay: delay, pending: make(map[string]*time.Timer)}
}

// second reports whether an action for key is pending. If so it is
// cancelled and the caller should run the alternate action.
func (d *doubleClick) second(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.pending[key]
	if !ok {
		return false
	}
	delete(d.pending, key)
	return t.Stop()
}

// schedule runs fn after the delay unless second is called for key first.
func (d *doubleClick) schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.pending[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.pending[key] == t {
			delete(d.pending, key)
		}
		d.mu.Unlock()
		fn()
	})
	d.pending[key] = t
}

// stop cancels everything pending.
func (d *doubleClick) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, t := range d.pending {
		t.Stop()
		delete(d.pending, key)
	}
}
