package giveaway

import (
	"sync"
	"time"
)

// confirmationTimer is a single-shot, cancelable delayed action. At most one
// arming is live at a time; arming implicitly cancels the previous one.
// Cancel does not retract a fire that has already been dispatched, so the
// expiry callback must re-check session state under the session lock.
type confirmationTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

// Arm schedules onExpire after d, canceling any prior arming first.
func (t *confirmationTimer) Arm(d time.Duration, onExpire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, onExpire)
}

// Cancel stops the outstanding timer, if any. Idempotent.
func (t *confirmationTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
