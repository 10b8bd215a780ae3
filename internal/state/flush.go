package state

import (
	"time"
)

// Batch runs fn with flushes held back. If anything was committed, exactly
// one flush fires when the outermost Batch returns, carrying action (or the
// latest held-back cause when none is given). Nested batches collapse into
// the outermost one. If fn panics the held-back changes stay pending.
func (s *Store[T]) Batch(fn func(), action ...Action) {
	s.mu.Lock()
	s.batchDepth++
	s.mu.Unlock()

	finished := false
	defer func() {
		s.mu.Lock()
		s.batchDepth--
		outermost := s.batchDepth == 0
		cause := s.deferred
		if len(action) > 0 {
			cause = action[0]
		}
		s.mu.Unlock()
		if finished && outermost {
			s.flush(cause, false)
		}
	}()

	fn()
	finished = true
}

// StopFlush holds back flushes until ResumeFlush. Commits keep applying.
func (s *Store[T]) StopFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// ResumeFlush ends a StopFlush window and flushes anything held back, with
// the latest held-back cause.
func (s *Store[T]) ResumeFlush() {
	s.mu.Lock()
	s.stopped = false
	cause := s.deferred
	s.mu.Unlock()
	s.flush(cause, false)
}

// flush requests a flush pass for action. fromTimer is set when a debounce
// timer fires, which always passes the debounce check.
func (s *Store[T]) flush(action Action, fromTimer bool) {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	if s.batchDepth > 0 || s.stopped {
		s.deferred = action
		s.mu.Unlock()
		return
	}
	if s.flushing {
		s.queue.Enqueue(transition[T]{action: action, prev: s.published, current: s.current})
		s.published = s.current
		s.dirty = false
		s.mu.Unlock()
		return
	}
	if s.debounceDefersLocked(action, fromTimer) {
		s.mu.Unlock()
		return
	}

	s.flushing = true
	tr := s.takeLocked(action)
	s.mu.Unlock()

	s.drain(tr)
}

// takeLocked turns the pending window into a transition and resets the
// window.
func (s *Store[T]) takeLocked(action Action) transition[T] {
	tr := transition[T]{action: action, prev: s.published, current: s.current}
	s.published = s.current
	s.dirty = false
	s.deferred = Action{}
	s.cancelTimerLocked()
	s.windowStart = time.Time{}
	s.lastFlush = s.cfg.clock.Now()
	return tr
}

// drain runs tr and then every transition queued meanwhile, one pass each.
// If a subscriber panics the flush is abandoned: the in-progress flag is
// cleared and queued passes are dropped before the panic continues.
func (s *Store[T]) drain(tr transition[T]) {
	done := false
	defer func() {
		if done {
			return
		}
		s.mu.Lock()
		s.flushing = false
		s.queue.Drain()
		s.mu.Unlock()
	}()

	for {
		s.notify(tr)

		s.mu.Lock()
		next, ok := s.nextLocked()
		if !ok {
			s.flushing = false
			s.mu.Unlock()
			done = true
			return
		}
		s.mu.Unlock()
		tr = next
	}
}

// nextLocked dequeues the next pass. A queued pass that is now held back by
// a batch, StopFlush or debounce is merged with everything behind it into
// one pending window starting at its prev. Commits already pending at that
// point are newer than every queued pass, so their cause is kept.
func (s *Store[T]) nextLocked() (transition[T], bool) {
	tr, ok := s.queue.TryDequeue()
	if !ok {
		return transition[T]{}, false
	}

	held := s.batchDepth > 0 || s.stopped
	pendingCause, hadPending := s.deferred, s.dirty
	if !held && !s.debounceDefersLocked(tr.action, false) {
		return tr, true
	}

	latest := tr.action
	for _, rest := range s.queue.Drain() {
		latest = rest.action
	}
	s.published = tr.prev
	s.dirty = true
	s.deferred = latest
	if hadPending {
		s.deferred = pendingCause
	}
	return transition[T]{}, false
}

func (s *Store[T]) notify(tr transition[T]) {
	s.mu.Lock()
	err := s.seal.Check()
	subs := s.subscribers.snapshot()
	seq := s.seq.Next()
	s.mu.Unlock()
	s.mustBeIntact(err)

	start := time.Now()
	c := Change[T]{Prev: tr.prev, Current: tr.current, Action: tr.action, Seq: seq}
	if s.inspect != nil {
		s.inspect(c.erase())
	}
	for _, sub := range subs {
		sub.OnChange(c)
	}

	s.log.Debug("flushed", "action", tr.action.Type, "seq", seq, "subscribers", len(subs))
	s.cfg.hooks.Flushed(s.cfg.name, len(subs), time.Since(start))
}

// debounceDefersLocked applies the debounce policy to a flush request and
// schedules a deferred flush if the request must wait.
func (s *Store[T]) debounceDefersLocked(action Action, fromTimer bool) bool {
	d := s.cfg.debounce
	if d == nil || fromTimer {
		return false
	}

	now := s.cfg.clock.Now()
	var ready bool
	if d.Leading {
		ready = now.Sub(s.lastCall) >= d.Wait ||
			(d.MaxWait > 0 && now.Sub(s.lastFlush) >= d.MaxWait)
	} else {
		ready = d.MaxWait > 0 && !s.windowStart.IsZero() && now.Sub(s.windowStart) >= d.MaxWait
	}
	s.lastCall = now
	if s.windowStart.IsZero() {
		s.windowStart = now
	}
	if ready {
		return false
	}

	s.deferred = action
	s.cancelTimerLocked()
	s.timerGen++
	gen := s.timerGen
	s.stopTimer = s.cfg.clock.AfterFunc(d.Wait, func() { s.fire(gen) })
	return true
}

func (s *Store[T]) cancelTimerLocked() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	s.timerGen++
}

// fire is the debounce timer callback. Timers superseded by a later
// schedule or a flush are ignored.
func (s *Store[T]) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen {
		s.mu.Unlock()
		return
	}
	s.stopTimer = nil
	action := s.deferred
	s.mu.Unlock()

	s.flush(action, true)
}
