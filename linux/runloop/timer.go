package runloop

import (
	"time"
)

// Timer is a one-shot callback owned by a Loop.
type Timer struct {
	deadline time.Time
	seq      uint64
	f        func()
	loop     *Loop
	active   bool
}

// AddTimer schedules f to run d from now. Loop goroutine only.
func (l *Loop) AddTimer(d time.Duration, f func()) *Timer {
	l.seq++
	t := &Timer{
		deadline: l.now().Add(d),
		seq:      l.seq,
		f:        f,
		loop:     l,
		active:   true,
	}

	// keep timers sorted by deadline, insertion order for equal deadlines
	i := len(l.timers)
	for i > 0 && l.timers[i-1].deadline.After(t.deadline) {
		i--
	}
	l.timers = append(l.timers, nil)
	copy(l.timers[i+1:], l.timers[i:])
	l.timers[i] = t

	return t
}

// Stop removes the timer. It reports whether the timer was still pending.
func (t *Timer) Stop() bool {
	if t == nil || !t.active {
		return false
	}
	t.active = false

	l := t.loop
	for i, v := range l.timers {
		if v == t {
			l.timers = append(l.timers[:i], l.timers[i+1:]...)
			break
		}
	}
	return true
}

// Deadline returns the time the timer fires.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

func (l *Loop) nextTimeout() (time.Duration, bool) {
	if len(l.timers) == 0 {
		return 0, false
	}
	d := l.timers[0].deadline.Sub(l.now())
	if d < 0 {
		d = 0
	}
	return d, true
}

func (l *Loop) fireTimers() int {
	n := 0
	now := l.now()
	for len(l.timers) > 0 && !l.timers[0].deadline.After(now) {
		t := l.timers[0]
		l.timers = l.timers[1:]
		t.active = false
		t.f()
		n++
	}
	return n
}
