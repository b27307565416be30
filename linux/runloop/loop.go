// Package runloop is a single-threaded event loop: file descriptor data sources,
// callbacks posted from other goroutines, and a deadline ordered timer list.
// Every callback runs on the goroutine that drives the loop and must not block.
package runloop

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/blesm"
	"golang.org/x/sys/unix"
)

// ErrClosed is returned when polling a closed loop.
var ErrClosed = errors.New("run loop closed")

type Loop struct {
	mu     sync.Mutex
	posted []func()
	closed bool

	wakeR, wakeW int

	timers  []*Timer
	seq     uint64
	sources []*Source

	now func() time.Time
	log blesm.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces time.Now, for tests that drive timers by hand.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		l.now = now
	}
}

// WithLogger overrides the component logger.
func WithLogger(lg blesm.Logger) Option {
	return func(l *Loop) {
		l.log = lg
	}
}

func New(opts ...Option) (*Loop, error) {
	p := make([]int, 2)
	if err := unix.Pipe2(p, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, errors.Wrap(err, "wake pipe")
	}

	l := &Loop{
		wakeR: p[0],
		wakeW: p[1],
		now:   time.Now,
		log:   blesm.ComponentLogger("runloop"),
	}
	for _, o := range opts {
		o(l)
	}

	return l, nil
}

// Close releases the wake pipe. Sources are not closed.
func (l *Loop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	err := unix.Close(l.wakeR)
	if err2 := unix.Close(l.wakeW); err == nil {
		err = err2
	}
	return err
}

// Now returns the loop clock.
func (l *Loop) Now() time.Time {
	return l.now()
}

// Post queues f to run on the loop goroutine. Safe for concurrent use.
func (l *Loop) Post(f func()) {
	l.mu.Lock()
	wake := len(l.posted) == 0 && !l.closed
	l.posted = append(l.posted, f)
	l.mu.Unlock()

	if wake {
		_, _ = unix.Write(l.wakeW, []byte{1})
	}
}

func (l *Loop) drainWake() {
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(l.wakeR, buf)
		if n <= 0 || err != nil {
			return
		}
	}
}

func (l *Loop) runPosted() int {
	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()

	for _, f := range posted {
		f()
	}
	return len(posted)
}

func (l *Loop) hasPosted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.posted) > 0
}

// Poll runs one iteration. It waits at most timeout (negative waits for the next
// timer or forever) for a data source or posted callback, runs every ready source,
// then the posted callbacks, then every expired timer.
func (l *Loop) Poll(timeout time.Duration) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	wait := timeout
	if d, ok := l.nextTimeout(); ok && (wait < 0 || d < wait) {
		wait = d
	}
	if l.hasPosted() {
		wait = 0
	}

	ms := -1
	if wait >= 0 {
		ms = int((wait + time.Millisecond - 1) / time.Millisecond)
	}

	fds := make([]unix.PollFd, 0, len(l.sources)+1)
	fds = append(fds, unix.PollFd{Fd: int32(l.wakeR), Events: unix.POLLIN})
	srcs := make([]*Source, len(l.sources))
	copy(srcs, l.sources)
	for _, s := range srcs {
		fds = append(fds, unix.PollFd{Fd: int32(s.fd), Events: unix.POLLIN})
	}

	_, err := unix.Poll(fds, ms)
	if err == unix.EINTR {
		l.log.Debug("poll interrupted")
	} else if err != nil {
		return errors.Wrap(err, "poll")
	}

	if fds[0].Revents&unix.POLLIN != 0 {
		l.drainWake()
	}
	for i, s := range srcs {
		if s.removed {
			continue
		}
		rev := fds[i+1].Revents
		if rev&unix.POLLNVAL != 0 {
			l.log.Warnf("source fd %d is not open, removing it", s.fd)
			s.Remove()
			continue
		}
		if rev&(unix.POLLHUP|unix.POLLERR) != 0 {
			l.log.Debugf("source fd %d: revents 0x%x", s.fd, rev)
		}
		if rev&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			s.handler(s.fd)
		}
	}

	l.runPosted()
	l.fireTimers()
	return nil
}

// RunPending runs posted callbacks and expired timers until neither remains,
// without waiting on data sources. It returns the number of callbacks run.
func (l *Loop) RunPending() int {
	l.drainWake()

	total := 0
	for {
		n := l.runPosted()
		n += l.fireTimers()
		if n == 0 {
			return total
		}
		total += n
	}
}

// Run polls until ctx is done or the loop fails.
func (l *Loop) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			l.Post(func() {})
		case <-done:
		}
	}()

	for ctx.Err() == nil {
		if err := l.Poll(-1); err != nil {
			l.log.Errorf("run: %v", err)
			return err
		}
	}
	l.log.Debugf("run stopped: %v", ctx.Err())
	return ctx.Err()
}
