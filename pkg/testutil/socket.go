package testutil

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSocketClosed is returned by Read after Close.
var ErrSocketClosed = errors.New("socket closed")

// ScriptedSocket is an in-memory push socket. Frames queued with Push are
// returned by Read in order; Fail ends the stream with an error.
type ScriptedSocket struct {
	frames chan []byte
	mu     sync.Mutex
	err    error
	done   chan struct{}
	closed bool
}

func NewScriptedSocket() *ScriptedSocket {
	return &ScriptedSocket{
		frames: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

func (s *ScriptedSocket) Push(frame string) {
	s.frames <- []byte(frame)
}

// Fail makes pending and future reads return err once queued frames drain.
func (s *ScriptedSocket) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.err = err
	s.closed = true
	close(s.done)
}

func (s *ScriptedSocket) Read(ctx context.Context) ([]byte, error) {
	select {
	case f := <-s.frames:
		return f, nil
	default:
	}
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return nil, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *ScriptedSocket) Close() error {
	s.Fail(ErrSocketClosed)
	return nil
}

func (s *ScriptedSocket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ManualClock is a settable clock shared by tests that need wall time.
type ManualClock struct {
	mu      sync.Mutex
	current time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{current: start}
}

func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// Eventually polls cond every few milliseconds until it holds or timeout passes.
func Eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
