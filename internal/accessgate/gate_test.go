package accessgate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedDetector returns queued answers; an empty queue repeats the last.
type scriptedDetector struct {
	mu      sync.Mutex
	answers []detection
	last    detection
	release chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32
}

type detection struct {
	address string
	err     error
}

func (d *scriptedDetector) Detect(ctx context.Context) (string, error) {
	d.calls.Add(1)
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		m := d.maxActive.Load()
		if n <= m || d.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if d.release != nil {
		select {
		case <-d.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.answers) > 0 {
		d.last = d.answers[0]
		d.answers = d.answers[1:]
	}
	return d.last.address, d.last.err
}

func (d *scriptedDetector) queue(answers ...detection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.answers = append(d.answers, answers...)
}

type fakeChecker struct {
	mu         sync.Mutex
	allowed    map[string]bool
	checkErr   error
	managerKey string
	checks     []string
	touches    []string
	enrolls    []string
}

func newChecker(allowed ...string) *fakeChecker {
	c := &fakeChecker{allowed: map[string]bool{}, managerKey: "Hanako"}
	for _, a := range allowed {
		c.allowed[a] = true
	}
	return c
}

func (c *fakeChecker) IsAllowed(_ context.Context, address, _ string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, address)
	if c.checkErr != nil {
		return false, c.checkErr
	}
	return c.allowed[address], nil
}

func (c *fakeChecker) TouchFingerprint(_ context.Context, address, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touches = append(c.touches, address)
	return nil
}

func (c *fakeChecker) Enroll(_ context.Context, address, managerName, _ string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enrolls = append(c.enrolls, managerName)
	if managerName != c.managerKey {
		return false, nil
	}
	c.allowed[address] = true
	return true, nil
}

func (c *fakeChecker) checkCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.checks)
}

type phaseLog struct {
	mu     sync.Mutex
	phases []Phase
}

func (l *phaseLog) observe(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phases = append(l.phases, s.Phase)
}

func (l *phaseLog) list() []Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Phase{}, l.phases...)
}

func newGate(det Detector, chk Checker) (*Gate, *phaseLog) {
	g := New(Options{Detector: det, Checker: chk, Fingerprint: "fp-1", Interval: 10 * time.Millisecond})
	log := &phaseLog{}
	g.OnChange(log.observe)
	return g, log
}

func TestStartAllowedAddressWithSingleDetectionInFlight(t *testing.T) {
	det := &scriptedDetector{release: make(chan struct{})}
	det.queue(detection{address: "203.0.113.7"})
	g, log := newGate(det, newChecker("203.0.113.7"))

	done := make(chan bool)
	go func() { done <- g.Start(context.Background()) }()

	require.Eventually(t, func() bool { return det.active.Load() == 1 }, time.Second, time.Millisecond)
	for i := 0; i < 5; i++ {
		assert.False(t, g.Refresh(context.Background()))
		assert.False(t, g.Retry(context.Background()))
	}
	close(det.release)
	assert.True(t, <-done)

	assert.Equal(t, []Phase{PhaseDetecting, PhaseChecking, PhaseAllowed}, log.list())
	assert.EqualValues(t, 1, det.maxActive.Load())
	assert.EqualValues(t, 1, det.calls.Load())
	state := g.Snapshot()
	assert.Equal(t, "203.0.113.7", state.Address)
	assert.NoError(t, state.Err)
}

func TestStartUnknownAddressIsDenied(t *testing.T) {
	det := &scriptedDetector{}
	det.queue(detection{address: "198.51.100.1"})
	g, _ := newGate(det, newChecker("203.0.113.7"))

	g.Start(context.Background())
	assert.Equal(t, PhaseDenied, g.Snapshot().Phase)
}

func TestDetectionFailureIsNotDenial(t *testing.T) {
	det := &scriptedDetector{}
	det.queue(detection{err: errors.New("dial tcp: timeout")}, detection{address: "203.0.113.7"})
	chk := newChecker("203.0.113.7")
	g, _ := newGate(det, chk)

	g.Start(context.Background())
	state := g.Snapshot()
	assert.Equal(t, PhaseUndetermined, state.Phase)
	assert.ErrorIs(t, state.Err, ErrIdentityDetection)
	assert.Zero(t, chk.checkCount())

	g.Retry(context.Background())
	assert.Equal(t, PhaseAllowed, g.Snapshot().Phase)
}

func TestSilentRefreshSwallowsErrorsOnceAddressKnown(t *testing.T) {
	det := &scriptedDetector{}
	det.queue(detection{address: "203.0.113.7"}, detection{err: errors.New("offline")})
	g, log := newGate(det, newChecker("203.0.113.7"))

	g.Start(context.Background())
	g.Refresh(context.Background())

	state := g.Snapshot()
	assert.Equal(t, PhaseAllowed, state.Phase)
	assert.NoError(t, state.Err)
	assert.Equal(t, []Phase{PhaseDetecting, PhaseChecking, PhaseAllowed}, log.list())
}

func TestRetryFailureKeepsLastDecision(t *testing.T) {
	det := &scriptedDetector{}
	det.queue(detection{address: "203.0.113.7"}, detection{err: errors.New("offline")})
	g, _ := newGate(det, newChecker("203.0.113.7"))

	g.Start(context.Background())
	g.Retry(context.Background())

	assert.Equal(t, PhaseAllowed, g.Snapshot().Phase)
}

func TestSilentRefreshRechecksOnlyWhenAddressChanges(t *testing.T) {
	det := &scriptedDetector{}
	det.queue(detection{address: "203.0.113.7"}, detection{address: "203.0.113.7"}, detection{address: "198.51.100.1"})
	chk := newChecker("203.0.113.7")
	g, log := newGate(det, chk)

	g.Start(context.Background())
	g.Refresh(context.Background())
	assert.Equal(t, 1, chk.checkCount())

	g.Refresh(context.Background())
	assert.Equal(t, 2, chk.checkCount())
	state := g.Snapshot()
	assert.Equal(t, PhaseDenied, state.Phase)
	assert.Equal(t, "198.51.100.1", state.Address)
	assert.NotContains(t, log.list()[3:], PhaseDetecting)
}

func TestCheckErrorFailsClosed(t *testing.T) {
	det := &scriptedDetector{}
	det.queue(detection{address: "203.0.113.7"})
	chk := newChecker("203.0.113.7")
	chk.checkErr = errors.New("proxy 500")
	g, _ := newGate(det, chk)

	g.Start(context.Background())
	state := g.Snapshot()
	assert.Equal(t, PhaseDenied, state.Phase)
	assert.EqualError(t, state.Err, "proxy 500")
}

func TestFingerprintTouchedOncePerAllowedAddress(t *testing.T) {
	det := &scriptedDetector{}
	det.queue(detection{address: "203.0.113.7"})
	chk := newChecker("203.0.113.7")
	g, _ := newGate(det, chk)

	g.Start(context.Background())
	g.Start(context.Background())
	g.Refresh(context.Background())

	assert.Equal(t, []string{"203.0.113.7"}, chk.touches)
}

func TestEnrollTrimsNameAndRechecks(t *testing.T) {
	det := &scriptedDetector{}
	det.queue(detection{address: "203.0.113.7"})
	chk := newChecker()
	g, _ := newGate(det, chk)

	g.Start(context.Background())
	require.Equal(t, PhaseDenied, g.Snapshot().Phase)

	ok, err := g.Enroll(context.Background(), "hanako")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, PhaseDenied, g.Snapshot().Phase)

	ok, err = g.Enroll(context.Background(), "  Hanako \n")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"hanako", "Hanako"}, chk.enrolls)
	assert.Equal(t, PhaseAllowed, g.Snapshot().Phase)
}

func TestEnrollPreconditions(t *testing.T) {
	det := &scriptedDetector{}
	det.queue(detection{err: errors.New("offline")}, detection{address: "203.0.113.7"})
	g, _ := newGate(det, newChecker("203.0.113.7"))

	_, err := g.Enroll(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyManagerName)

	g.Start(context.Background())
	_, err = g.Enroll(context.Background(), "Hanako")
	assert.ErrorIs(t, err, ErrNoAddress)

	g.Retry(context.Background())
	_, err = g.Enroll(context.Background(), "Hanako")
	assert.ErrorIs(t, err, ErrNotDenied)
}

func TestRunRefreshesUntilCancelled(t *testing.T) {
	det := &scriptedDetector{}
	det.queue(detection{address: "203.0.113.7"})
	g, _ := newGate(det, newChecker("203.0.113.7"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- g.Run(ctx) }()

	require.Eventually(t, func() bool { return det.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.EqualValues(t, 1, det.maxActive.Load())
	assert.Equal(t, PhaseAllowed, g.Snapshot().Phase)
}

func TestRunWaitsForRefreshInFlight(t *testing.T) {
	det := &scriptedDetector{release: make(chan struct{}, 1)}
	det.queue(detection{address: "203.0.113.7"})
	det.release <- struct{}{}
	g, _ := newGate(det, newChecker("203.0.113.7"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- g.Run(ctx) }()

	// The first refresh blocks inside detection until ctx ends.
	require.Eventually(t, func() bool { return det.calls.Load() >= 2 && det.active.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.EqualValues(t, 0, det.active.Load())
}
