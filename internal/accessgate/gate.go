// Package accessgate keeps an admin client locked until the proxy confirms
// that the client's public address is on the allowlist.
package accessgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Phase is the visible state of the gate.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseDetecting Phase = "detecting-address"
	PhaseChecking  Phase = "checking-allowed"
	PhaseAllowed   Phase = "allowed"
	PhaseDenied    Phase = "denied"
	// PhaseUndetermined means no address could be obtained yet. It is not a denial.
	PhaseUndetermined Phase = "address-unknown"
)

// DefaultInterval is the silent re-detection period.
const DefaultInterval = 10 * time.Second

var (
	// ErrIdentityDetection wraps public address discovery failures.
	ErrIdentityDetection = errors.New("public address detection failed")
	ErrNoAddress         = errors.New("no public address detected yet")
	ErrNotDenied         = errors.New("enrollment is only offered while denied")
	ErrEmptyManagerName  = errors.New("manager name is required")
)

// Checker asks the proxy about allowlist membership and enrollment.
type Checker interface {
	IsAllowed(ctx context.Context, address, fingerprint string) (bool, error)
	TouchFingerprint(ctx context.Context, address, fingerprint string) error
	Enroll(ctx context.Context, address, managerName, fingerprint string) (bool, error)
}

// State is a snapshot of the gate.
type State struct {
	Phase     Phase
	Address   string
	Err       error
	CheckedAt time.Time
}

// Options configures a gate.
type Options struct {
	Detector    Detector
	Checker     Checker
	Fingerprint string
	Interval    time.Duration
	Logger      *zap.Logger
}

// Gate is the client-side access state machine.
type Gate struct {
	detector    Detector
	checker     Checker
	fingerprint string
	interval    time.Duration
	logger      *zap.Logger
	now         func() time.Time

	inFlight atomic.Bool
	stale    atomic.Bool

	mu        sync.Mutex
	state     State
	detected  bool
	touched   string
	observers []func(State)
}

// New builds a gate in the idle phase.
func New(opts Options) *Gate {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		detector:    opts.Detector,
		checker:     opts.Checker,
		fingerprint: opts.Fingerprint,
		interval:    interval,
		logger:      logger,
		now:         time.Now,
		state:       State{Phase: PhaseIdle},
	}
}

// OnChange registers fn to receive every state change.
func (g *Gate) OnChange(fn func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, fn)
}

// Snapshot returns the current state.
func (g *Gate) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Start detects the address and checks it, showing every intermediate phase.
// It returns false when another detection was already in flight.
func (g *Gate) Start(ctx context.Context) bool {
	return g.tick(ctx, false)
}

// Retry is the manual action offered after a detection failure.
func (g *Gate) Retry(ctx context.Context) bool {
	return g.tick(ctx, false)
}

// Refresh re-detects silently and re-checks only when the address changed.
func (g *Gate) Refresh(ctx context.Context) bool {
	return g.tick(ctx, true)
}

// Run starts the gate and refreshes it every interval until ctx ends.
// Each refresh runs on its own goroutine; overlapping ones are skipped.
// Run returns only after every refresh it started has finished.
func (g *Gate) Run(ctx context.Context) error {
	g.Start(ctx)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				g.Refresh(ctx)
			}()
		}
	}
}

// Enroll asks to allowlist the detected address using the manager's name,
// then re-runs detection and the check.
func (g *Gate) Enroll(ctx context.Context, managerName string) (bool, error) {
	name := strings.TrimSpace(managerName)
	if name == "" {
		return false, ErrEmptyManagerName
	}
	current := g.Snapshot()
	if current.Address == "" {
		return false, ErrNoAddress
	}
	if current.Phase != PhaseDenied {
		return false, ErrNotDenied
	}

	ok, err := g.checker.Enroll(ctx, current.Address, name, g.fingerprint)
	if err != nil {
		return false, fmt.Errorf("enroll %s: %w", current.Address, err)
	}
	if !ok {
		g.logger.Info("enrollment refused", zap.String("address", current.Address))
		return false, nil
	}
	g.stale.Store(true)
	g.Start(ctx)
	return true, nil
}

func (g *Gate) tick(ctx context.Context, silent bool) bool {
	if !g.inFlight.CompareAndSwap(false, true) {
		g.logger.Debug("address detection already in flight")
		return false
	}
	defer g.inFlight.Store(false)

	previous := g.Snapshot()
	if !silent {
		g.update(func(s *State) { s.Phase = PhaseDetecting })
	}

	address, err := g.detector.Detect(ctx)
	if err != nil {
		g.detectionFailed(previous, err)
		return true
	}

	decided := previous.Phase == PhaseAllowed || previous.Phase == PhaseDenied
	if silent && decided && address == previous.Address && !g.stale.Load() {
		return true
	}
	if silent && previous.Address != "" && address != previous.Address {
		g.logger.Info("public address changed", zap.String("from", previous.Address), zap.String("to", address))
	}
	if !silent {
		g.update(func(s *State) {
			s.Phase = PhaseChecking
			s.Address = address
		})
	}

	g.stale.Store(false)
	allowed, err := g.checker.IsAllowed(ctx, address, g.fingerprint)
	g.mu.Lock()
	g.detected = true
	g.mu.Unlock()
	if err != nil {
		g.logger.Warn("allowance check failed", zap.String("address", address), zap.Error(err))
		g.update(func(s *State) {
			*s = State{Phase: PhaseDenied, Address: address, Err: err, CheckedAt: g.now()}
		})
		return true
	}

	phase := PhaseDenied
	if allowed {
		phase = PhaseAllowed
	}
	g.update(func(s *State) {
		*s = State{Phase: phase, Address: address, CheckedAt: g.now()}
	})
	if allowed {
		g.touch(ctx, address)
	}
	return true
}

// detectionFailed surfaces the error only while no address was ever obtained.
func (g *Gate) detectionFailed(previous State, err error) {
	if !errors.Is(err, ErrIdentityDetection) {
		err = fmt.Errorf("%w: %w", ErrIdentityDetection, err)
	}
	g.mu.Lock()
	detected := g.detected
	g.mu.Unlock()

	if detected {
		g.logger.Debug("address refresh failed", zap.Error(err))
		if previous.Phase != g.Snapshot().Phase {
			g.update(func(s *State) { *s = previous })
		}
		return
	}
	g.logger.Warn("address detection failed", zap.Error(err))
	g.update(func(s *State) {
		*s = State{Phase: PhaseUndetermined, Err: err}
	})
}

// touch refreshes the fingerprint once per allowed address. Failures are ignored.
func (g *Gate) touch(ctx context.Context, address string) {
	g.mu.Lock()
	done := g.touched == address
	g.mu.Unlock()
	if done || g.fingerprint == "" {
		return
	}
	if err := g.checker.TouchFingerprint(ctx, address, g.fingerprint); err != nil {
		g.logger.Debug("fingerprint touch failed", zap.String("address", address), zap.Error(err))
		return
	}
	g.mu.Lock()
	g.touched = address
	g.mu.Unlock()
}

func (g *Gate) update(fn func(*State)) {
	g.mu.Lock()
	before := g.state
	fn(&g.state)
	after := g.state
	observers := append([]func(State){}, g.observers...)
	g.mu.Unlock()

	if before.Phase == after.Phase && before.Address == after.Address && before.Err == after.Err {
		return
	}
	g.logger.Debug("gate state", zap.String("phase", string(after.Phase)), zap.String("address", after.Address))
	for _, fn := range observers {
		fn(after)
	}
}
