// Package xserver drives the managed X-server lifecycle: configure,
// start, poll readiness, and stop, through a resource's bound
// internal/launcher, with a per-host start-rate limiter because
// multi-GPU hosts were observed to deadlock on simultaneous X-server
// starts.
package xserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vizstack/broker/internal/launcher"
	"github.com/vizstack/broker/internal/logging"
	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/vserr"
)

var log = logging.L("xserver")

// State values for wait_x_state.
const (
	StateDown = 0
	StateUp   = 1
)

// XServerDelay and MaxGPUsPerSystem derive the default wait_x_state
// budget: (XServerDelay+2)*2*MaxGPUsPerSystem.
const (
	XServerDelay     = 5 * time.Second
	MaxGPUsPerSystem = 8
)

// MaxWaitTimeout is the hard bound on any wait_x_state call,
// regardless of the caller-supplied timeout.
const MaxWaitTimeout = 600 * time.Second

// DefaultBudget derives the worst-case wait budget for nServers
// starting in sequence behind the per-host rate limiter, clamped to
// MaxWaitTimeout. Used by internal/dispatcher when a client supplies no
// (or a non-positive) timeout.
func DefaultBudget(nServers int) time.Duration {
	if nServers < 1 {
		nServers = 1
	}
	budget := (XServerDelay + 2*time.Second) * 2 * time.Duration(nServers)
	if budget > MaxWaitTimeout {
		return MaxWaitTimeout
	}
	return budget
}

type serverKey struct {
	Host    string
	Display int
}

// Lifecycle tracks the running/stopped state of every managed X-server
// and rate-limits start attempts per host.
type Lifecycle struct {
	mu            sync.Mutex
	state         map[serverKey]int
	lastStart     map[string]time.Time
	startInterval time.Duration
}

// New creates a Lifecycle that allows at most one X-server start per
// startInterval on any given host.
func New(startInterval time.Duration) *Lifecycle {
	if startInterval <= 0 {
		startInterval = XServerDelay
	}
	return &Lifecycle{
		state:         make(map[serverKey]int),
		lastStart:     make(map[string]time.Time),
		startInterval: startInterval,
	}
}

// Configure validates that s has a runtime configuration a managed
// X-server process can start from: at least one configured screen.
func Configure(s *resource.Server) error {
	if !s.HasConfiguredScreen() {
		return vserr.Newf(vserr.BadOperation, "server :%d on %s has no configured screen", derefIdx(s.Index), s.Host)
	}
	return nil
}

// Start launches a managed X-server process for s via l, gated by the
// per-host rate limiter. It returns once the start command has been
// issued; the server transitions to StateUp immediately (the helper
// binary daemonizes) and to StateDown in the background when the
// process exits.
func (lc *Lifecycle) Start(ctx context.Context, s *resource.Server, l launcher.Launcher) error {
	if err := Configure(s); err != nil {
		return err
	}
	if err := lc.throttle(ctx, s.Host); err != nil {
		return err
	}

	display := fmt.Sprintf(":%d", derefIdx(s.Index))
	handle, err := l.Run(ctx, "/opt/vizstack/bin/vs-aew",
		[]string{"/opt/vizstack/bin/start-x-server", display, "-logverbose", "6"},
		launcher.RunOptions{CaptureOutput: true})
	if err != nil {
		return vserr.Newf(vserr.InternalError, "start x server %s%s: %v", s.Host, display, err)
	}

	key := serverKey{Host: s.Host, Display: derefIdx(s.Index)}
	lc.setState(key, StateUp)
	log.Info("x server starting", "host", s.Host, "display", display)

	go func() {
		_ = handle.Wait()
		lc.setState(key, StateDown)
		log.Info("x server exited", "host", s.Host, "display", display, "exitCode", handle.ExitCode())
	}()
	return nil
}

// Stop issues the kill for s's X-server and returns; callers are
// expected to follow with WaitState(...,StateDown,...).
func (lc *Lifecycle) Stop(ctx context.Context, s *resource.Server, l launcher.Launcher) error {
	display := fmt.Sprintf(":%d", derefIdx(s.Index))
	handle, err := l.Run(ctx, "/opt/vizstack/bin/vs-Xkill", []string{display}, launcher.RunOptions{})
	if err != nil {
		return vserr.Newf(vserr.InternalError, "stop x server %s%s: %v", s.Host, display, err)
	}
	_ = handle.Wait()
	lc.setState(serverKey{Host: s.Host, Display: derefIdx(s.Index)}, StateDown)
	return nil
}

// State returns the last known state for a server, StateDown if never
// started.
func (lc *Lifecycle) State(host string, display int) int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.state[serverKey{Host: host, Display: display}]
}

// WaitState polls until every server in servers reports want, or
// timeout elapses (clamped to MaxWaitTimeout). It does not hold the
// broker's global lock; callers must have released it before calling
// this, since it may sleep up to timeout.
func (lc *Lifecycle) WaitState(ctx context.Context, servers []*resource.Server, want int, timeout time.Duration) error {
	if timeout <= 0 || timeout > MaxWaitTimeout {
		timeout = MaxWaitTimeout
	}
	deadline := time.Now().Add(timeout)
	const pollInterval = 200 * time.Millisecond

	for {
		if lc.allMatch(servers, want) {
			return nil
		}
		if time.Now().After(deadline) {
			return vserr.Newf(vserr.InternalError, "wait_x_state: timed out after %s waiting for state %d", timeout, want)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (lc *Lifecycle) allMatch(servers []*resource.Server, want int) bool {
	for _, s := range servers {
		if lc.State(s.Host, derefIdx(s.Index)) != want {
			return false
		}
	}
	return true
}

func (lc *Lifecycle) setState(key serverKey, state int) {
	lc.mu.Lock()
	lc.state[key] = state
	lc.mu.Unlock()
}

// throttle blocks until it is this host's turn to start an X-server,
// without holding lc.mu while sleeping.
func (lc *Lifecycle) throttle(ctx context.Context, host string) error {
	lc.mu.Lock()
	now := time.Now()
	wait := time.Duration(0)
	if last, ok := lc.lastStart[host]; ok {
		if elapsed := now.Sub(last); elapsed < lc.startInterval {
			wait = lc.startInterval - elapsed
		}
	}
	lc.lastStart[host] = now.Add(wait)
	lc.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func derefIdx(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
