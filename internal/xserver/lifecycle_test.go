package xserver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vizstack/broker/internal/launcher"
	"github.com/vizstack/broker/internal/resource"
)

// fakeLauncher records every command it was asked to run and hands back
// a handle that blocks Wait() until the test releases it, standing in
// for the real X-server helper process.
type fakeLauncher struct {
	mu       sync.Mutex
	commands [][]string
	release  chan struct{}
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{release: make(chan struct{})}
}

func (f *fakeLauncher) Kind() string     { return "fake" }
func (f *fakeLauncher) Locality() string { return "n0" }
func (f *fakeLauncher) IsOwner() bool    { return true }
func (f *fakeLauncher) Close() error     { return nil }

func (f *fakeLauncher) Run(ctx context.Context, cmd string, args []string, opts launcher.RunOptions) (launcher.ProcessHandle, error) {
	f.mu.Lock()
	f.commands = append(f.commands, append([]string{cmd}, args...))
	f.mu.Unlock()
	return &fakeHandle{release: f.release}, nil
}

type fakeHandle struct {
	release chan struct{}
}

func (h *fakeHandle) Wait() error {
	<-h.release
	return nil
}
func (h *fakeHandle) Kill() error      { return nil }
func (h *fakeHandle) ExitCode() int    { return 0 }
func (h *fakeHandle) Stdout() []byte   { return nil }
func (h *fakeHandle) Stderr() []byte   { return nil }

func serverAt(host string, display int) *resource.Server {
	idx := display
	return &resource.Server{
		Index:   &idx,
		Host:    host,
		Screens: map[int]*resource.Screen{0: {Number: 0}},
	}
}

func TestConfigureRejectsServerWithNoScreens(t *testing.T) {
	s := &resource.Server{Index: new(int), Host: "n0"}
	if err := Configure(s); err == nil {
		t.Fatal("expected error for server with no configured screens")
	}
}

func TestStartTransitionsToUpImmediately(t *testing.T) {
	lc := New(time.Millisecond)
	fl := newFakeLauncher()
	s := serverAt("n0", 0)

	if err := lc.Start(context.Background(), s, fl); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := lc.State("n0", 0); got != StateUp {
		t.Fatalf("State() = %d, want %d", got, StateUp)
	}
	close(fl.release)
}

func TestStartTransitionsToDownWhenProcessExits(t *testing.T) {
	lc := New(time.Millisecond)
	fl := newFakeLauncher()
	s := serverAt("n0", 0)

	if err := lc.Start(context.Background(), s, fl); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	close(fl.release)

	if err := lc.WaitState(context.Background(), []*resource.Server{s}, StateDown, time.Second); err != nil {
		t.Fatalf("WaitState(down) error = %v", err)
	}
}

func TestWaitStateTimesOut(t *testing.T) {
	lc := New(time.Millisecond)
	s := serverAt("n0", 0)
	err := lc.WaitState(context.Background(), []*resource.Server{s}, StateUp, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestThrottleEnforcesPerHostInterval(t *testing.T) {
	lc := New(50 * time.Millisecond)
	fl := newFakeLauncher()
	defer close(fl.release)

	s0 := serverAt("n0", 0)
	s1 := serverAt("n0", 1)

	start := time.Now()
	if err := lc.Start(context.Background(), s0, fl); err != nil {
		t.Fatalf("Start(s0) error = %v", err)
	}
	if err := lc.Start(context.Background(), s1, fl); err != nil {
		t.Fatalf("Start(s1) error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("second start on same host issued after only %s, want >= 50ms", elapsed)
	}
}

func TestDefaultBudgetClampsToMaxWaitTimeout(t *testing.T) {
	if got := DefaultBudget(1000); got != MaxWaitTimeout {
		t.Fatalf("DefaultBudget(1000) = %s, want clamp to %s", got, MaxWaitTimeout)
	}
}
