// Package launcher runs commands "at a locality" (a host, or wherever a
// batch reservation was granted) and hands back a process handle. Three
// variants exist: Local (fork/exec on the broker host), RemoteShell (ssh),
// and Batch (a job step inside a scheduler reservation). Children run
// in their own process group, capture output up to a size limit, and
// receive an explicit environment map.
package launcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/vizstack/broker/internal/logging"
)

var log = logging.L("launcher")

// MaxOutputSize bounds how much stdout/stderr a launcher captures.
const MaxOutputSize = 1 << 20 // 1MB

// forbiddenPreloadSuffix is stripped from any LD_PRELOAD entry the
// caller supplies.
const forbiddenPreloadSuffix = "librrfaker.so"

// ProcessHandle is a running (or completed) child process.
type ProcessHandle interface {
	Wait() error
	Kill() error
	ExitCode() int
	Stdout() []byte
	Stderr() []byte
}

// RunOptions configures one Run invocation.
type RunOptions struct {
	Env           map[string]string
	Stdin         io.Reader
	CaptureOutput bool
}

// Launcher runs a command at a locality and yields a process handle.
type Launcher interface {
	// Kind identifies the launcher variant: "local", "ssh", or "batch".
	Kind() string
	// Locality is the host this launcher runs commands on, or "" if the
	// locality is only resolved once a reservation is granted.
	Locality() string
	Run(ctx context.Context, cmd string, args []string, opts RunOptions) (ProcessHandle, error)
	// IsOwner reports whether this launcher owns the underlying
	// reservation: closing a non-owning (copied/deserialized) launcher
	// never releases it. Local and ssh launchers are always owners —
	// they hold no reservation to release.
	IsOwner() bool
	// Close releases any reservation this launcher owns. Idempotent.
	Close() error
}

// cleanEnv builds the environment slice for a child process, stripping
// any LD_PRELOAD entries that reference the faker library.
func cleanEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		if k == "LD_PRELOAD" {
			v = stripPreload(v)
			if v == "" {
				continue
			}
		}
		out = append(out, k+"="+v)
	}
	return out
}

func stripPreload(v string) string {
	parts := strings.Split(v, ":")
	kept := parts[:0]
	for _, p := range parts {
		if !strings.Contains(p, forbiddenPreloadSuffix) {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ":")
}

// limitedBuffer caps how many bytes are retained, discarding the rest
// without erroring.
type limitedBuffer struct {
	buf     bytes.Buffer
	limit   int
	written int
}

func (w *limitedBuffer) Write(p []byte) (int, error) {
	if w.written >= w.limit {
		return len(p), nil
	}
	remaining := w.limit - w.written
	if len(p) > remaining {
		p = p[:remaining]
	}
	n, err := w.buf.Write(p)
	w.written += n
	return len(p), err
}

// execHandle wraps an *exec.Cmd as a ProcessHandle.
type execHandle struct {
	cmd      *exec.Cmd
	stdout   *limitedBuffer
	stderr   *limitedBuffer
	waitErr  error
	waited   bool
	exitCode int
}

func (h *execHandle) Wait() error {
	if h.waited {
		return h.waitErr
	}
	h.waited = true
	h.waitErr = h.cmd.Wait()
	if h.cmd.ProcessState != nil {
		h.exitCode = h.cmd.ProcessState.ExitCode()
	} else {
		h.exitCode = -1
	}
	return h.waitErr
}

func (h *execHandle) Kill() error {
	return killProcessGroup(h.cmd)
}

func (h *execHandle) ExitCode() int { return h.exitCode }

func (h *execHandle) Stdout() []byte { return h.stdout.buf.Bytes() }
func (h *execHandle) Stderr() []byte { return h.stderr.buf.Bytes() }

// runLocalCommand execs name/args with the given environment, process
// group isolation, and closed inherited file descriptors, bounded by ctx.
func runLocalCommand(ctx context.Context, name string, args []string, opts RunOptions) (ProcessHandle, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = cleanEnv(opts.Env)
	cmd.Stdin = opts.Stdin

	h := &execHandle{cmd: cmd, stdout: &limitedBuffer{limit: MaxOutputSize}, stderr: &limitedBuffer{limit: MaxOutputSize}}
	cmd.Stdout = h.stdout
	cmd.Stderr = h.stderr
	if !opts.CaptureOutput {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}

	setProcessGroup(cmd)
	closeInheritedFDs(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launcher: start %s: %w", name, err)
	}
	return h, nil
}

// WaitWithTimeout waits for h to finish, killing it if timeout elapses
// first, and returns whether it completed in time.
func WaitWithTimeout(h ProcessHandle, timeout time.Duration) (completed bool, err error) {
	done := make(chan error, 1)
	go func() { done <- h.Wait() }()
	select {
	case err = <-done:
		return true, err
	case <-time.After(timeout):
		_ = h.Kill()
		<-done
		return false, nil
	}
}
