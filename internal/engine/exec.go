package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"omegagen/internal/logging"
)

// DefaultBinary is where the calculator is usually installed.
const DefaultBinary = "/usr/local/bin/omegacalc"

// ExecConfig configures an ExecEngine.
type ExecConfig struct {
	Binary string
	// Args precede the script file on the command line.
	Args []string
	// WorkDir holds the temporary script files. Empty means os.TempDir().
	WorkDir        string
	Timeout        time.Duration
	MaxOutputBytes int64
	// KeepScript leaves the script file on disk for debugging.
	KeepScript bool
}

// DefaultExecConfig returns the configuration used when none is given.
func DefaultExecConfig() ExecConfig {
	return ExecConfig{
		Binary:         DefaultBinary,
		Timeout:        2 * time.Minute,
		MaxOutputBytes: 16 * 1024 * 1024,
	}
}

// ExecEngine runs the calculator as a subprocess: the script is written to a
// temporary file and the binary is invoked with that file as its last
// argument. Stdout is the result.
type ExecEngine struct {
	config ExecConfig
}

// NewExecEngine creates an engine for config, filling unset fields from
// DefaultExecConfig.
func NewExecEngine(config ExecConfig) *ExecEngine {
	defaults := DefaultExecConfig()
	if config.Binary == "" {
		config.Binary = defaults.Binary
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = defaults.MaxOutputBytes
	}
	logging.EngineDebug("Creating ExecEngine: binary=%s, timeout=%s", config.Binary, config.Timeout)
	return &ExecEngine{config: config}
}

// Run writes script to a temporary file and runs the calculator on it.
// Output beyond MaxOutputBytes is an error, never a partial result.
func (e *ExecEngine) Run(ctx context.Context, script string) (string, error) {
	timer := logging.StartTimer(logging.CategoryEngine, "omegacalc run")
	defer timer.StopWithThreshold(e.config.Timeout / 2)
	log := logging.Get(logging.CategoryEngine).With("binary", e.config.Binary)

	path, err := e.writeScript(script)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	if !e.config.KeepScript {
		defer os.Remove(path)
	}

	execCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	args := append(append([]string(nil), e.config.Args...), path)
	cmd := exec.CommandContext(execCtx, e.config.Binary, args...)
	cmd.Dir = e.config.WorkDir
	cmd.WaitDelay = time.Second

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: e.config.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = &limitedWriter{w: &stderrBuf, max: e.config.MaxOutputBytes}

	log.Debug("Executing: %v", args)
	err = cmd.Run()

	if err != nil {
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			log.Warn("Engine killed after %s", e.config.Timeout)
			return "", fmt.Errorf("%w: timeout after %s: %w", ErrEngineUnavailable, e.config.Timeout, execCtx.Err())
		case errors.Is(execCtx.Err(), context.Canceled):
			return "", fmt.Errorf("%w: %w", ErrEngineUnavailable, execCtx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(stderrBuf.String())
			out := tail(strings.TrimSpace(stdoutBuf.String()), diagnosticBytes)
			log.Warn("Engine exited %d: %s", exitErr.ExitCode(), stderr)
			return "", fmt.Errorf("%w: exit code %d: %s (stdout: %s)",
				ErrEngineUnavailable, exitErr.ExitCode(), stderr, out)
		}
		log.Error("Engine failed to start: %v", err)
		return "", fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	if stdout.truncated {
		log.Warn("Engine output truncated: %d bytes discarded", stdout.discarded)
		return "", fmt.Errorf("%w: %w: limit %d bytes, %d discarded",
			ErrEngineUnavailable, ErrOutputTruncated, e.config.MaxOutputBytes, stdout.discarded)
	}

	log.Info("Engine completed: %d bytes of output", stdoutBuf.Len())
	return stdoutBuf.String(), nil
}

// diagnosticBytes bounds the stdout tail quoted in exit errors.
const diagnosticBytes = 2048

// tail returns the last n bytes of s, prefixed with "..." when cut.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

func (e *ExecEngine) writeScript(script string) (string, error) {
	f, err := os.CreateTemp(e.config.WorkDir, "omega-*.in")
	if err != nil {
		return "", fmt.Errorf("failed to create script file: %w", err)
	}
	defer f.Close()

	if _, err := io.WriteString(f, script+"\n"); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write script file: %w", err)
	}
	logging.EngineDebug("Wrote script to %s (%d bytes)", f.Name(), len(script)+1)
	return f.Name(), nil
}

// limitedWriter discards everything past max bytes while reporting full
// writes, so the child process never sees a short write.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
