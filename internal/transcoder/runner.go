package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/metrics"
)

// Runner executes an external command given as name followed by arguments
type Runner interface {
	// Run executes the command, discarding its output
	Run(ctx context.Context, args []string) error
	// Output executes the command and returns its stdout
	Output(ctx context.Context, args []string) ([]byte, error)
}

// ExternalToolError is returned when a command exits non-zero
type ExternalToolError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ExternalToolError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.ExitCode, stderr)
}

// ErrEmptyCommand is returned when sanitizing leaves no command to run
var ErrEmptyCommand = errors.New("empty command")

var nbspReplacer = strings.NewReplacer("\u00a0", " ", "\u202f", " ")

// SanitizeArgs normalizes non-breaking spaces, trims every argument and
// drops the ones left empty.
func SanitizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(nbspReplacer.Replace(arg))
		if arg == "" {
			continue
		}
		out = append(out, arg)
	}
	return out
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	// Timeout bounds each invocation when positive
	Timeout time.Duration
	Logger  *logging.Logger
}

// NewExecRunner creates a runner with an optional per-command timeout
func NewExecRunner(timeout time.Duration, logger *logging.Logger) *ExecRunner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ExecRunner{Timeout: timeout, Logger: logger.WithComponent("runner")}
}

// Run executes args[0] with args[1:] after sanitizing them
func (r *ExecRunner) Run(ctx context.Context, args []string) error {
	_, err := r.exec(ctx, args, false)
	return err
}

// Output executes the command and returns its stdout
func (r *ExecRunner) Output(ctx context.Context, args []string) ([]byte, error) {
	return r.exec(ctx, args, true)
}

func (r *ExecRunner) exec(ctx context.Context, args []string, captureStdout bool) ([]byte, error) {
	args = SanitizeArgs(args)
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	name := filepath.Base(args[0])
	start := time.Now()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	if captureStdout {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = &ExternalToolError{
				Command:  name,
				Args:     args[1:],
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		} else {
			err = fmt.Errorf("failed to run %s: %w", name, err)
		}
	}

	metrics.RecordCommand(name, duration.Seconds(), err)
	if r.Logger != nil {
		r.Logger.LogCommand(name, len(args)-1, duration, err)
	}

	if err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}
