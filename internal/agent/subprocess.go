package agent

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"

	"github.com/arittr/chopstack/internal/cherr"
)

// SubprocessInvoker runs an external CLI (default `claude --print`) as the
// agent, one process per task, grounded on the teacher's runClaude helper.
type SubprocessInvoker struct {
	Command string
	Args    []string
	UsePTY  bool
}

// NewSubprocessInvoker builds an invoker for the given command. An empty
// command defaults to "claude" with a "--print" flag.
func NewSubprocessInvoker(command string, args []string) *SubprocessInvoker {
	if command == "" {
		command = "claude"
		args = []string{"--print"}
	}
	return &SubprocessInvoker{Command: command, Args: args}
}

// Execute runs the configured command with req.Prompt appended to its
// arguments and req.Workdir as its working directory.
func (s *SubprocessInvoker) Execute(ctx context.Context, req Request) (Result, error) {
	args := append(append([]string(nil), s.Args...), req.Prompt)
	cmd := exec.CommandContext(ctx, s.Command, args...)
	cmd.Dir = req.Workdir

	if !s.UsePTY {
		output, err := cmd.Output()
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return Result{Output: string(output), ExitCode: exitErr.ExitCode()},
					cherr.Wrapf(err, "agent exited non-zero for task %s: %s", req.TaskID, string(exitErr.Stderr))
			}
			return Result{}, cherr.Wrapf(err, "failed to run agent for task %s", req.TaskID)
		}
		return Result{Output: string(output), ExitCode: 0}, nil
	}

	return s.executeWithPTY(cmd, req)
}

// executeWithPTY attaches a pseudo-terminal to the subprocess's stdout and
// stderr. Some agent CLIs only emit structured streaming output when they
// detect a TTY; plain pipes make them batch instead.
func (s *SubprocessInvoker) executeWithPTY(cmd *exec.Cmd, req Request) (Result, error) {
	ptmx, pts, err := pty.Open()
	if err != nil {
		return Result{}, cherr.Wrapf(err, "failed to open pty for task %s", req.TaskID)
	}
	defer func() { _ = ptmx.Close() }()

	cmd.Stdout = pts
	cmd.Stderr = pts

	if err := cmd.Start(); err != nil {
		_ = pts.Close()
		return Result{}, cherr.Wrapf(err, "failed to start agent for task %s", req.TaskID)
	}
	_ = pts.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, ptmx); err != nil {
		var pathErr *os.PathError
		if !(errors.As(err, &pathErr) && pathErr.Err == syscall.EIO) {
			return Result{}, cherr.Wrapf(err, "failed to read agent output for task %s", req.TaskID)
		}
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{Output: buf.String(), ExitCode: exitErr.ExitCode()},
				cherr.Wrapf(err, "agent exited non-zero for task %s", req.TaskID)
		}
		return Result{}, cherr.Wrapf(err, "agent failed for task %s", req.TaskID)
	}

	return Result{Output: buf.String(), ExitCode: 0}, nil
}
