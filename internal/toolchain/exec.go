package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
)

// CommandError reports a command that started but exited non-zero.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
}

// Result holds the captured output of a completed command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// OutputFunc receives one line of subprocess output as it is produced.
// Stream distinguishes "stdout" from "stderr".
type OutputFunc func(stream, line string)

// Runner executes external tools on behalf of workflow steps.
// When DryRun is set, commands are printed through Echo but never started.
type Runner struct {
	Manager *ProcessManager
	DryRun  bool
	Echo    func(cmdline string) // called with the rendered command line; nil disables
	Output  OutputFunc           // optional line-level output hook
}

// NewRunner creates a Runner backed by the given ProcessManager.
func NewRunner(pm *ProcessManager) *Runner {
	return &Runner{Manager: pm}
}

// newCommand creates an exec.Cmd with process group isolation.
// The Setpgid flag puts the subprocess in its own process group so the
// whole subprocess tree can be terminated together.
func newCommand(ctx context.Context, dir, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd
}

// Run executes a command in dir and returns its captured output.
// Both pipes are drained concurrently before Wait is called, so output
// larger than the pipe buffer cannot deadlock the subprocess.
// A non-zero exit is returned as *CommandError.
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	if r.Echo != nil {
		r.Echo(renderCommand(name, args))
	}
	if r.DryRun {
		return Result{}, nil
	}

	cmd := newCommand(ctx, dir, name, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("failed to start %s: %w", name, err)
	}
	if r.Manager != nil {
		r.Manager.Track(cmd)
		defer r.Manager.Untrack(cmd)
	}

	var wg sync.WaitGroup
	var stdoutBuf, stderrBuf bytes.Buffer
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.drain(&stdoutBuf, stdoutPipe, "stdout")
	}()
	go func() {
		defer wg.Done()
		r.drain(&stderrBuf, stderrPipe, "stderr")
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	res := Result{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes()}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return res, &CommandError{
				Name:     name,
				Args:     args,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderrBuf.String(),
			}
		}
		return res, fmt.Errorf("%s failed: %w", name, waitErr)
	}
	return res, nil
}

// drain copies a pipe into buf, forwarding complete lines to the Output hook.
func (r *Runner) drain(buf *bytes.Buffer, pipe io.Reader, stream string) {
	if r.Output == nil {
		io.Copy(buf, pipe)
		return
	}
	tmp := make([]byte, 4096)
	var pending []byte
	for {
		n, err := pipe.Read(tmp)
		if n > 0 {
			buf.Write(tmp[:n])
			pending = append(pending, tmp[:n]...)
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				r.Output(stream, strings.TrimRight(string(pending[:idx]), "\r"))
				pending = pending[idx+1:]
			}
		}
		if err != nil {
			if len(pending) > 0 {
				r.Output(stream, string(pending))
			}
			return
		}
	}
}

// ExitCode extracts the subprocess exit code from an error chain.
// Returns 1 for errors that did not originate from a subprocess exit.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return 1
}

func renderCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		if strings.ContainsAny(a, " \t") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
