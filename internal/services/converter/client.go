package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runner defines the behaviour required by the worker loop.
type Runner interface {
	Convert(ctx context.Context, input, output string, sheetIndex int) error
}

// ExecResult captures one finished subprocess.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor abstracts subprocess execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (ExecResult, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client invokes the conversion subprocess.
type Client struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// New constructs a converter client. An empty binary falls back to the
// running executable re-entered in convert mode.
func New(binary string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve converter binary: %w", err)
		}
		binary = exe
	}
	client := &Client{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the resolved converter binary path.
func (c *Client) Binary() string {
	return c.binary
}

// Convert runs one line-format conversion. The returned error text is the
// exact diagnostic recorded on the failed job, with captured stderr
// preferred over stdout.
func (c *Client) Convert(ctx context.Context, input, output string, sheetIndex int) error {
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"convert", "--jsonl"}
	if sheetIndex > 1 {
		args = append(args, "--sheet", strconv.Itoa(sheetIndex))
	}
	args = append(args, input, output)

	res, err := c.exec.Run(runCtx, c.binary, args)
	if ctxErr := runCtx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) && c.timeout > 0 {
			return fmt.Errorf("converter timed out after %s", c.timeout)
		}
		return fmt.Errorf("converter interrupted: %v", ctxErr)
	}
	if err != nil {
		return fmt.Errorf("converter failed to start: %v", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("converter exit %d: %s", res.ExitCode, diagnostic(res))
	}
	return nil
}

func diagnostic(res ExecResult) string {
	if s := strings.TrimSpace(res.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(res.Stdout)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// A non-zero exit is a result to report, not an execution failure.
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}
