package fpcalc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"sieve/internal/services"
)

const component = "fpcalc"

// Result is the raw fingerprint of one file.
type Result struct {
	Raw      []uint32
	Duration float64
}

// Executor abstracts command execution for testability.
type Executor interface {
	Output(ctx context.Context, binary string, args []string) ([]byte, error)
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

// WithAlgorithm selects the chromaprint algorithm passed as -algorithm.
func WithAlgorithm(algorithm int) Option {
	return func(c *Client) {
		c.algorithm = algorithm
	}
}

// WithOverlap toggles the -overlap flag.
func WithOverlap(overlap bool) Option {
	return func(c *Client) {
		c.overlap = overlap
	}
}

// WithTimeout bounds a single invocation. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client wraps fpcalc CLI interactions.
type Client struct {
	binary    string
	algorithm int
	overlap   bool
	timeout   time.Duration
	exec      Executor
}

// New constructs an fpcalc client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "init", "fpcalc binary required", nil)
	}
	client := &Client{
		binary:    binary,
		algorithm: 4,
		overlap:   true,
		exec:      commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Fingerprint runs fpcalc against path, sampling at most seconds of audio.
func (c *Client) Fingerprint(ctx context.Context, path string, seconds int) (Result, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, services.Wrap(services.ErrNotFound, component, "stat", path, err)
		}
		return Result{}, services.Wrap(services.ErrExternalTool, component, "stat", path, err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	output, err := c.exec.Output(runCtx, c.binary, c.args(path, seconds))
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return Result{}, services.Wrap(services.ErrTimeout, component, "fingerprint", fmt.Sprintf("exceeded %s", c.timeout), err)
		}
		return Result{}, services.Wrap(services.ErrExternalTool, component, "fingerprint", path, err)
	}

	result, err := Parse(output)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, component, "parse", path, err)
	}
	return result, nil
}

func (c *Client) args(path string, seconds int) []string {
	args := []string{"-algorithm", strconv.Itoa(c.algorithm)}
	if c.overlap {
		args = append(args, "-overlap")
	}
	if seconds > 0 {
		args = append(args, "-length", strconv.Itoa(seconds))
	}
	return append(args, "-raw", path)
}

// Parse decodes fpcalc -raw output. The fingerprint may be comma or space
// separated; signed values (fpcalc -signed) are reinterpreted as unsigned
// 32-bit words.
func Parse(output []byte) (Result, error) {
	var (
		result      Result
		sawDuration bool
		sawPrint    bool
	)
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "DURATION="):
			value := strings.TrimPrefix(line, "DURATION=")
			duration, err := strconv.ParseFloat(value, 64)
			if err != nil || duration < 0 {
				return Result{}, fmt.Errorf("invalid duration %q", value)
			}
			result.Duration = duration
			sawDuration = true
		case strings.HasPrefix(line, "FINGERPRINT="):
			raw, err := parseValues(strings.TrimPrefix(line, "FINGERPRINT="))
			if err != nil {
				return Result{}, err
			}
			result.Raw = raw
			sawPrint = true
		}
	}
	if !sawDuration {
		return Result{}, errors.New("missing DURATION line")
	}
	if !sawPrint || len(result.Raw) == 0 {
		return Result{}, errors.New("missing or empty FINGERPRINT line")
	}
	return result, nil
}

func parseValues(s string) ([]uint32, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	values := make([]uint32, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil || v < -(1<<31) || v > 1<<32-1 {
			return nil, fmt.Errorf("invalid fingerprint value %q", part)
		}
		values = append(values, uint32(v))
	}
	return values, nil
}

type commandExecutor struct{}

func (commandExecutor) Output(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return output, nil
}
