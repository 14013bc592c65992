package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

var tokenPattern = regexp.MustCompile(`JSESSIONID:\s*([A-F0-9]{32})`)

// Acquirer defines the credential acquisition API.
// Implementations return the raw output of their acquisition process; the session token is extracted from it using
// ExtractToken.
type Acquirer interface {
	Acquire(ctx context.Context) (string, error)
}

// ExtractToken extracts the session token out of the raw output of an acquirer
func ExtractToken(output string) (string, error) {
	match := tokenPattern.FindStringSubmatch(output)
	if match == nil {
		return "", ErrSessionFormat
	}
	return match[1], nil
}

// CommandAcquirer implements Acquirer by running an external executable (optionally through an interpreter).
// The executable is expected to write 'JSESSIONID: <token>' to its standard output and to exit with code 0.
type CommandAcquirer struct {
	// Interpreter is the program used to run Script (i.e. 'python3'); Script is executed directly if empty
	Interpreter string
	Script      string
	Args        []string

	// Env holds additional 'KEY=value' pairs appended to the current process environment
	Env []string
	Dir string
}

var _ Acquirer = (*CommandAcquirer)(nil)

// Acquire runs the configured executable until it exits or the context is done
func (acquirer *CommandAcquirer) Acquire(ctx context.Context) (string, error) {
	name, args := acquirer.Script, acquirer.Args
	if acquirer.Interpreter != "" {
		name, args = acquirer.Interpreter, append([]string{acquirer.Script}, acquirer.Args...)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), acquirer.Env...)
	cmd.Dir = acquirer.Dir
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &AcquisitionError{
			Output: diagnostics(stdout.String(), stderr.String()),
			Cause:  err,
		}
	}
	return stdout.String(), nil
}

func diagnostics(stdout, stderr string) string {
	parts := make([]string, 0, 2)
	if out := strings.TrimSpace(stdout); out != "" {
		parts = append(parts, out)
	}
	if out := strings.TrimSpace(stderr); out != "" {
		parts = append(parts, out)
	}
	return strings.Join(parts, "\n")
}

// StaticAcquirer implements Acquirer by returning canned output or a canned error.
// It is used in tests and whenever an operator pins a session token manually.
type StaticAcquirer struct {
	Output string
	Err    error

	// Delay makes every invocation block for the given duration (or until the context is done)
	Delay time.Duration

	calls atomic.Int64
}

var _ Acquirer = (*StaticAcquirer)(nil)

// NewStaticToken creates a static acquirer emitting the given token in the format CommandAcquirer expects
func NewStaticToken(token string) *StaticAcquirer {
	return &StaticAcquirer{Output: "JSESSIONID: " + token}
}

// Acquire returns the canned output or error
func (acquirer *StaticAcquirer) Acquire(ctx context.Context) (string, error) {
	acquirer.calls.Add(1)
	if acquirer.Delay > 0 {
		timer := time.NewTimer(acquirer.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if acquirer.Err != nil {
		var acquisitionErr *AcquisitionError
		if errors.As(acquirer.Err, &acquisitionErr) {
			return "", acquirer.Err
		}
		return "", &AcquisitionError{Output: acquirer.Output, Cause: acquirer.Err}
	}
	return acquirer.Output, nil
}

// Calls returns how often Acquire was invoked
func (acquirer *StaticAcquirer) Calls() int64 {
	return acquirer.calls.Load()
}
