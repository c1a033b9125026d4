// internal/quality/runner.go
package quality

import (
	"context"
	"errors"
	"os/exec"
)

// ToolRunner abstracts the external analyzer processes so that tests can
// inject fakes. Run returns the tool's stdout; for analyzers that exit
// non-zero while still producing a usable report (pylint does), stdout is
// returned alongside the error so callers can attempt to parse it anyway.
type ToolRunner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

// NewExecRunner returns the production ToolRunner backed by os/exec.
func NewExecRunner() ToolRunner {
	return execRunner{}
}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Keep whatever the tool managed to write.
			return out, err
		}
		return nil, err
	}
	return out, nil
}
