package extract

import (
	"context"
	"os/exec"
)

// CommandRunner executes an external tool and returns its stdout. It exists
// so OCR can be mocked in tests without tesseract installed.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
