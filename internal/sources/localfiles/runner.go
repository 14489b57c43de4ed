package localfiles

import (
	"context"
	"errors"
	"os/exec"
)

// ErrPDFToolNotFound indicates the pdftotext binary is not installed.
var ErrPDFToolNotFound = errors.New(
	"pdftotext not found: install poppler (brew install poppler / apt install poppler-utils)")

// CommandRunner executes an external command and returns its stdout.
// Abstracted so tests can stub pdftotext.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CheckPDFToolAvailable reports whether pdftotext is on the PATH.
func CheckPDFToolAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}
