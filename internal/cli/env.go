// Package cli holds the griha command tree.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/Adda-Baaj/griha/internal/app"
)

// Runtime is the part of app.App the commands drive.
type Runtime interface {
	EnsureToken(ctx context.Context, force bool) (string, error)
	Send(ctx context.Context, calls []app.Call, concurrency int) []app.Result
	Navigations() []string
	Close() error
}

// Opener builds a runtime for requests issued from page.
type Opener func(ctx context.Context, page string) (Runtime, error)

// Env carries the command dependencies so tests can swap them.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Open   Opener
}

// DefaultEnv writes to the process streams and opens runtimes with open.
func DefaultEnv(open Opener) *Env {
	return &Env{Stdout: os.Stdout, Stderr: os.Stderr, Open: open}
}
