package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/elee1766/dextra/src/config"
	"github.com/elee1766/dextra/src/orclient"
	"github.com/elee1766/dextra/src/storage"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error
	ExitUsage       = 2 // Usage error
	ExitConfig      = 3 // Configuration error
	ExitAuth        = 4 // Authentication error
	ExitNotFound    = 5 // Missing user, action or conversation
	ExitNetwork     = 6 // Network error
	ExitTimeout     = 7 // Timeout error
	ExitInterrupted = 8 // Interrupted by user
)

var (
	errUsage   = errors.New("usage")
	errNoToken = errors.New("an API token is required")
)

// exitCode determines the appropriate exit code for an error
func exitCode(err error) int {
	var (
		verr   config.ValidationError
		apiErr *orclient.APIError
		netErr net.Error
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.As(err, &verr):
		return ExitConfig
	case errors.As(err, &apiErr) && apiErr.IsAuthError(), errors.Is(err, errNoToken):
		return ExitAuth
	case errors.Is(err, storage.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, errUsage):
		return ExitUsage
	case errors.As(err, &netErr):
		return ExitNetwork
	default:
		return ExitError
	}
}

// FatalError logs err and exits with the code for its class
func FatalError(logger *slog.Logger, err error) {
	logger.Debug("command failed", "error", err)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCode(err))
}
