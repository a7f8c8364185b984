package errors

import (
	"errors"
	"fmt"
)

// Common error types for the lobby-bot service
var (
	// Device auth flow errors
	ErrAuthPending   = errors.New("authorization pending")
	ErrAuthSlowDown  = errors.New("polling too fast")
	ErrAuthExpired   = errors.New("device code expired")
	ErrAuthDenied    = errors.New("access denied")
	ErrAuthCancelled = errors.New("authentication cancelled")
	ErrAuthTimedOut  = errors.New("authentication timed out")
	ErrNoAuthSession = errors.New("no active authentication session")

	// Identity provider errors
	ErrClientDisabled   = errors.New("provider disabled this client")
	ErrPermissionDenied = errors.New("client lacks permission")
	ErrInvalidGrant     = errors.New("credentials invalid or expired")
	ErrUnsupportedGrant = errors.New("grant type not supported by client")

	// Registry errors
	ErrDuplicateSession = errors.New("session already running")
	ErrUserCapacity     = errors.New("per-user session limit reached")
	ErrGlobalCapacity   = errors.New("server is at maximum capacity")
	ErrNotRunning       = errors.New("session is not running")
	ErrNotReady         = errors.New("session is not ready")
	ErrConnection       = errors.New("failed to reach ready state")

	// Session errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionEnded     = errors.New("session already ended")
	ErrExtensionsUsedUp = errors.New("no extensions remaining")

	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already linked")

	// Preset errors
	ErrPresetNotFound = errors.New("preset not found")
	ErrPresetName     = errors.New("preset name invalid")

	// Vault errors
	ErrVaultCorrupt = errors.New("credential blob corrupt or wrong key")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("store unavailable")
	ErrInternal    = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
