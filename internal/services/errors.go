package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks network-level failures worth retrying (timeouts,
	// 5xx responses, connection resets).
	ErrTransient = errors.New("transient fetch error")
	// ErrInvalidAsset marks payloads that will never succeed on retry
	// (bodies below the minimum size, error pages served as assets).
	ErrInvalidAsset = errors.New("invalid asset")
	// ErrTranscode marks decode or encode failures on fetched bytes.
	ErrTranscode = errors.New("transcode error")
	// ErrPersistence marks checkpoint store failures. These are run-fatal.
	ErrPersistence = errors.New("persistence error")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRunFatal reports whether an error must abort the whole run rather than
// fail a single entry. Only store-level failures qualify.
func IsRunFatal(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// Retryable reports whether a fetch error is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrInvalidAsset), errors.Is(err, ErrTranscode), errors.Is(err, ErrPersistence):
		return false
	default:
		return true
	}
}

// FailureReason maps an entry-level error to a stable reason code recorded in
// the checkpoint store and surfaced in the run report.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAsset):
		return "invalid_asset"
	case errors.Is(err, ErrTranscode):
		return "transcode_failed"
	case errors.Is(err, ErrTransient):
		return "fetch_failed"
	default:
		return "error"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
