// Package logging builds slog loggers from configuration and defines the
// standardized structured field keys shared by all components.
package logging
