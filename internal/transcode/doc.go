// Package transcode converts fetched image bytes into WebP artifacts.
// Inputs are validated, optionally flattened onto a white background,
// and downscaled when they exceed the configured maximum dimension.
package transcode
