// Package textutil holds the artifact name sanitizer shared by the fetch and
// reporting paths.
package textutil
