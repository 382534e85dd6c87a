package catalog

import "context"

// Group is a namespace entries belong to, typically a content provider. The
// group determines the output directory for its artifacts.
type Group struct {
	Key         string
	DisplayName string
	// Complete reports whether the source believes it enumerated every entry
	// for this group. Pagination heuristics live in the enumerator; the
	// pipeline only consumes this flag.
	Complete bool
}

// Entry is one unit of work identifying a remote asset to fetch. EntityID is
// stable and unique within its group; an empty AssetURL means the entry is
// skipped, not an error.
type Entry struct {
	EntityID    string
	GroupKey    string
	DisplayName string
	AssetURL    string
}

// Enumerator supplies catalog groups and their entries. Implementations must
// be idempotent: re-invoking for the same group yields the same (or a
// superset of) entries, never a different identity for the same logical
// entry. Field-name variations in the underlying source are normalized here;
// the pipeline never branches on alternate shapes.
type Enumerator interface {
	Groups(ctx context.Context) ([]Group, error)
	Entries(ctx context.Context, group Group) ([]Entry, error)
}
