package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"thumbsmith/internal/textutil"
)

// FileEnumerator reads provider catalog files (one JSON document per group)
// from a directory. Files are parsed once and cached; repeat calls observe
// the same entries.
type FileEnumerator struct {
	dir string

	mu     sync.Mutex
	loaded bool
	groups []Group
	byKey  map[string][]Entry
}

// NewFileEnumerator creates an enumerator over dir.
func NewFileEnumerator(dir string) *FileEnumerator {
	return &FileEnumerator{dir: dir, byKey: make(map[string][]Entry)}
}

// Groups returns every group found in the catalog directory, ordered by key.
func (e *FileEnumerator) Groups(ctx context.Context) ([]Group, error) {
	if err := e.load(ctx); err != nil {
		return nil, err
	}
	cp := make([]Group, len(e.groups))
	copy(cp, e.groups)
	return cp, nil
}

// Entries returns the normalized entries for a group in file order,
// deduplicated by entity identifier (first occurrence wins).
func (e *FileEnumerator) Entries(ctx context.Context, group Group) ([]Entry, error) {
	if err := e.load(ctx); err != nil {
		return nil, err
	}
	entries, ok := e.byKey[group.Key]
	if !ok {
		return nil, fmt.Errorf("unknown group %q", group.Key)
	}
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return cp, nil
}

func (e *FileEnumerator) load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}

	paths, err := filepath.Glob(filepath.Join(e.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("scan catalog dir: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.HasPrefix(filepath.Base(path), ".") {
			continue
		}
		group, entries, err := parseProviderFile(path)
		if err != nil {
			return fmt.Errorf("parse catalog file %s: %w", filepath.Base(path), err)
		}
		if existing, ok := e.byKey[group.Key]; ok {
			e.byKey[group.Key] = mergeEntries(existing, entries)
			continue
		}
		e.groups = append(e.groups, group)
		e.byKey[group.Key] = entries
	}

	sort.Slice(e.groups, func(i, j int) bool { return e.groups[i].Key < e.groups[j].Key })
	e.loaded = true
	return nil
}

// providerDocument mirrors the loose shapes catalog files arrive in. Sources
// disagree on field names; everything is normalized before leaving this
// package.
type providerDocument struct {
	ProviderName string          `json:"provider_name"`
	Provider     json.RawMessage `json:"provider"`
	IsComplete   *bool           `json:"is_complete"`
	Games        []gameDocument  `json:"games"`
}

type providerObject struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type gameDocument struct {
	GameID       string `json:"game_id"`
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnail_url"`
	ThumbnailAlt string `json:"thumbnailUrl"`
	ImageURL     string `json:"image_url"`
	ImageAlt     string `json:"imageUrl"`
}

func parseProviderFile(path string) (Group, []Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Group{}, nil, err
	}

	var doc providerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Group{}, nil, err
	}

	name, slug := providerIdentity(doc, path)
	group := Group{
		Key:         slug,
		DisplayName: name,
		Complete:    doc.IsComplete == nil || *doc.IsComplete,
	}

	seen := make(map[string]struct{}, len(doc.Games))
	entries := make([]Entry, 0, len(doc.Games))
	for _, game := range doc.Games {
		entry := normalizeGame(game, group.Key)
		if entry.EntityID == "" {
			continue
		}
		if _, dup := seen[entry.EntityID]; dup {
			continue
		}
		seen[entry.EntityID] = struct{}{}
		entries = append(entries, entry)
	}
	return group, entries, nil
}

func providerIdentity(doc providerDocument, path string) (name, slug string) {
	if trimmed := strings.TrimSpace(doc.ProviderName); trimmed != "" {
		name = trimmed
	}

	if len(doc.Provider) > 0 {
		var obj providerObject
		if err := json.Unmarshal(doc.Provider, &obj); err == nil {
			if name == "" {
				name = strings.TrimSpace(obj.Name)
			}
			slug = strings.TrimSpace(obj.Slug)
		} else {
			var str string
			if err := json.Unmarshal(doc.Provider, &str); err == nil && name == "" {
				name = strings.TrimSpace(str)
			}
		}
	}

	if name == "" {
		name = nameFromFilename(path)
	}
	if slug == "" {
		slug = textutil.SanitizeToken(name)
	}
	return name, slug
}

// nameFromFilename recovers a display name from checkpoint-style filenames
// such as provider_pragmatic_play_initial.json.
func nameFromFilename(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".json")
	base = strings.TrimPrefix(base, "provider_")
	base = strings.TrimSuffix(base, "_initial")
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.TrimSpace(base)
	if base == "" {
		return "Unknown Provider"
	}
	return base
}

func normalizeGame(game gameDocument, groupKey string) Entry {
	title := firstNonEmpty(game.Title, game.Name)
	entityID := firstNonEmpty(game.GameID, game.ID, game.Slug)
	if entityID == "" && title != "" {
		entityID = textutil.SanitizeToken(title)
	}
	if title == "" {
		title = firstNonEmpty(game.Slug, "Unknown Game")
	}

	url := firstNonEmpty(game.ThumbnailURL, game.ThumbnailAlt, game.ImageURL, game.ImageAlt)
	return Entry{
		EntityID:    entityID,
		GroupKey:    groupKey,
		DisplayName: strings.TrimSpace(title),
		AssetURL:    NormalizeAssetURL(url),
	}
}

func mergeEntries(existing, incoming []Entry) []Entry {
	seen := make(map[string]struct{}, len(existing))
	for _, entry := range existing {
		seen[entry.EntityID] = struct{}{}
	}
	for _, entry := range incoming {
		if _, dup := seen[entry.EntityID]; dup {
			continue
		}
		seen[entry.EntityID] = struct{}{}
		existing = append(existing, entry)
	}
	return existing
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
