package dedup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"
)

// Fingerprint returns the content fingerprint of raw asset bytes. MD5 is a
// duplicate-detection aid here, not a security control.
func Fingerprint(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Index maps content fingerprints to the artifact that carries them. A
// fingerprint is first claimed by the worker that will write the artifact and
// committed only once the write is durable. Workers that lose the claim race
// wait on the owner's outcome; a fingerprint is never treated as satisfied
// before its artifact exists on disk.
type Index struct {
	mu      sync.Mutex
	entries map[string]*claimEntry
}

type claimEntry struct {
	path string
	done chan struct{}
	ok   bool
}

// Pending is a losing claimant's view of the owner's in-flight claim.
type Pending struct {
	entry *claimEntry
}

// Wait blocks until the claim owner commits or forgets the fingerprint. When
// ok is true the artifact at path has been durably written; when false the
// owner failed and the fingerprint is claimable again.
func (p *Pending) Wait(ctx context.Context) (path string, ok bool, err error) {
	select {
	case <-p.entry.done:
		return p.entry.path, p.entry.ok, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// NewIndex creates an empty fingerprint index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]*claimEntry)}
}

// Claim atomically reserves fingerprint for outputPath. When winner is true
// the caller owns the artifact write and must finish with Commit or Forget.
// Otherwise pending reflects the current owner's claim.
func (i *Index) Claim(fingerprint, outputPath string) (winner bool, pending *Pending) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if existing, ok := i.entries[fingerprint]; ok {
		return false, &Pending{entry: existing}
	}
	i.entries[fingerprint] = &claimEntry{path: outputPath, done: make(chan struct{})}
	return true, nil
}

// Commit marks a claimed fingerprint's artifact as durably written and wakes
// waiters.
func (i *Index) Commit(fingerprint string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.entries[fingerprint]
	if !ok || entry.ok {
		return
	}
	entry.ok = true
	close(entry.done)
}

// Forget removes a claim whose artifact was never written and wakes waiters
// so one of them can claim the fingerprint itself.
func (i *Index) Forget(fingerprint string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.entries[fingerprint]
	if !ok || entry.ok {
		return
	}
	delete(i.entries, fingerprint)
	close(entry.done)
}

// Len returns the number of claimed or committed fingerprints.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}

// Seed preloads a committed fingerprint → path mapping, used when resuming a
// run to carry forward fingerprints recorded in completed checkpoints.
func (i *Index) Seed(fingerprint, outputPath string) {
	if fingerprint == "" {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.entries[fingerprint]; ok {
		return
	}
	done := make(chan struct{})
	close(done)
	i.entries[fingerprint] = &claimEntry{path: outputPath, done: done, ok: true}
}
