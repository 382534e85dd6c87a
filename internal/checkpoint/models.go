package checkpoint

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a work record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// WorkRecord is the persisted outcome of processing one catalog entry.
type WorkRecord struct {
	GroupKey           string
	EntityID           string
	Status             Status
	Attempts           int
	ContentFingerprint string
	OutputPath         string
	Reason             string
	UpdatedAt          time.Time
}

// Key returns the record's checkpoint key: "{group_key}:{entity_id}".
func (r *WorkRecord) Key() string {
	return RecordKey(r.GroupKey, r.EntityID)
}

// RecordKey builds the checkpoint key for an entry.
func RecordKey(groupKey, entityID string) string {
	return groupKey + ":" + entityID
}

// SetFailed marks the record failed with a reason code.
func (r *WorkRecord) SetFailed(reason string) {
	r.Status = StatusFailed
	r.Reason = reason
}

// SetCompleted marks the record completed with its fingerprint and artifact path.
func (r *WorkRecord) SetCompleted(fingerprint, outputPath string) {
	r.Status = StatusCompleted
	r.ContentFingerprint = fingerprint
	r.OutputPath = outputPath
	r.Reason = ""
}

// GroupRun is the persisted aggregate for one group. It is always recomputed
// from work records before being trusted.
type GroupRun struct {
	GroupKey        string
	TotalEntries    int
	CompletedCount  int
	FailedCount     int
	OutputDirectory string
	UpdatedAt       time.Time
}
