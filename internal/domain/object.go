// Package domain holds the Object and Blob aggregates and the invariants
// that govern their lifecycle. Nothing here talks to a filesystem or a
// database — that keeps the state machine testable without either.
package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/zynqcloud/objectstore/internal/apperr"
)

// Status is the object's position in the WRITING -> COMMITTED -> DELETING ->
// DELETED state machine. No other transitions are legal.
type Status string

const (
	StatusWriting   Status = "WRITING"
	StatusCommitted Status = "COMMITTED"
	StatusDeleting  Status = "DELETING"
	StatusDeleted   Status = "DELETED"
)

// StorageClass is the tier a blob's bytes live in.
type StorageClass string

const (
	Hot  StorageClass = "HOT"
	Cold StorageClass = "COLD"
)

func (c StorageClass) Valid() bool { return c == Hot || c == Cold }

// namespacePattern enforces §3: "case-normalized identifier (lowercased),
// 1-64 chars, leading letter then alphanumeric/underscore/hyphen."
var namespacePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// NormalizeNamespace lowercases ns and validates it against the §3 grammar.
func NormalizeNamespace(ns string) (string, error) {
	lower := toLower(ns)
	if !namespacePattern.MatchString(lower) {
		return "", apperr.New(apperr.InvalidRequest, "domain.NormalizeNamespace",
			fmt.Sprintf("namespace %q must be 1-64 chars, start with a letter, and contain only letters/digits/_/-", ns))
	}
	return lower, nil
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ContentHash is a 256-bit SHA-256 digest.
type ContentHash [32]byte

func (h ContentHash) String() string { return fmt.Sprintf("%x", h[:]) }

func (h ContentHash) IsZero() bool { return h == ContentHash{} }

// Metadata is the object's free-form attribute bag (§3).
type Metadata map[string]string

// Object is the aggregate root described in spec.md §3.
type Object struct {
	ID           uuid.UUID
	Namespace    string
	TenantID     uuid.UUID
	Key          *string
	Status       Status
	StorageClass StorageClass
	ContentHash  ContentHash // zero value until Commit
	HasHash      bool
	SizeBytes    int64
	HasSize      bool
	ContentType  string
	Metadata     Metadata
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewWriting constructs a fresh object in WRITING state, per upload
// orchestrator step 2 (§4.3). now is passed in rather than read from
// time.Now() here so callers control the clock in tests.
func NewWriting(namespace string, tenantID uuid.UUID, key *string, class StorageClass, contentType string, meta Metadata, now time.Time) (*Object, error) {
	ns, err := NormalizeNamespace(namespace)
	if err != nil {
		return nil, err
	}
	if !class.Valid() {
		return nil, apperr.New(apperr.InvalidRequest, "domain.NewWriting", "storage_class must be HOT or COLD")
	}
	if meta == nil {
		meta = Metadata{}
	}
	return &Object{
		ID:           uuid.New(),
		Namespace:    ns,
		TenantID:     tenantID,
		Key:          key,
		Status:       StatusWriting,
		StorageClass: class,
		ContentType:  contentType,
		Metadata:     meta,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// transition validates a single state-machine edge and is the only place
// Status is ever mutated, so the WRITING -> COMMITTED -> DELETING -> DELETED
// order in §3 cannot be bypassed by a typo elsewhere in the codebase.
func (o *Object) transition(to Status, now time.Time) error {
	legal := map[Status]Status{
		StatusWriting:   StatusCommitted,
		StatusCommitted: StatusDeleting,
		StatusDeleting:  StatusDeleted,
	}
	if legal[o.Status] != to {
		return apperr.New(apperr.Integrity, "domain.Object.transition",
			fmt.Sprintf("illegal transition %s -> %s", o.Status, to))
	}
	o.Status = to
	if now.Before(o.UpdatedAt) {
		now = o.UpdatedAt
	}
	o.UpdatedAt = now
	return nil
}

// Commit advances WRITING -> COMMITTED once the blob has been published and
// its refcount incremented (§4.3 step 5). contentHash and sizeBytes become
// present together, satisfying the joint-presence invariant in §3.
func (o *Object) Commit(hash ContentHash, sizeBytes int64, now time.Time) error {
	if err := o.transition(StatusCommitted, now); err != nil {
		return err
	}
	o.ContentHash = hash
	o.HasHash = true
	o.SizeBytes = sizeBytes
	o.HasSize = true
	return nil
}

// BeginDelete advances COMMITTED -> DELETING (§4.5 step 2). The object
// becomes invisible to readers at this point, before any physical blob work
// has happened.
func (o *Object) BeginDelete(now time.Time) error {
	return o.transition(StatusDeleting, now)
}

// FinishDelete advances DELETING -> DELETED (§4.5 step 5).
func (o *Object) FinishDelete(now time.Time) error {
	return o.transition(StatusDeleted, now)
}

// Readable reports whether this object is externally visible (§3: "An
// object is externally readable only when status == COMMITTED").
func (o *Object) Readable() bool { return o.Status == StatusCommitted }
