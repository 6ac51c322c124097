package pgstore

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/domain"
)

// objectRow is the GORM row for Object. Metadata is stored as a JSON text
// column so both SQLite and Postgres can hold it without a Postgres-only
// JSONB dependency; the Postgres driver additionally maintains a generated
// tsvector column (see migrations/) for text_search.
type objectRow struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Namespace    string    `gorm:"uniqueIndex:idx_objects_ns_tenant_key,priority:1;not null"`
	TenantID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_objects_ns_tenant_key,priority:2;not null"`
	Key          *string   `gorm:"uniqueIndex:idx_objects_ns_tenant_key,priority:3,where:key IS NOT NULL AND status <> 'DELETED'"`
	Status       string    `gorm:"index;not null"`
	StorageClass string    `gorm:"not null"`
	ContentHash  string    // hex, empty until commit
	HasHash      bool
	SizeBytes    int64
	HasSize      bool
	ContentType  string
	MetadataJSON string `gorm:"column:metadata_json"`
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time `gorm:"index"`
}

func (objectRow) TableName() string { return "objects" }

// blobRow is the GORM row for Blob, keyed by (content_hash, storage_class).
type blobRow struct {
	ContentHash  string `gorm:"primaryKey"`
	StorageClass string `gorm:"primaryKey"`
	SizeBytes    int64
	RefCount     int64 `gorm:"not null;check:ref_count >= 0"`
	CreatedAt    time.Time
}

func (blobRow) TableName() string { return "blobs" }

func toObjectRow(o *domain.Object) (*objectRow, error) {
	metaJSON, err := json.Marshal(o.Metadata)
	if err != nil {
		return nil, err
	}
	hash := ""
	if o.HasHash {
		hash = o.ContentHash.String()
	}
	return &objectRow{
		ID:           o.ID,
		Namespace:    o.Namespace,
		TenantID:     o.TenantID,
		Key:          o.Key,
		Status:       string(o.Status),
		StorageClass: string(o.StorageClass),
		ContentHash:  hash,
		HasHash:      o.HasHash,
		SizeBytes:    o.SizeBytes,
		HasSize:      o.HasSize,
		ContentType:  o.ContentType,
		MetadataJSON: string(metaJSON),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}, nil
}

func fromObjectRow(r *objectRow) (*domain.Object, error) {
	meta := domain.Metadata{}
	if r.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(r.MetadataJSON), &meta); err != nil {
			return nil, err
		}
	}
	obj := &domain.Object{
		ID:           r.ID,
		Namespace:    r.Namespace,
		TenantID:     r.TenantID,
		Key:          r.Key,
		Status:       domain.Status(r.Status),
		StorageClass: domain.StorageClass(r.StorageClass),
		HasHash:      r.HasHash,
		SizeBytes:    r.SizeBytes,
		HasSize:      r.HasSize,
		ContentType:  r.ContentType,
		Metadata:     meta,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.HasHash {
		h, err := parseContentHash(r.ContentHash)
		if err != nil {
			return nil, err
		}
		obj.ContentHash = h
	}
	return obj, nil
}

func parseContentHash(hexStr string) (domain.ContentHash, error) {
	var h domain.ContentHash
	b, err := hex.DecodeString(hexStr)
	if err != nil || len(b) != len(h) {
		return h, apperr.New(apperr.Persistence, "pgstore.parseContentHash",
			fmt.Sprintf("row has malformed content_hash %q", hexStr))
	}
	copy(h[:], b)
	return h, nil
}

func fromBlobRow(r *blobRow) (*domain.Blob, error) {
	h, err := parseContentHash(r.ContentHash)
	if err != nil {
		return nil, err
	}
	return &domain.Blob{
		ContentHash:  h,
		StorageClass: domain.StorageClass(r.StorageClass),
		SizeBytes:    r.SizeBytes,
		RefCount:     r.RefCount,
		CreatedAt:    r.CreatedAt,
	}, nil
}
