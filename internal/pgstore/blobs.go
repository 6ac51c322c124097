package pgstore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/domain"
)

// GetOrCreateBlob is the §4.2 atomic get-or-create: a single upsert that
// either inserts a fresh blob row with ref_count 1, or — on conflict with an
// existing (content_hash, storage_class) row — increments ref_count in the
// same statement. Ten concurrent callers racing on the same hash must all
// observe ref_count == 10 afterward (scenario S6); a read-then-write in Go
// would lose updates under that race, which is exactly what clause.OnConflict
// with a DoUpdates expression avoids by pushing the read-modify-write into
// the database's row lock.
func (g *GormStore) GetOrCreateBlob(ctx context.Context, hash domain.ContentHash, class domain.StorageClass, sizeBytes int64) (*domain.Blob, error) {
	row := &blobRow{
		ContentHash:  hash.String(),
		StorageClass: string(class),
		SizeBytes:    sizeBytes,
		RefCount:     1,
		CreatedAt:    time.Now().UTC(),
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_hash"}, {Name: "storage_class"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"ref_count": gorm.Expr("blobs.ref_count + 1")}),
	}).Create(row).Error
	if err != nil {
		return nil, apperr.Wrap("pgstore.GetOrCreateBlob", apperr.Persistence, err)
	}
	return g.GetBlob(ctx, hash, class)
}

// IncrementRefBlob bumps ref_count by exactly 1 in a single UPDATE statement
// and reports the resulting count, re-read from the row after the update.
// The upload orchestrator does not call it: GetOrCreateBlob already
// increments an existing blob.
func (g *GormStore) IncrementRefBlob(ctx context.Context, hash domain.ContentHash, class domain.StorageClass) (int64, error) {
	tx := g.db.WithContext(ctx).Model(&blobRow{}).
		Where("content_hash = ? AND storage_class = ?", hash.String(), string(class)).
		Update("ref_count", gorm.Expr("ref_count + 1"))
	if tx.Error != nil {
		return 0, apperr.Wrap("pgstore.IncrementRefBlob", apperr.Persistence, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return 0, apperr.New(apperr.NotFound, "pgstore.IncrementRefBlob", "blob not found")
	}
	b, err := g.GetBlob(ctx, hash, class)
	if err != nil {
		return 0, err
	}
	return b.RefCount, nil
}

// DecrementRefBlob bumps ref_count down by exactly 1, guarded by a
// WHERE ref_count > 0 clause so the underflow check happens inside the same
// statement as the decrement rather than as a separate read — a concurrent
// decrement cannot slip the count below zero between the check and the
// write. RowsAffected == 0 with an existing row means the guard rejected the
// decrement, which is the ref_count underflow case (§4.2, §7): a bookkeeping
// bug upstream, surfaced as apperr.Integrity rather than silently clamped.
func (g *GormStore) DecrementRefBlob(ctx context.Context, hash domain.ContentHash, class domain.StorageClass) (int64, error) {
	tx := g.db.WithContext(ctx).Model(&blobRow{}).
		Where("content_hash = ? AND storage_class = ? AND ref_count > 0", hash.String(), string(class)).
		Update("ref_count", gorm.Expr("ref_count - 1"))
	if tx.Error != nil {
		return 0, apperr.Wrap("pgstore.DecrementRefBlob", apperr.Persistence, tx.Error)
	}
	if tx.RowsAffected == 0 {
		if _, err := g.GetBlob(ctx, hash, class); err != nil {
			return 0, err
		}
		return 0, apperr.New(apperr.Integrity, "pgstore.DecrementRefBlob",
			"ref_count underflow: decrement attempted at ref_count <= 0")
	}
	b, err := g.GetBlob(ctx, hash, class)
	if err != nil {
		return 0, err
	}
	return b.RefCount, nil
}

// FindOrphanedBlobs returns blobs with ref_count == 0, the candidate set for
// the orphaned-blob GC collector (§5).
func (g *GormStore) FindOrphanedBlobs(ctx context.Context, limit int) ([]*domain.Blob, error) {
	var rows []blobRow
	tx := g.db.WithContext(ctx).Where("ref_count = 0")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, apperr.Wrap("pgstore.FindOrphanedBlobs", apperr.Persistence, err)
	}
	out := make([]*domain.Blob, 0, len(rows))
	for i := range rows {
		b, err := fromBlobRow(&rows[i])
		if err != nil {
			return nil, apperr.Wrap("pgstore.FindOrphanedBlobs", apperr.Persistence, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// DeleteBlob removes the row only while ref_count == 0; the WHERE clause
// carries that check, so a blob resurrected after the caller's own re-check
// is left in place and reported as NotFound.
func (g *GormStore) DeleteBlob(ctx context.Context, hash domain.ContentHash, class domain.StorageClass) error {
	tx := g.db.WithContext(ctx).
		Where("content_hash = ? AND storage_class = ? AND ref_count = 0", hash.String(), string(class)).
		Delete(&blobRow{})
	if tx.Error != nil {
		return apperr.Wrap("pgstore.DeleteBlob", apperr.Persistence, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "pgstore.DeleteBlob", "blob not found or no longer orphaned")
	}
	return nil
}

func (g *GormStore) GetBlob(ctx context.Context, hash domain.ContentHash, class domain.StorageClass) (*domain.Blob, error) {
	var row blobRow
	err := g.db.WithContext(ctx).
		Where("content_hash = ? AND storage_class = ?", hash.String(), string(class)).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.New(apperr.NotFound, "pgstore.GetBlob", "blob not found")
		}
		return nil, apperr.Wrap("pgstore.GetBlob", apperr.Persistence, err)
	}
	return fromBlobRow(&row)
}
