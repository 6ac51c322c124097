package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/domain"
)

// SaveObject upserts a single object row. Following dittofs's
// GORMStore.CreateShare, a plain Save is sufficient here because callers
// always pass the whole aggregate (freshly built by the upload orchestrator,
// or loaded through LoadObjectAny by the delete orchestrator) — there's
// never a blind partial update of a subset of columns.
func (g *GormStore) SaveObject(ctx context.Context, obj *domain.Object) error {
	row, err := toObjectRow(obj)
	if err != nil {
		return apperr.Wrap("pgstore.SaveObject", apperr.Persistence, err)
	}
	if err := g.db.WithContext(ctx).Save(row).Error; err != nil {
		if isUniqueConstraintError(err) {
			return apperr.New(apperr.InvalidRequest, "pgstore.SaveObject",
				fmt.Sprintf("key %q already in use for this namespace/tenant", derefKey(obj.Key)))
		}
		return apperr.Wrap("pgstore.SaveObject", apperr.Persistence, err)
	}
	return nil
}

func derefKey(k *string) string {
	if k == nil {
		return ""
	}
	return *k
}

// isUniqueConstraintError reports whether err is a unique constraint
// violation under either backend GormStore supports, following dittofs's
// store/gorm.go helper of the same name.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "duplicate key value violates unique constraint")
}

func (g *GormStore) findRow(ctx context.Context, where func(*gorm.DB) *gorm.DB, op string) (*domain.Object, error) {
	var row objectRow
	tx := where(g.db.WithContext(ctx))
	if err := tx.First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.New(apperr.NotFound, op, "object not found")
		}
		return nil, apperr.Wrap(op, apperr.Persistence, err)
	}
	return fromObjectRow(&row)
}

// FindObjectByID returns a COMMITTED object by ID. WRITING/DELETING/DELETED
// objects are invisible here (§3: "An object is externally readable only
// when status == COMMITTED") — callers that need to see any status use
// LoadObjectAny.
func (g *GormStore) FindObjectByID(ctx context.Context, id uuid.UUID) (*domain.Object, error) {
	return g.findRow(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ? AND status = ?", id, string(domain.StatusCommitted))
	}, "pgstore.FindObjectByID")
}

func (g *GormStore) FindObjectByKey(ctx context.Context, namespace string, tenantID uuid.UUID, key string) (*domain.Object, error) {
	return g.findRow(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("namespace = ? AND tenant_id = ? AND key = ? AND status = ?",
			namespace, tenantID, key, string(domain.StatusCommitted))
	}, "pgstore.FindObjectByKey")
}

// LoadObjectAny returns an object regardless of status. Used internally by
// the delete orchestrator, which loads the object and then checks that it is
// COMMITTED before beginning to delete it.
func (g *GormStore) LoadObjectAny(ctx context.Context, id uuid.UUID) (*domain.Object, error) {
	return g.findRow(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ?", id)
	}, "pgstore.LoadObjectAny")
}

func (g *GormStore) listRows(ctx context.Context, scope func(*gorm.DB) *gorm.DB, limit, offset int, op string) ([]*domain.Object, error) {
	var rows []objectRow
	tx := scope(g.db.WithContext(ctx))
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, apperr.Wrap(op, apperr.Persistence, err)
	}
	out := make([]*domain.Object, 0, len(rows))
	for i := range rows {
		o, err := fromObjectRow(&rows[i])
		if err != nil {
			return nil, apperr.Wrap(op, apperr.Persistence, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func (g *GormStore) ListObjects(ctx context.Context, namespace string, tenantID uuid.UUID, limit, offset int) ([]*domain.Object, error) {
	return g.listRows(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("namespace = ? AND tenant_id = ? AND status = ?", namespace, tenantID, string(domain.StatusCommitted)).
			Order("created_at DESC")
	}, limit, offset, "pgstore.ListObjects")
}

// SearchObjects composes an ObjectFilter into a single WHERE clause, the way
// dittofs's share-listing queries build up conditions from an optional
// filter struct field by field rather than constructing raw SQL strings.
func (g *GormStore) SearchObjects(ctx context.Context, f ObjectFilter) ([]*domain.Object, error) {
	return g.listRows(ctx, func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("status = ?", string(domain.StatusCommitted))
		if f.Namespace != "" {
			tx = tx.Where("namespace = ?", f.Namespace)
		}
		if f.TenantID != uuid.Nil {
			tx = tx.Where("tenant_id = ?", f.TenantID)
		}
		if f.KeySubstring != "" {
			tx = tx.Where("key LIKE ?", "%"+f.KeySubstring+"%")
		}
		if f.ContentType != "" {
			tx = tx.Where("content_type = ?", f.ContentType)
		}
		if f.StorageClass != nil {
			tx = tx.Where("storage_class = ?", string(*f.StorageClass))
		}
		if f.MinSize != nil {
			tx = tx.Where("size_bytes >= ?", *f.MinSize)
		}
		if f.MaxSize != nil {
			tx = tx.Where("size_bytes <= ?", *f.MaxSize)
		}
		if f.CreatedAfter != nil {
			tx = tx.Where("created_at >= ?", time.Unix(*f.CreatedAfter, 0).UTC())
		}
		if f.CreatedBefore != nil {
			tx = tx.Where("created_at <= ?", time.Unix(*f.CreatedBefore, 0).UTC())
		}
		if f.UpdatedAfter != nil {
			tx = tx.Where("updated_at >= ?", time.Unix(*f.UpdatedAfter, 0).UTC())
		}
		if f.UpdatedBefore != nil {
			tx = tx.Where("updated_at <= ?", time.Unix(*f.UpdatedBefore, 0).UTC())
		}
		if f.MetadataKey != "" {
			// metadata_json is a JSON-text column; this works on both
			// SQLite and Postgres without a dialect-specific JSON operator,
			// at the cost of a full scan rather than an index lookup.
			tx = tx.Where("metadata_json LIKE ?", fmt.Sprintf(`%%"%s":"%s"%%`, f.MetadataKey, f.MetadataValue))
		}
		return tx.Order(orderClause(f.SortBy, f.SortDescending))
	}, f.Limit, f.Offset, "pgstore.SearchObjects")
}

// TextSearchObjects does a case-insensitive substring match over key and
// the JSON-encoded metadata text (keys as well as values). The Postgres driver upgrades this to a tsvector query
// (see migrations/) when kind == DatabasePostgres; the LIKE fallback keeps
// SQLite-backed tests working without FTS5.
func (g *GormStore) TextSearchObjects(ctx context.Context, namespace string, tenantID uuid.UUID, query string, limit, offset int) ([]*domain.Object, error) {
	if g.kind == DatabasePostgres {
		return g.textSearchPostgres(ctx, namespace, tenantID, query, limit, offset)
	}
	like := "%" + strings.ToLower(query) + "%"
	return g.listRows(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("namespace = ? AND tenant_id = ? AND status = ?", namespace, tenantID, string(domain.StatusCommitted)).
			Where("lower(key) LIKE ? OR lower(metadata_json) LIKE ?", like, like).
			Order("created_at DESC")
	}, limit, offset, "pgstore.TextSearchObjects")
}

func (g *GormStore) textSearchPostgres(ctx context.Context, namespace string, tenantID uuid.UUID, query string, limit, offset int) ([]*domain.Object, error) {
	return g.listRows(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("namespace = ? AND tenant_id = ? AND status = ?", namespace, tenantID, string(domain.StatusCommitted)).
			Where("search_vector @@ plainto_tsquery('english', ?)", query).
			Order(clause.Expr{SQL: "ts_rank(search_vector, plainto_tsquery('english', ?)) DESC", Vars: []interface{}{query}})
	}, limit, offset, "pgstore.TextSearchObjects")
}

func orderClause(by SortField, desc bool) string {
	col := "created_at"
	switch by {
	case SortUpdatedAt:
		col = "updated_at"
	case SortSizeBytes:
		col = "size_bytes"
	case SortKey:
		col = "key"
	case SortContentType:
		col = "content_type"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}

// DeleteObject physically removes the row. The stuck-upload collector uses
// it to drop abandoned WRITING objects; the delete orchestrator keeps
// DELETED rows as tombstones and does not call it.
func (g *GormStore) DeleteObject(ctx context.Context, id uuid.UUID) error {
	if err := g.db.WithContext(ctx).Where("id = ?", id).Delete(&objectRow{}).Error; err != nil {
		return apperr.Wrap("pgstore.DeleteObject", apperr.Persistence, err)
	}
	return nil
}

// FindStuckWritingObjects returns WRITING objects older than ageHours, the
// candidate set for the stuck-upload GC collector (§5).
func (g *GormStore) FindStuckWritingObjects(ctx context.Context, ageHours float64, limit int) ([]uuid.UUID, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(ageHours * float64(time.Hour)))
	var rows []objectRow
	tx := g.db.WithContext(ctx).
		Select("id").
		Where("status = ? AND created_at < ?", string(domain.StatusWriting), cutoff)
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, apperr.Wrap("pgstore.FindStuckWritingObjects", apperr.Persistence, err)
	}
	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	return ids, nil
}
