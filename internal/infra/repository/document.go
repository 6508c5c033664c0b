package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/reputation-engine/internal/domain"
	"github.com/totegamma/reputation-engine/internal/infra/database/models"
)

var tracer = otel.Tracer("repository")

const scanBatch = 256

type DocumentRepository struct {
	db    *gorm.DB
	clock func() time.Time
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db, clock: time.Now}
}

func (r *DocumentRepository) Get(ctx context.Context, collection, key string) (domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Repository.Document.Get")
	defer span.End()

	var row models.Document
	err := r.db.WithContext(ctx).
		Where("collection = ? AND doc_key = ?", collection, key).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Document{}, domain.NotFoundError{Resource: collection}
		}
		span.RecordError(err)
		return domain.Document{}, err
	}
	return toDomain(row), nil
}

// List scans documents in key order. Description terms are narrowed with
// LIKE first and then matched exactly, since LIKE folds case on some engines.
func (r *DocumentRepository) List(ctx context.Context, collection string, filter domain.ListFilter) (domain.ListPage, error) {
	ctx, span := tracer.Start(ctx, "Repository.Document.List")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	limit := filter.Limit
	if limit <= 0 {
		limit = scanBatch
	}

	query := r.db.WithContext(ctx).Model(&models.Document{}).Where("collection = ?", collection)
	if filter.Key != "" {
		query = query.Where("doc_key = ?", filter.Key)
	}
	if filter.KeyPrefix != "" {
		query = query.Where(`doc_key LIKE ? ESCAPE '\'`, escapeLike(filter.KeyPrefix)+"%")
	}
	if filter.Owner != "" {
		query = query.Where("owner = ?", filter.Owner)
	}
	for _, term := range filter.Description {
		query = query.Where(`description LIKE ? ESCAPE '\'`, "%"+escapeLike(term)+"%")
	}

	var page domain.ListPage
	cursor := filter.After
	for {
		var rows []models.Document
		err := query.Session(&gorm.Session{}).
			Where("doc_key > ?", cursor).
			Order("doc_key ASC").
			Limit(scanBatch).
			Find(&rows).Error
		if err != nil {
			span.RecordError(err)
			return domain.ListPage{}, err
		}

		for _, row := range rows {
			cursor = row.Key
			if !hasTerms(row.Description, filter.Description) || !strings.HasPrefix(row.Key, filter.KeyPrefix) {
				continue
			}
			if len(page.Items) == limit {
				page.Next = page.Items[len(page.Items)-1].Key
				return page, nil
			}
			page.Items = append(page.Items, toDomain(row))
		}

		if len(rows) < scanBatch {
			return page, nil
		}
	}
}

// Set writes doc if its Version matches the stored one. Version zero only
// creates. The stored document carries Version+1.
func (r *DocumentRepository) Set(ctx context.Context, doc domain.Document) (domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Repository.Document.Set")
	defer span.End()
	span.SetAttributes(attribute.String("collection", doc.Collection), attribute.String("key", doc.Key))

	now := r.clock().UTC()
	var saved models.Document

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		kind := domain.CommitKindUpdate
		if doc.Version == 0 {
			kind = domain.CommitKindCreate
			row := models.Document{
				Collection:  doc.Collection,
				Key:         doc.Key,
				Owner:       doc.Owner,
				Description: doc.Description,
				Data:        string(doc.Data),
				Version:     1,
				CDate:       now,
				MDate:       now,
			}
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domain.ConflictError{Collection: doc.Collection, Key: doc.Key}
			}
		} else {
			result := tx.Model(&models.Document{}).
				Where("collection = ? AND doc_key = ? AND version = ?", doc.Collection, doc.Key, doc.Version).
				Updates(map[string]any{
					"owner":       doc.Owner,
					"description": doc.Description,
					"data":        string(doc.Data),
					"version":     doc.Version + 1,
					"m_date":      now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domain.ConflictError{Collection: doc.Collection, Key: doc.Key}
			}
		}

		if err := tx.Where("collection = ? AND doc_key = ?", doc.Collection, doc.Key).Take(&saved).Error; err != nil {
			return err
		}
		return appendCommitLog(tx, saved, kind, now)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			span.RecordError(err)
		}
		return domain.Document{}, err
	}

	return toDomain(saved), nil
}

func (r *DocumentRepository) Delete(ctx context.Context, collection, key string, version uint64) error {
	ctx, span := tracer.Start(ctx, "Repository.Document.Delete")
	defer span.End()

	now := r.clock().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Document
		err := tx.Where("collection = ? AND doc_key = ?", collection, key).Take(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError{Resource: collection}
			}
			return err
		}

		result := tx.Where("collection = ? AND doc_key = ? AND version = ?", collection, key, version).
			Delete(&models.Document{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ConflictError{Collection: collection, Key: key}
		}
		return appendCommitLog(tx, row, domain.CommitKindDelete, now)
	})
}

func appendCommitLog(tx *gorm.DB, row models.Document, kind domain.CommitKind, now time.Time) error {
	return tx.Create(&models.CommitLog{
		ID:         uuid.NewString(),
		Collection: row.Collection,
		Key:        row.Key,
		Kind:       kind.String(),
		Owner:      row.Owner,
		Version:    row.Version,
		CDate:      now,
	}).Error
}

func toDomain(row models.Document) domain.Document {
	return domain.Document{
		Collection:  row.Collection,
		Key:         row.Key,
		Owner:       row.Owner,
		Description: row.Description,
		Data:        []byte(row.Data),
		Version:     row.Version,
		CreatedAt:   row.CDate,
		UpdatedAt:   row.MDate,
	}
}

func hasTerms(description string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(description, term) {
			return false
		}
	}
	return true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
