package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SuggestionColumns maps the public suggestion field names to the free-text
// columns they are drawn from. Anything else is rejected.
var SuggestionColumns = map[string]string{
	"placa":     "plate",
	"motorista": "driver_name",
	"produto":   "product",
	"variedade": "variety",
	"talhao":    "field_name",
	"destino":   "destination_name",
}

// documentColumns are owned by the sync path; record saves never touch them.
var documentColumns = []string{
	"documento_external_id",
	"documento_status",
	"documento_access_key",
	"documento_protocol",
	"documento_pdf_url",
	"documento_xml_url",
	"documento_last_sync_at",
	"documento_last_error",
	"documento_retry_count",
	"documento_next_retry_at",
}

// ErrDocumentAuthorized is returned by Update when the stored record already
// carries an authorized NF-e. The row is left untouched.
var ErrDocumentAuthorized = errors.New("shipment document already authorized")

type ShipmentRepository interface {
	Create(ctx context.Context, s *model.Shipment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Shipment, error)
	Update(ctx context.Context, s *model.Shipment) error
	UpdateDocument(ctx context.Context, id uuid.UUID, doc model.FiscalDocument) error
	ListPendingSync(ctx context.Context, now time.Time, limit int) ([]model.Shipment, error)
	RecordSyncFailure(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt *time.Time, lastErr string) error
	DistinctValues(ctx context.Context, column string, limit int) ([]string, error)
}

type shipmentRepo struct{ db *gorm.DB }

func NewShipmentRepository(db *gorm.DB) ShipmentRepository {
	return &shipmentRepo{db: db}
}

func (r *shipmentRepo) Create(ctx context.Context, s *model.Shipment) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *shipmentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Shipment, error) {
	var s model.Shipment
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, err
}

// Update writes the editable columns, guarded on the stored document status so
// a save racing with an authorization cannot overwrite the authorized record.
func (r *shipmentRepo) Update(ctx context.Context, s *model.Shipment) error {
	omit := append([]string{"id", "created_at", "created_by"}, documentColumns...)
	res := r.db.WithContext(ctx).
		Model(s).
		Select("*").
		Omit(omit...).
		Where("documento_status <> ?", "autorizado").
		Updates(s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Shipment{}).Where("id = ?", s.ID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrDocumentAuthorized
}

func (r *shipmentRepo) UpdateDocument(ctx context.Context, id uuid.UUID, doc model.FiscalDocument) error {
	return r.db.WithContext(ctx).Model(&model.Shipment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"documento_external_id":   doc.ExternalID,
		"documento_status":        doc.Status,
		"documento_access_key":    doc.AccessKey,
		"documento_protocol":      doc.Protocol,
		"documento_pdf_url":       doc.PDFURL,
		"documento_xml_url":       doc.XMLURL,
		"documento_last_sync_at":  doc.LastSyncAt,
		"documento_last_error":    doc.LastError,
		"documento_retry_count":   doc.RetryCount,
		"documento_next_retry_at": doc.NextRetryAt,
	}).Error
}

// ListPendingSync returns pending documents whose retry time has come,
// oldest schedule first. Documents that exhausted their retries (count set,
// no next attempt) are skipped.
func (r *shipmentRepo) ListPendingSync(ctx context.Context, now time.Time, limit int) ([]model.Shipment, error) {
	var out []model.Shipment
	err := r.db.WithContext(ctx).
		Where("documento_status = ?", "pendente").
		Where("documento_next_retry_at <= ? OR (documento_next_retry_at IS NULL AND documento_retry_count = 0)", now).
		Order("documento_next_retry_at ASC NULLS FIRST").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// RecordSyncFailure only touches the retry bookkeeping of a still pending
// document; a record authorized in the meantime is left as is.
func (r *shipmentRepo) RecordSyncFailure(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt *time.Time, lastErr string) error {
	return r.db.WithContext(ctx).Model(&model.Shipment{}).Where("id = ? AND documento_status = ?", id, "pendente").Updates(map[string]interface{}{
		"documento_retry_count":   retryCount,
		"documento_next_retry_at": nextRetryAt,
		"documento_last_error":    lastErr,
	}).Error
}

// DistinctValues lists the most recent distinct non-empty values of a
// suggestion column. The column must come from SuggestionColumns.
func (r *shipmentRepo) DistinctValues(ctx context.Context, column string, limit int) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).
		Model(&model.Shipment{}).
		Select(column).
		Where(column+" <> ''").
		Group(column).
		Order("MAX(created_at) DESC").
		Limit(limit).
		Pluck(column, &out).Error
	return out, err
}
