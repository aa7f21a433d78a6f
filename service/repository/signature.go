package repository

import (
	"context"
	"time"

	"github.com/gbjbuzz/service-esign/service/models"
	"gorm.io/gorm"
)

// SigneeStatusRow is one signature status row joined with its request, scoped
// to a single file. Used by the signer capability check.
type SigneeStatusRow struct {
	RequestID     uint64     `gorm:"column:request_id"`
	FileName      string     `gorm:"column:file_name"`
	OwnerID       string     `gorm:"column:owner_id"`
	RequestedAt   time.Time  `gorm:"column:requested_at"`
	RequestStatus string     `gorm:"column:request_status"`
	SigneeEmail   string     `gorm:"column:signee_email"`
	SigneeStatus  string     `gorm:"column:signee_status"`
	SignID        string     `gorm:"column:sign_id"`
	SignedAt      *time.Time `gorm:"column:signed_at"`
}

// SignRecordRow is one flattened row of the owner projection. Signee columns
// are nullable so requests without status rows still surface.
type SignRecordRow struct {
	FileID        string     `gorm:"column:file_id"`
	FileName      string     `gorm:"column:file_name"`
	FileKey       string     `gorm:"column:file_key"`
	RequestID     uint64     `gorm:"column:request_id"`
	RequestedAt   time.Time  `gorm:"column:requested_at"`
	RequestStatus string     `gorm:"column:request_status"`
	SigneeID      *uint64    `gorm:"column:signee_id"`
	SigneeEmail   *string    `gorm:"column:signee_email"`
	SigneeSignID  *string    `gorm:"column:signee_sign_id"`
	SigneeStatus  *string    `gorm:"column:signee_status"`
	SignedAt      *time.Time `gorm:"column:signed_at"`
}

type SignatureRepository interface {
	CreateRequest(ctx context.Context, requestedBy string, fileIDs []string, signerEmails []string) (*models.SignatureRequest, error)
	GetRequest(ctx context.Context, id uint64) (*models.SignatureRequest, error)
	RequestIDsForFileAndEmail(ctx context.Context, fileID string, email string) ([]uint64, error)
	MarkSigned(ctx context.Context, requestID uint64, email string, signID string, signatureKey string, at time.Time) (bool, error)
	StatusesForFile(ctx context.Context, fileID string, email string) ([]*SigneeStatusRow, error)
	RecordsForOwner(ctx context.Context, ownerID string) ([]*SignRecordRow, error)
}

func NewSignatureRepository(db *gorm.DB) SignatureRepository {
	return &signatureRepository{db: db}
}

type signatureRepository struct {
	db *gorm.DB
}

// CreateRequest inserts the request, its file links and one pending status row
// per signee inside a single transaction. Partial creation is never observable.
func (sr *signatureRepository) CreateRequest(ctx context.Context, requestedBy string, fileIDs []string, signerEmails []string) (*models.SignatureRequest, error) {

	request := &models.SignatureRequest{
		RequestedBy: requestedBy,
		Status:      models.StatusPending,
	}

	err := sr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(request).Error; err != nil {
			return err
		}

		links := make([]*models.RequestedFile, 0, len(fileIDs))
		for _, fileID := range fileIDs {
			links = append(links, &models.RequestedFile{
				FileID:    fileID,
				RequestID: request.ID,
			})
		}
		if err := tx.Create(&links).Error; err != nil {
			return err
		}

		statuses := make([]*models.SignatureStatus, 0, len(signerEmails))
		for _, email := range signerEmails {
			statuses = append(statuses, &models.SignatureStatus{
				RequestID: request.ID,
				Email:     email,
				Status:    models.StatusPending,
			})
		}
		return tx.Create(&statuses).Error
	})
	if err != nil {
		return nil, err
	}

	return request, nil
}

func (sr *signatureRepository) GetRequest(ctx context.Context, id uint64) (*models.SignatureRequest, error) {
	request := &models.SignatureRequest{}
	err := sr.db.WithContext(ctx).First(request, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return request, nil
}

// RequestIDsForFileAndEmail lists every request linked to the file that carries
// a status row for the given signee email, regardless of its state.
func (sr *signatureRepository) RequestIDsForFileAndEmail(ctx context.Context, fileID string, email string) ([]uint64, error) {
	var requestIDs []uint64
	err := sr.db.WithContext(ctx).
		Table("signature_status").
		Select("signature_status.request_id").
		Joins("JOIN sign_requested_files ON sign_requested_files.request_id = signature_status.request_id").
		Where("sign_requested_files.file_id = ? AND signature_status.email = ?", fileID, email).
		Scan(&requestIDs).Error
	if err != nil {
		return nil, err
	}

	return requestIDs, nil
}

// MarkSigned flips the (request, email) status row from pending to signed and
// recomputes completion for the request in the same transaction. Returns false
// without error when the row was already signed. The completion aggregate runs
// even when nothing flipped so a previously missed promotion is repaired on the
// next signing activity.
func (sr *signatureRepository) MarkSigned(ctx context.Context, requestID uint64, email string, signID string, signatureKey string, at time.Time) (bool, error) {

	flipped := false
	err := sr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.SignatureStatus{}).
			Where("request_id = ? AND email = ? AND status = ?", requestID, email, models.StatusPending).
			Updates(map[string]any{
				"status":        models.StatusSigned,
				"sign_id":       signID,
				"signature_key": signatureKey,
				"signed_at":     at,
			})
		if res.Error != nil {
			return res.Error
		}
		flipped = res.RowsAffected > 0

		var agg struct {
			Total  int64 `gorm:"column:total"`
			Signed int64 `gorm:"column:signed"`
		}
		err := tx.Raw(
			"SELECT COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS signed FROM signature_status WHERE request_id = ?",
			models.StatusSigned, requestID,
		).Scan(&agg).Error
		if err != nil {
			return err
		}

		if agg.Total > 0 && agg.Total == agg.Signed {
			return tx.Model(&models.SignatureRequest{}).
				Where("id = ? AND status <> ?", requestID, models.StatusCompleted).
				Update("status", models.StatusCompleted).Error
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return flipped, nil
}

// StatusesForFile returns the status rows of every request linked to the file,
// optionally narrowed to a single signee email.
func (sr *signatureRepository) StatusesForFile(ctx context.Context, fileID string, email string) ([]*SigneeStatusRow, error) {

	tx := sr.db.WithContext(ctx).
		Table("files").
		Select("signature_requests.id AS request_id, files.file_name, files.owner_id, " +
			"signature_requests.created_at AS requested_at, signature_requests.status AS request_status, " +
			"signature_status.email AS signee_email, signature_status.status AS signee_status, " +
			"signature_status.sign_id, signature_status.signed_at").
		Joins("JOIN sign_requested_files ON files.id = sign_requested_files.file_id").
		Joins("JOIN signature_requests ON sign_requested_files.request_id = signature_requests.id").
		Joins("JOIN signature_status ON signature_status.request_id = signature_requests.id").
		Where("files.id = ?", fileID)

	if email != "" {
		tx = tx.Where("signature_status.email = ?", email)
	}

	var rows []*SigneeStatusRow
	err := tx.Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// RecordsForOwner returns the flattened projection rows for every request the
// owner created. Status rows are left joined so empty requests still appear.
func (sr *signatureRepository) RecordsForOwner(ctx context.Context, ownerID string) ([]*SignRecordRow, error) {

	var rows []*SignRecordRow
	err := sr.db.WithContext(ctx).
		Table("sign_requested_files").
		Select("files.id AS file_id, files.file_name, files.file_key, "+
			"sign_requested_files.request_id, signature_requests.created_at AS requested_at, "+
			"signature_requests.status AS request_status, "+
			"signature_status.id AS signee_id, signature_status.email AS signee_email, "+
			"signature_status.sign_id AS signee_sign_id, signature_status.status AS signee_status, "+
			"signature_status.signed_at").
		Joins("LEFT JOIN files ON sign_requested_files.file_id = files.id").
		Joins("LEFT JOIN signature_requests ON sign_requested_files.request_id = signature_requests.id").
		Joins("LEFT JOIN signature_status ON signature_status.request_id = signature_requests.id").
		Where("signature_requests.requested_by = ?", ownerID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}
