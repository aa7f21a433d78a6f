package repository

import (
	"context"

	"github.com/gbjbuzz/service-esign/service/models"
	"gorm.io/gorm"
)

type FileRepository interface {
	GetByID(ctx context.Context, id string) (*models.File, error)
	CountOwnedByUser(ctx context.Context, ids []string, ownerID string) (int64, error)
	Save(ctx context.Context, file *models.File) error
	Delete(ctx context.Context, id string, ownerID string) error
}

func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

type fileRepository struct {
	db *gorm.DB
}

func (fr *fileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	file := &models.File{}
	err := fr.db.WithContext(ctx).First(file, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return file, nil
}

// CountOwnedByUser reports how many of the supplied file ids belong to ownerID.
// A single set membership query, used for the pre-transaction ownership check.
func (fr *fileRepository) CountOwnedByUser(ctx context.Context, ids []string, ownerID string) (int64, error) {
	var count int64
	err := fr.db.WithContext(ctx).Model(&models.File{}).
		Where("id IN ? AND owner_id = ?", ids, ownerID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (fr *fileRepository) Save(ctx context.Context, file *models.File) error {
	return fr.db.WithContext(ctx).Save(file).Error
}

func (fr *fileRepository) Delete(ctx context.Context, id string, ownerID string) error {
	return fr.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&models.File{}).Error
}
