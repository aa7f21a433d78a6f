package models

import (
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

const (
	// StatusPending marks a signature status row or request that is still waiting on signees.
	StatusPending = "pending"
	// StatusSigned is the terminal state of a signature status row.
	StatusSigned = "signed"
	// StatusCompleted is the terminal state of a signature request, derived from its status rows.
	StatusCompleted = "completed"
)

// User holds the registered identity a signee or owner acts under.
type User struct {
	ID    string `gorm:"type:varchar(50);primaryKey"`
	Name  string `gorm:"type:varchar(250)"`
	Email string `gorm:"type:varchar(250);uniqueIndex"`

	// SignID is the opaque signing identity stamped into signature artifacts,
	// distinct from the platform user id.
	SignID string `gorm:"column:sign_id;type:varchar(50);uniqueIndex"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// File holds uploaded file metadata. Content lives in object storage under FileKey.
type File struct {
	ID      string `gorm:"type:varchar(50);primaryKey"`
	OwnerID string `gorm:"type:varchar(50);index"`

	FileName string `gorm:"type:varchar(250)"`
	FileKey  string `gorm:"type:varchar(255)"`
	FileSize int64
	FileType string `gorm:"type:varchar(250)"`
	FileHash string `gorm:"type:varchar(255)"`
	FolderID string `gorm:"type:varchar(50)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate generates a file id when none was supplied.
func (f *File) BeforeCreate(_ *gorm.DB) error {
	if f.ID == "" {
		f.ID = xid.New().String()
	}
	return nil
}

// SignatureRequest is one batch submission of files to signees. Its status is
// derived from the child SignatureStatus rows and never set directly by callers.
type SignatureRequest struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	RequestedBy string `gorm:"type:varchar(50);index"`
	Status      string `gorm:"type:varchar(20);default:pending"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SignatureRequest) TableName() string {
	return "signature_requests"
}

// RequestedFile links a file to a signature request. Rows are created with the
// request and never updated afterwards.
type RequestedFile struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	FileID    string `gorm:"type:varchar(50);index"`
	RequestID uint64 `gorm:"index"`
}

func (RequestedFile) TableName() string {
	return "sign_requested_files"
}

// SignatureStatus is the per (request, signee) completion record. SignID,
// SignatureKey and SignedAt are populated together when the row flips to signed.
type SignatureStatus struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	RequestID uint64 `gorm:"index;index:idx_signature_status_request_email"`
	Email     string `gorm:"type:varchar(250);index:idx_signature_status_request_email"`

	SignID       string `gorm:"column:sign_id;type:varchar(50)"`
	SignatureKey string `gorm:"type:varchar(255)"`
	Status       string `gorm:"type:varchar(20);default:pending"`
	SignedAt     *time.Time

	CreatedAt time.Time
}

func (SignatureStatus) TableName() string {
	return "signature_status"
}

// Migrations lists every model the service owns, in dependency order.
func Migrations() []any {
	return []any{
		&User{},
		&File{},
		&SignatureRequest{},
		&RequestedFile{},
		&SignatureStatus{},
	}
}
