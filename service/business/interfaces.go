package business

import (
	"context"
	"time"
)

// Identity is the signing identity a platform user resolves to.
type Identity struct {
	ID     string
	Email  string
	SignID string
}

// IdentityResolver maps platform users to their signing identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) (*Identity, error)
	ResolveByEmail(ctx context.Context, email string) (*Identity, error)
}

// Mail is a notification email carrying a signing link.
type Mail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// MailResult reports the outcome of handing a mail over for delivery.
type MailResult struct {
	Success bool   `json:"success"`
	Message string `json:"msg"`
}

// Mailer delivers notification emails. Delivery is best effort with respect to
// the signing workflow; implementations may enqueue rather than send.
type Mailer interface {
	Send(ctx context.Context, mail *Mail) (*MailResult, error)
}

// SigningRequest is an owner's batch submission of files to signees.
type SigningRequest struct {
	RequestedBy  string   `json:"requestedBy"`
	FileIDs      []string `json:"fileIds"`
	SignerEmails []string `json:"signers_email"`
	Link         string   `json:"link"`
}

// SigningRequestResult reports the created request and the notification outcome.
type SigningRequestResult struct {
	RequestID    uint64      `json:"requestId"`
	Notification *MailResult `json:"notification"`
}

// Signee is one signee's completion state within a request.
type Signee struct {
	ID       string     `json:"Id"`
	Email    string     `json:"Email"`
	SignID   string     `json:"signId"`
	Status   string     `json:"signedStatus"`
	SignedAt *time.Time `json:"signedAt"`
}

// SigneeInfo is one status row shown to a caller of the capability check.
type SigneeInfo struct {
	FileName    string     `json:"fileName"`
	RequestedAt time.Time  `json:"createdAt"`
	Email       string     `json:"signeeEmail"`
	Status      string     `json:"signeeSignStatus"`
	SignID      string     `json:"signId"`
	SignedAt    *time.Time `json:"signedAt"`
}

// SignerView is what a caller is entitled to see and do with a file's signing
// workflow. Owners get the full breakdown, signees only their own row.
type SignerView struct {
	FileURL string        `json:"fileUrl"`
	View    bool          `json:"view"`
	Sign    bool          `json:"sign"`
	Status  string        `json:"status"`
	SignID  string        `json:"signId"`
	Info    []*SigneeInfo `json:"info,omitempty"`
}

// SignOutcome reports a signing attempt. An idempotent re-submission is a
// success with AlreadySigned set, never an error.
type SignOutcome struct {
	AlreadySigned bool   `json:"alreadySigned"`
	SignedCount   int    `json:"signedCount"`
	Message       string `json:"message"`
}

// SignatureSubmission couples a signing attempt to the signed file content.
type SignatureSubmission struct {
	FileID      string
	FileName    string
	OwnerID     string
	SigneeEmail string
	ContentType string
	Content     []byte
}

// SubmitResult reports signature bookkeeping plus the content replacement. A
// storage failure after a recorded signature surfaces as StorageWarning; the
// signature itself is authoritative and never rolled back.
type SubmitResult struct {
	Outcome        *SignOutcome `json:"outcome"`
	FileKey        string       `json:"fileKey"`
	StorageWarning string       `json:"storageWarning,omitempty"`
}

// SignRecord is one (file, request) summary with its nested signees.
type SignRecord struct {
	FileID      string     `json:"fileId"`
	FileName    string     `json:"fileName"`
	FileURL     string     `json:"fileUrl"`
	RequestID   uint64     `json:"requestId"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"createdAt"`
	SignedAt    *time.Time `json:"signedAt"`
	Signees     []*Signee  `json:"signees"`
}

// EsignService orchestrates the signature request and fulfillment workflow.
type EsignService interface {
	SendSigningRequest(ctx context.Context, req *SigningRequest) (*SigningRequestResult, error)
	IsValidSigner(ctx context.Context, signerUserID string, fileID string) (*SignerView, error)
	SigneeSignedDocument(ctx context.Context, fileID string, signeeEmail string) (*SignOutcome, error)
	SubmitSignature(ctx context.Context, sub *SignatureSubmission) (*SubmitResult, error)
	GetSignRecordsForUser(ctx context.Context, ownerID string) ([]*SignRecord, error)
}
