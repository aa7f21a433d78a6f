package business

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gbjbuzz/service-esign/service/repository"
	"github.com/gbjbuzz/service-esign/service/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type esignService struct {
	files      repository.FileRepository
	signatures repository.SignatureRepository
	resolver   IdentityResolver
	provider   storage.Provider
	mailer     Mailer
	mailFrom   string
	log        *logrus.Entry
}

// NewEsignService creates the signature workflow engine. All collaborators are
// injected; the engine owns no connections of its own.
func NewEsignService(
	files repository.FileRepository,
	signatures repository.SignatureRepository,
	resolver IdentityResolver,
	provider storage.Provider,
	mailer Mailer,
	mailFrom string,
	log *logrus.Entry,
) EsignService {
	return &esignService{
		files:      files,
		signatures: signatures,
		resolver:   resolver,
		provider:   provider,
		mailer:     mailer,
		mailFrom:   mailFrom,
		log:        log,
	}
}

// signatureKey derives the attestation artifact recorded at sign time. It is a
// repeatable digest over the signing identity and timestamp, not a
// cryptographic proof of anything.
func signatureKey(signID string, at time.Time) string {
	payload := fmt.Sprintf("signed through printable platform date:%s signId:%s",
		at.Format(time.RFC3339), signID)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// storageKey builds the object key a replaced document is stored under.
func storageKey(fileName string) string {
	return fmt.Sprintf("documents/%d_%s", time.Now().UnixMilli(), fileName)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func (s *esignService) SendSigningRequest(ctx context.Context, req *SigningRequest) (*SigningRequestResult, error) {

	fileIDs := dedupe(req.FileIDs)
	signerEmails := dedupe(req.SignerEmails)

	if req.RequestedBy == "" || len(fileIDs) == 0 || len(signerEmails) == 0 {
		return nil, errors.Wrap(ErrorEmptyValueSupplied, "requestedBy, fileIds and signers_email are all required")
	}

	// Ownership check happens before the transaction; one set membership query.
	owned, err := s.files.CountOwnedByUser(ctx, fileIDs, req.RequestedBy)
	if err != nil {
		return nil, errors.Wrap(err, "could not verify file ownership")
	}
	if owned != int64(len(fileIDs)) {
		return nil, errors.Wrap(ErrorNotEligible, "not eligible to send sign request")
	}

	request, err := s.signatures.CreateRequest(ctx, req.RequestedBy, fileIDs, signerEmails)
	if err != nil {
		return nil, errors.Wrap(err, "could not create signature request")
	}

	// The request is durable at this point. Notification delivery is best
	// effort and must never fail or roll back the request.
	notification, err := s.mailer.Send(ctx, &Mail{
		From:    s.mailFrom,
		To:      signerEmails,
		Subject: "Sign Request Mail",
		HTML:    fmt.Sprintf("<h1>You have a document to sign.</h1><p>link: %s</p>", req.Link),
	})
	if err != nil {
		s.log.WithError(err).WithField("request_id", request.ID).
			Warn("signing request notification failed")
		notification = &MailResult{Success: false, Message: "Failed sending Email, try again !!"}
	}

	return &SigningRequestResult{
		RequestID:    request.ID,
		Notification: notification,
	}, nil
}

func (s *esignService) IsValidSigner(ctx context.Context, signerUserID string, fileID string) (*SignerView, error) {

	identity, err := s.resolver.Resolve(ctx, signerUserID)
	if err != nil {
		if errors.Is(err, ErrorUnknownIdentity) {
			return nil, errors.Wrapf(ErrorNotEligible, "user %s is not recognised", signerUserID)
		}
		return nil, err
	}

	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrorFileNotFound, "file id %s", fileID)
		}
		return nil, err
	}

	view := &SignerView{
		FileURL: file.FileKey,
		View:    true,
		SignID:  identity.SignID,
	}

	if file.OwnerID == signerUserID {
		// Owners see every signee but do not sign their own request.
		rows, err0 := s.signatures.StatusesForFile(ctx, fileID, "")
		if err0 != nil {
			return nil, err0
		}
		if len(rows) == 0 {
			return nil, errors.Wrapf(ErrorSignatureNotFound, "file id %s", fileID)
		}

		view.Status = rows[0].RequestStatus
		view.Info = statusRowsToInfo(rows)
		return view, nil
	}

	// Signees see their own row only; other signees' data stays hidden.
	rows, err := s.signatures.StatusesForFile(ctx, fileID, identity.Email)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		// The caller is neither owner nor an invited signee. Confirm the file
		// was ever sent for signing so absence is reported as not found.
		all, err0 := s.signatures.StatusesForFile(ctx, fileID, "")
		if err0 != nil {
			return nil, err0
		}
		if len(all) == 0 {
			return nil, errors.Wrapf(ErrorSignatureNotFound, "file id %s", fileID)
		}
		return view, nil
	}

	view.Sign = true
	view.Status = rows[0].SigneeStatus
	view.Info = statusRowsToInfo(rows)
	return view, nil
}

func statusRowsToInfo(rows []*repository.SigneeStatusRow) []*SigneeInfo {
	info := make([]*SigneeInfo, 0, len(rows))
	for _, row := range rows {
		info = append(info, &SigneeInfo{
			FileName:    row.FileName,
			RequestedAt: row.RequestedAt,
			Email:       row.SigneeEmail,
			Status:      row.SigneeStatus,
			SignID:      row.SignID,
			SignedAt:    row.SignedAt,
		})
	}
	return info
}

func (s *esignService) SigneeSignedDocument(ctx context.Context, fileID string, signeeEmail string) (*SignOutcome, error) {

	if fileID == "" || signeeEmail == "" {
		return nil, errors.Wrap(ErrorEmptyValueSupplied, "fileId and signeeEmail are required")
	}

	// Email is the primary signee key. A registered signee signs under their
	// stored signing id; an unregistered one gets an opaque id minted now.
	var signID string
	identity, err := s.resolver.ResolveByEmail(ctx, signeeEmail)
	if err != nil {
		if !errors.Is(err, ErrorUnknownIdentity) {
			return nil, err
		}
		signID = uuid.New().String()
	} else {
		signID = identity.SignID
	}

	requestIDs, err := s.signatures.RequestIDsForFileAndEmail(ctx, fileID, signeeEmail)
	if err != nil {
		return nil, errors.Wrap(err, "could not look up signature requests")
	}
	if len(requestIDs) == 0 {
		return nil, errors.Wrapf(ErrorSignatureNotFound, "file %s has no signature request for %s", fileID, signeeEmail)
	}

	// Signing cascades to every request linked to this file whose row for the
	// signee is still pending. Each flip re-evaluates completion for its own
	// request, so the last signer always triggers the promotion.
	now := time.Now().UTC()
	signedCount := 0
	for _, requestID := range requestIDs {
		flipped, err0 := s.signatures.MarkSigned(ctx, requestID, signeeEmail, signID, signatureKey(signID, now), now)
		if err0 != nil {
			return nil, errors.Wrapf(err0, "could not record signature on request %d", requestID)
		}
		if flipped {
			signedCount++
		}
	}

	if signedCount == 0 {
		return &SignOutcome{
			AlreadySigned: true,
			Message:       "Document already signed.",
		}, nil
	}

	s.log.WithFields(logrus.Fields{
		"file_id": fileID,
		"signee":  signeeEmail,
		"signed":  signedCount,
	}).Info("signee signed document")

	return &SignOutcome{
		SignedCount: signedCount,
		Message:     "Document signed successfully!.",
	}, nil
}

func (s *esignService) SubmitSignature(ctx context.Context, sub *SignatureSubmission) (*SubmitResult, error) {

	if sub.FileID == "" || sub.SigneeEmail == "" || len(sub.Content) == 0 {
		return nil, errors.Wrap(ErrorEmptyValueSupplied, "fileId, signeeEmail and file content are required")
	}

	file, err := s.files.GetByID(ctx, sub.FileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrorFileNotFound, "file id %s", sub.FileID)
		}
		return nil, err
	}

	// Bookkeeping first: the signature record is the authoritative outcome.
	// It also covers eligibility, rejecting emails with no status row.
	outcome, err := s.SigneeSignedDocument(ctx, sub.FileID, sub.SigneeEmail)
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{
		Outcome: outcome,
		FileKey: file.FileKey,
	}

	fileName := sub.FileName
	if fileName == "" {
		fileName = file.FileName
	}

	newKey := storageKey(fileName)
	err = s.provider.Upload(ctx, newKey, sub.ContentType, sub.Content)
	if err != nil {
		s.log.WithError(err).WithField("file_id", file.ID).
			Warn("signed content upload failed after signature was recorded")
		result.StorageWarning = "signature recorded but the signed document could not be stored"
		return result, nil
	}

	oldKey := file.FileKey
	sum := sha256.Sum256(sub.Content)

	file.FileKey = newKey
	file.FileName = fileName
	file.FileSize = int64(len(sub.Content))
	file.FileHash = hex.EncodeToString(sum[:])
	if sub.ContentType != "" {
		file.FileType = sub.ContentType
	}

	err = s.files.Save(ctx, file)
	if err != nil {
		s.log.WithError(err).WithField("file_id", file.ID).
			Warn("file metadata update failed after signature was recorded")
		result.StorageWarning = "signature recorded but the file metadata could not be updated"
		return result, nil
	}
	result.FileKey = newKey

	if oldKey != "" && oldKey != newKey {
		err = s.provider.Delete(ctx, oldKey)
		if err != nil {
			s.log.WithError(err).WithField("key", oldKey).
				Warn("could not delete replaced document content")
		}
	}

	return result, nil
}
