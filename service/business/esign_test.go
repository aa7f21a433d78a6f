package business

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/gbjbuzz/service-esign/service/models"
	"github.com/gbjbuzz/service-esign/service/repository"
	"github.com/gbjbuzz/service-esign/service/storage"
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type capturingMailer struct {
	mails []*Mail
	fail  bool
}

func (m *capturingMailer) Send(_ context.Context, mail *Mail) (*MailResult, error) {
	if m.fail {
		return nil, errors.New("mail gateway unreachable")
	}
	m.mails = append(m.mails, mail)
	return &MailResult{Success: true, Message: "email sent successfully"}, nil
}

type failingProvider struct {
	storage.Provider
}

func (failingProvider) Upload(_ context.Context, _ string, _ string, _ []byte) error {
	return errors.New("bucket unavailable")
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", xid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "An in memory database should open without issues")

	err = db.AutoMigrate(models.Migrations()...)
	require.NoError(t, err, "Migrations should apply without issues")

	return db
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newTestEngine(t *testing.T) (EsignService, *gorm.DB, *storage.ProviderMem, *capturingMailer) {
	t.Helper()

	db := newTestDB(t)
	provider := storage.NewMemProvider("MEM")
	mailer := &capturingMailer{}

	engine := NewEsignService(
		repository.NewFileRepository(db),
		repository.NewSignatureRepository(db),
		NewIdentityResolver(db),
		provider,
		mailer,
		"Acme <noreply@gbjbuzz.com>",
		testLogger(),
	)
	return engine, db, provider, mailer
}

func seedUser(t *testing.T, db *gorm.DB, id string, email string) *models.User {
	t.Helper()

	user := &models.User{ID: id, Name: id, Email: email, SignID: "sign-" + id}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedFile(t *testing.T, db *gorm.DB, id string, ownerID string, key string) *models.File {
	t.Helper()

	file := &models.File{
		ID:       id,
		OwnerID:  ownerID,
		FileName: id + ".pdf",
		FileKey:  key,
		FileType: "application/pdf",
	}
	require.NoError(t, db.Create(file).Error)
	return file
}

func TestSendSigningRequestCreatesEverything(t *testing.T) {

	ctx := context.Background()
	engine, db, _, mailer := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")
	seedFile(t, db, "annex", "owner", "documents/2_annex.pdf")

	result, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"contract", "annex", "contract"},
		SignerEmails: []string{"alice@example.com", "bob@example.com"},
		Link:         "https://app.gbjbuzz.com/sign/contract",
	})
	require.NoError(t, err)
	assert.NotZero(t, result.RequestID)
	assert.True(t, result.Notification.Success)

	var links int64
	require.NoError(t, db.Model(&models.RequestedFile{}).
		Where("request_id = ?", result.RequestID).Count(&links).Error)
	assert.Equal(t, int64(2), links, "Duplicate file ids should collapse to a single link each")

	var statuses []*models.SignatureStatus
	require.NoError(t, db.Where("request_id = ?", result.RequestID).Find(&statuses).Error)
	require.Len(t, statuses, 2)
	for _, status := range statuses {
		assert.Equal(t, models.StatusPending, status.Status)
		assert.Empty(t, status.SignID)
		assert.Nil(t, status.SignedAt)
	}

	require.Len(t, mailer.mails, 1)
	assert.Equal(t, "Sign Request Mail", mailer.mails[0].Subject)
	assert.ElementsMatch(t, []string{"alice@example.com", "bob@example.com"}, mailer.mails[0].To)
	assert.Contains(t, mailer.mails[0].HTML, "https://app.gbjbuzz.com/sign/contract")
}

func TestSendSigningRequestRejectsForeignFiles(t *testing.T) {

	ctx := context.Background()
	engine, db, _, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedFile(t, db, "mine", "owner", "documents/1_mine.pdf")
	seedFile(t, db, "theirs", "someone-else", "documents/2_theirs.pdf")

	_, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"mine", "theirs"},
		SignerEmails: []string{"alice@example.com"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrorNotEligible))

	// Nothing may be persisted when any file in the batch fails the ownership check.
	var requests int64
	require.NoError(t, db.Model(&models.SignatureRequest{}).Count(&requests).Error)
	assert.Zero(t, requests)
	var statuses int64
	require.NoError(t, db.Model(&models.SignatureStatus{}).Count(&statuses).Error)
	assert.Zero(t, statuses)
}

func TestSendSigningRequestRequiresInput(t *testing.T) {

	ctx := context.Background()
	engine, _, _, _ := newTestEngine(t)

	for _, req := range []*SigningRequest{
		{FileIDs: []string{"a"}, SignerEmails: []string{"x@example.com"}},
		{RequestedBy: "owner", SignerEmails: []string{"x@example.com"}},
		{RequestedBy: "owner", FileIDs: []string{"a"}},
		{RequestedBy: "owner", FileIDs: []string{""}, SignerEmails: []string{""}},
	} {
		_, err := engine.SendSigningRequest(ctx, req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrorEmptyValueSupplied))
	}
}

func TestSendSigningRequestSurvivesMailFailure(t *testing.T) {

	ctx := context.Background()
	engine, db, _, mailer := newTestEngine(t)
	mailer.fail = true

	seedUser(t, db, "owner", "owner@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")

	result, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"contract"},
		SignerEmails: []string{"alice@example.com"},
	})
	require.NoError(t, err, "A mail failure must not fail the request")
	assert.False(t, result.Notification.Success)

	var requests int64
	require.NoError(t, db.Model(&models.SignatureRequest{}).Count(&requests).Error)
	assert.Equal(t, int64(1), requests, "The request must survive the mail failure")
}

func TestSigneeSignedDocumentIsIdempotent(t *testing.T) {

	ctx := context.Background()
	engine, db, _, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedUser(t, db, "alice", "alice@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")

	_, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"contract"},
		SignerEmails: []string{"alice@example.com", "bob@example.com"},
	})
	require.NoError(t, err)

	outcome, err := engine.SigneeSignedDocument(ctx, "contract", "alice@example.com")
	require.NoError(t, err)
	assert.False(t, outcome.AlreadySigned)
	assert.Equal(t, 1, outcome.SignedCount)

	var first models.SignatureStatus
	require.NoError(t, db.First(&first, "email = ?", "alice@example.com").Error)
	assert.Equal(t, models.StatusSigned, first.Status)
	assert.Equal(t, "sign-alice", first.SignID)
	assert.Len(t, first.SignatureKey, 64)
	require.NotNil(t, first.SignedAt)

	// A replayed submission succeeds without touching the recorded artifact.
	outcome, err = engine.SigneeSignedDocument(ctx, "contract", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, outcome.AlreadySigned)
	assert.Zero(t, outcome.SignedCount)

	var second models.SignatureStatus
	require.NoError(t, db.First(&second, "email = ?", "alice@example.com").Error)
	assert.Equal(t, first.SignatureKey, second.SignatureKey)
	assert.Equal(t, first.SignedAt.UnixNano(), second.SignedAt.UnixNano())
}

func TestSigningPromotesRequestWhenAllSigned(t *testing.T) {

	ctx := context.Background()
	engine, db, _, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")

	result, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"contract"},
		SignerEmails: []string{"alice@example.com", "bob@example.com"},
	})
	require.NoError(t, err)

	_, err = engine.SigneeSignedDocument(ctx, "contract", "alice@example.com")
	require.NoError(t, err)

	var request models.SignatureRequest
	require.NoError(t, db.First(&request, "id = ?", result.RequestID).Error)
	assert.Equal(t, models.StatusPending, request.Status, "One signature out of two must not complete the request")

	_, err = engine.SigneeSignedDocument(ctx, "contract", "bob@example.com")
	require.NoError(t, err)

	require.NoError(t, db.First(&request, "id = ?", result.RequestID).Error)
	assert.Equal(t, models.StatusCompleted, request.Status, "The last signature must promote the request")
}

func TestSigningCascadesAcrossLinkedRequests(t *testing.T) {

	ctx := context.Background()
	engine, db, _, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")

	for i := 0; i < 2; i++ {
		_, err := engine.SendSigningRequest(ctx, &SigningRequest{
			RequestedBy:  "owner",
			FileIDs:      []string{"contract"},
			SignerEmails: []string{"alice@example.com"},
		})
		require.NoError(t, err)
	}

	outcome, err := engine.SigneeSignedDocument(ctx, "contract", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.SignedCount, "A signature covers every request linking this file and signee")

	var completed int64
	require.NoError(t, db.Model(&models.SignatureRequest{}).
		Where("status = ?", models.StatusCompleted).Count(&completed).Error)
	assert.Equal(t, int64(2), completed)
}

func TestUnregisteredSigneeGetsMintedSignID(t *testing.T) {

	ctx := context.Background()
	engine, db, _, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")

	_, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"contract"},
		SignerEmails: []string{"guest@example.com"},
	})
	require.NoError(t, err)

	outcome, err := engine.SigneeSignedDocument(ctx, "contract", "guest@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.SignedCount)

	var status models.SignatureStatus
	require.NoError(t, db.First(&status, "email = ?", "guest@example.com").Error)
	assert.NotEmpty(t, status.SignID, "An unregistered signee still signs under a minted id")
	assert.Equal(t, models.StatusSigned, status.Status)
}

func TestSigneeSignedDocumentUnknownFile(t *testing.T) {

	ctx := context.Background()
	engine, db, _, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")

	_, err := engine.SigneeSignedDocument(ctx, "contract", "alice@example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrorSignatureNotFound))
}

func TestIsValidSignerOwnerSeesAllSignees(t *testing.T) {

	ctx := context.Background()
	engine, db, _, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")

	_, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"contract"},
		SignerEmails: []string{"alice@example.com", "bob@example.com"},
	})
	require.NoError(t, err)

	view, err := engine.IsValidSigner(ctx, "owner", "contract")
	require.NoError(t, err)
	assert.True(t, view.View)
	assert.False(t, view.Sign, "Owners never sign their own request")
	assert.Equal(t, models.StatusPending, view.Status)
	assert.Len(t, view.Info, 2)
}

func TestIsValidSignerSigneeSeesOwnRowOnly(t *testing.T) {

	ctx := context.Background()
	engine, db, _, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedUser(t, db, "alice", "alice@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")

	_, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"contract"},
		SignerEmails: []string{"alice@example.com", "bob@example.com"},
	})
	require.NoError(t, err)

	view, err := engine.IsValidSigner(ctx, "alice", "contract")
	require.NoError(t, err)
	assert.True(t, view.View)
	assert.True(t, view.Sign)
	assert.Equal(t, "sign-alice", view.SignID)
	require.Len(t, view.Info, 1, "A signee must never see the other signees' rows")
	assert.Equal(t, "alice@example.com", view.Info[0].Email)
}

func TestIsValidSignerStrangerCannotSign(t *testing.T) {

	ctx := context.Background()
	engine, db, _, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedUser(t, db, "carol", "carol@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")

	_, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"contract"},
		SignerEmails: []string{"alice@example.com"},
	})
	require.NoError(t, err)

	view, err := engine.IsValidSigner(ctx, "carol", "contract")
	require.NoError(t, err)
	assert.True(t, view.View)
	assert.False(t, view.Sign)
	assert.Empty(t, view.Info)
}

func TestIsValidSignerErrors(t *testing.T) {

	ctx := context.Background()
	engine, db, _, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")

	_, err := engine.IsValidSigner(ctx, "ghost", "contract")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrorNotEligible), "An unknown user cannot participate")

	_, err = engine.IsValidSigner(ctx, "owner", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrorFileNotFound))

	_, err = engine.IsValidSigner(ctx, "owner", "contract")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrorSignatureNotFound), "A file never sent for signing has no workflow")
}

func TestSubmitSignatureReplacesContent(t *testing.T) {

	ctx := context.Background()
	engine, db, provider, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedUser(t, db, "alice", "alice@example.com")

	oldKey := "documents/1_contract.pdf"
	require.NoError(t, provider.Upload(ctx, oldKey, "application/pdf", []byte("unsigned original")))
	seedFile(t, db, "contract", "owner", oldKey)

	_, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"contract"},
		SignerEmails: []string{"alice@example.com"},
	})
	require.NoError(t, err)

	signed := []byte("signed document content")
	result, err := engine.SubmitSignature(ctx, &SignatureSubmission{
		FileID:      "contract",
		FileName:    "contract-signed.pdf",
		OwnerID:     "owner",
		SigneeEmail: "alice@example.com",
		ContentType: "application/pdf",
		Content:     signed,
	})
	require.NoError(t, err)
	assert.False(t, result.Outcome.AlreadySigned)
	assert.Empty(t, result.StorageWarning)
	assert.True(t, strings.HasPrefix(result.FileKey, "documents/"))
	assert.True(t, strings.HasSuffix(result.FileKey, "_contract-signed.pdf"))

	stored, err := provider.Download(ctx, result.FileKey)
	require.NoError(t, err)
	assert.Equal(t, signed, stored)

	_, err = provider.Download(ctx, oldKey)
	assert.Error(t, err, "The replaced content should be gone")

	var file models.File
	require.NoError(t, db.First(&file, "id = ?", "contract").Error)
	sum := sha256.Sum256(signed)
	assert.Equal(t, result.FileKey, file.FileKey)
	assert.Equal(t, "contract-signed.pdf", file.FileName)
	assert.Equal(t, int64(len(signed)), file.FileSize)
	assert.Equal(t, hex.EncodeToString(sum[:]), file.FileHash)
}

func TestSubmitSignatureSurvivesStorageFailure(t *testing.T) {

	ctx := context.Background()
	db := newTestDB(t)

	engine := NewEsignService(
		repository.NewFileRepository(db),
		repository.NewSignatureRepository(db),
		NewIdentityResolver(db),
		failingProvider{},
		&capturingMailer{},
		"Acme <noreply@gbjbuzz.com>",
		testLogger(),
	)

	seedUser(t, db, "owner", "owner@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")

	_, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"contract"},
		SignerEmails: []string{"alice@example.com"},
	})
	require.NoError(t, err)

	result, err := engine.SubmitSignature(ctx, &SignatureSubmission{
		FileID:      "contract",
		SigneeEmail: "alice@example.com",
		Content:     []byte("signed"),
	})
	require.NoError(t, err, "A storage failure after the signature is recorded is a warning, not an error")
	assert.NotEmpty(t, result.StorageWarning)
	assert.Equal(t, "documents/1_contract.pdf", result.FileKey, "The file must keep pointing at the old content")

	var status models.SignatureStatus
	require.NoError(t, db.First(&status, "email = ?", "alice@example.com").Error)
	assert.Equal(t, models.StatusSigned, status.Status, "The signature record is authoritative")
}

func TestSubmitSignatureRejectsUninvitedEmail(t *testing.T) {

	ctx := context.Background()
	engine, db, _, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")

	_, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"contract"},
		SignerEmails: []string{"alice@example.com"},
	})
	require.NoError(t, err)

	_, err = engine.SubmitSignature(ctx, &SignatureSubmission{
		FileID:      "contract",
		SigneeEmail: "mallory@example.com",
		Content:     []byte("forged"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrorSignatureNotFound))
}

func TestGetSignRecordsForUser(t *testing.T) {

	ctx := context.Background()
	engine, db, _, _ := newTestEngine(t)

	seedUser(t, db, "owner", "owner@example.com")
	seedFile(t, db, "contract", "owner", "documents/1_contract.pdf")
	seedFile(t, db, "annex", "owner", "documents/2_annex.pdf")

	_, err := engine.SendSigningRequest(ctx, &SigningRequest{
		RequestedBy:  "owner",
		FileIDs:      []string{"contract", "annex"},
		SignerEmails: []string{"alice@example.com", "bob@example.com"},
	})
	require.NoError(t, err)

	_, err = engine.SigneeSignedDocument(ctx, "contract", "alice@example.com")
	require.NoError(t, err)

	records, err := engine.GetSignRecordsForUser(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, records, 2, "One record per (file, request) pair")

	for _, record := range records {
		require.Len(t, record.Signees, 2)
		assert.Equal(t, models.StatusPending, record.Status)

		signedCount := 0
		for _, signee := range record.Signees {
			if signee.Status == models.StatusSigned {
				signedCount++
				assert.NotNil(t, signee.SignedAt)
			}
		}
		assert.Equal(t, 1, signedCount)
	}

	_, err = engine.GetSignRecordsForUser(ctx, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrorEmptyValueSupplied))

	records, err = engine.GetSignRecordsForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSignatureKeyIsDeterministic(t *testing.T) {

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	first := signatureKey("sign-alice", at)
	second := signatureKey("sign-alice", at)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	other := signatureKey("sign-bob", at)
	assert.NotEqual(t, first, other)
}
