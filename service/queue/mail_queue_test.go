package queue

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/gbjbuzz/service-esign/service/business"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/pubsub"
)

type recordingMailer struct {
	delivered chan *business.Mail
}

func (m *recordingMailer) Send(_ context.Context, mail *business.Mail) (*business.MailResult, error) {
	m.delivered <- mail
	return &business.MailResult{Success: true, Message: "email sent successfully"}, nil
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestMailQueueDeliversPublishedMail(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topic, err := pubsub.OpenTopic(ctx, "mem://esign_mail_test")
	require.NoError(t, err)
	defer topic.Shutdown(ctx)

	subscription, err := pubsub.OpenSubscription(ctx, "mem://esign_mail_test")
	require.NoError(t, err)
	defer subscription.Shutdown(ctx)

	mailer := &recordingMailer{delivered: make(chan *business.Mail, 1)}
	handler := NewMailQueueHandler(mailer, testLogger())
	go handler.Run(ctx, subscription)

	publisher := NewMailPublisher(topic)
	result, err := publisher.Send(ctx, &business.Mail{
		From:    "Acme <noreply@gbjbuzz.com>",
		To:      []string{"alice@example.com"},
		Subject: "Sign Request Mail",
		HTML:    "<h1>You have a document to sign.</h1>",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	select {
	case mail := <-mailer.delivered:
		assert.Equal(t, "Sign Request Mail", mail.Subject)
		assert.Equal(t, []string{"alice@example.com"}, mail.To)
	case <-time.After(5 * time.Second):
		t.Fatal("queued mail was never delivered")
	}
}

func TestMailQueueHandlerRejectsBadPayload(t *testing.T) {

	handler := NewMailQueueHandler(&recordingMailer{delivered: make(chan *business.Mail, 1)}, testLogger())

	err := handler.Handle(context.Background(), []byte("not json"))
	assert.Error(t, err)
}
