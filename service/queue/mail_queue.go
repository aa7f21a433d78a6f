package queue

import (
	"context"
	"encoding/json"

	"github.com/gbjbuzz/service-esign/service/business"
	"github.com/sirupsen/logrus"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
)

// MailPublisher enqueues notification mail instead of sending it inline so a
// slow or failing mail API can never delay a committed signing request.
type MailPublisher struct {
	topic *pubsub.Topic
}

func NewMailPublisher(topic *pubsub.Topic) *MailPublisher {
	return &MailPublisher{topic: topic}
}

func (p *MailPublisher) Send(ctx context.Context, mail *business.Mail) (*business.MailResult, error) {

	body, err := json.Marshal(mail)
	if err != nil {
		return nil, err
	}

	err = p.topic.Send(ctx, &pubsub.Message{Body: body})
	if err != nil {
		return nil, err
	}

	return &business.MailResult{Success: true, Message: "sign request mail queued"}, nil
}

// MailQueueHandler drains the mail queue and hands each message to the
// configured mailer. Failures are logged only; delivery is best effort.
type MailQueueHandler struct {
	mailer business.Mailer
	log    *logrus.Entry
}

func NewMailQueueHandler(mailer business.Mailer, log *logrus.Entry) *MailQueueHandler {
	return &MailQueueHandler{
		mailer: mailer,
		log:    log,
	}
}

func (h *MailQueueHandler) Handle(ctx context.Context, payload []byte) error {

	mail := &business.Mail{}
	err := json.Unmarshal(payload, mail)
	if err != nil {
		return err
	}

	_, err = h.mailer.Send(ctx, mail)
	return err
}

// Run receives until the context is cancelled or the subscription closes.
func (h *MailQueueHandler) Run(ctx context.Context, subscription *pubsub.Subscription) {

	for {
		msg, err := subscription.Receive(ctx)
		if err != nil {
			h.log.WithError(err).Info("mail queue receive stopped")
			return
		}

		if err = h.Handle(ctx, msg.Body); err != nil {
			h.log.WithError(err).Warn("sign request mail delivery failed")
		}
		msg.Ack()
	}
}
