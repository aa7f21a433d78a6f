package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gbjbuzz/service-esign/service/business"
	"github.com/pkg/errors"
)

// Client delivers mail through the Resend HTTP API.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewClient(endpoint string, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Send(ctx context.Context, mail *business.Mail) (*business.MailResult, error) {

	body, err := json.Marshal(mail)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode mail payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "could not build mail request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "mail request failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &business.MailResult{Success: false, Message: "Failed sending Email, try again !!"},
			errors.Errorf("mail API responded with status %d", resp.StatusCode)
	}

	return &business.MailResult{Success: true, Message: "email sent successfully"}, nil
}
