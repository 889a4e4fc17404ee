package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultResendURL is the public Resend API base URL.
const DefaultResendURL = "https://api.resend.com"

// ResendSender delivers email through the Resend HTTP API.
type ResendSender struct {
	client *resty.Client
	apiKey string
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// NewResendSender constructs a sender targeting baseURL.
func NewResendSender(baseURL, apiKey string) *ResendSender {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultResendURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("User-Agent", "ScreenGrab-Backend/1.0").
		SetTimeout(15 * time.Second)

	return &ResendSender{client: client, apiKey: apiKey}
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if s.apiKey == "" {
		return ErrNotConfigured
	}

	var (
		result  resendResponse
		failure resendError
	)
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(resendRequest{
			From:    msg.From,
			To:      []string{msg.To},
			Subject: msg.Subject,
			HTML:    msg.HTML,
		}).
		SetResult(&result).
		SetError(&failure).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}

	if resp.IsError() {
		if failure.Message != "" {
			return fmt.Errorf("resend status %d: %s", resp.StatusCode(), failure.Message)
		}
		return fmt.Errorf("resend status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	return nil
}
