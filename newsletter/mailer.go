package newsletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pipeaalzamora/el-blog-del-ceo/httpx"
)

const DefaultResendBaseURL = "https://api.resend.com"

var ErrMailerNotConfigured = errors.New("newsletter: mailer api key is required")

// Message is a plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
}

// Mailer delivers one message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// ResendMailer sends through the Resend HTTP API.
type ResendMailer struct {
	client *httpx.Client
	apiKey string
}

func NewResendMailer(apiKey, baseURL string, timeout time.Duration) (*ResendMailer, error) {
	if apiKey == "" {
		return nil, ErrMailerNotConfigured
	}
	if baseURL == "" {
		baseURL = DefaultResendBaseURL
	}
	client := httpx.NewClient(
		httpx.WithBaseURL(baseURL),
		httpx.WithClientTimeout(timeout),
		httpx.WithRetries(2),
	)
	return &ResendMailer{client: client, apiKey: apiKey}, nil
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	body := map[string]any{
		"from":    msg.From,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"text":    msg.Text,
	}
	var out struct {
		ID string `json:"id"`
	}
	if _, err := m.client.Post(ctx, "/emails", body, &out, httpx.WithBearer(m.apiKey)); err != nil {
		return "", fmt.Errorf("resend: send to %s: %w", msg.To, err)
	}
	return out.ID, nil
}

// LogMailer only logs messages. It stands in when no provider is configured.
type LogMailer struct {
	Logger zerolog.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) (string, error) {
	m.Logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email not sent: no mail provider configured")
	return "", nil
}
