// Package mailer delivers verification messages out of band. Delivery is
// fire-and-forget from the caller's point of view.
package mailer

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/dmitrijs2005/credcore/internal/logging"
)

// Mailer sends a single message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes messages to a logger instead of an SMTP relay. It is
// what the CLI uses: the token shows up in the local log.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.log.Info(ctx, "outgoing mail", "to", logging.MaskEmail(to), "subject", subject, "body", body)
	return nil
}

// Message is one captured delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Outbox keeps messages in memory. Err, when set, is returned by Send
// after the message is recorded.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (o *Outbox) Send(ctx context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, Message{To: to, Subject: subject, Body: body})
	return o.Err
}

func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}

const VerificationSubject = "Confirm your email address"

// VerificationMessage builds the body for a verification token. When
// baseURL is set a clickable link is included.
func VerificationMessage(token, baseURL string) string {
	body := fmt.Sprintf("Your verification code is:\n\n    %s\n", token)
	if baseURL == "" {
		return body
	}
	link := baseURL + "?token=" + url.QueryEscape(token)
	return body + fmt.Sprintf("\nOr open %s\n", link)
}
