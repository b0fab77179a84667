// Package alert notifies operators when a sync fails.
//
// Notifiers are built from [shared.AlertConfig]: a Slack incoming webhook, an SMTP mailbox, or
// both through [Multi]. Delivery failures are returned to the caller, which logs them; an alert
// never changes the outcome of the run it reports.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hubsync/internal/shared"
)

// Subject is the default alert subject for a failed sync.
const Subject = "hubsync: synchronization failed"

// Alert is one operator notification.
type Alert struct {
	Subject string
	Err     error
	Time    time.Time
}

// Message renders the alert body.
func (a Alert) Message() string {
	return fmt.Sprintf("An error occurred in the HubSpot to MailerLite synchronization: %v", a.Err)
}

// Notifier delivers an [Alert].
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Multi sends every alert to each notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds a notifier for every configured channel. The result is empty when nothing
// is configured.
func FromConfig(cfg shared.AlertConfig, httpClient *http.Client) Multi {
	var m Multi
	if cfg.Slack.WebhookURL != "" {
		m = append(m, NewSlackNotifier(cfg.Slack.WebhookURL, httpClient))
	}
	if cfg.SMTP.Host != "" && len(cfg.SMTP.To) > 0 {
		m = append(m, NewSMTPNotifier(cfg.SMTP))
	}
	return m
}

// Send delivers err through n with a timeout, logging instead of returning delivery failures.
func Send(ctx context.Context, n Notifier, logger *log.Logger, err error, timeout time.Duration) {
	if n == nil || err == nil {
		return
	}
	if m, ok := n.(Multi); ok && len(m) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	a := Alert{Subject: Subject, Err: err, Time: time.Now()}
	if nerr := n.Notify(ctx, a); nerr != nil {
		logger.Error("failed to send alert", "err", nerr)
		return
	}
	logger.Info("alert sent")
}

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// SlackNotifier posts alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a notifier for webhookURL. A nil client uses [http.DefaultClient].
func NewSlackNotifier(webhookURL string, client *http.Client) *SlackNotifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &SlackNotifier{webhookURL: webhookURL, client: client}
}

func (s *SlackNotifier) Notify(ctx context.Context, a Alert) error {
	msg := slackMessage{
		Text: a.Subject,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: a.Subject, Emoji: true}},
			{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: "*Error:*\n" + a.Err.Error()}}},
			{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: "*Time:*\n" + a.Time.Format(time.RFC822)}}},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// SendMailFunc matches [smtp.SendMail].
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier emails alerts through an SMTP relay using STARTTLS when the server offers it.
type SMTPNotifier struct {
	addr     string
	host     string
	username string
	password string
	from     string
	to       []string
	send     SendMailFunc
}

// NewSMTPNotifier creates a notifier from cfg. Port defaults to 587 and From to Username.
func NewSMTPNotifier(cfg shared.SMTPConfig) *SMTPNotifier {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPNotifier{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		host:     cfg.Host,
		username: cfg.Username,
		password: cfg.Password,
		from:     from,
		to:       cfg.To,
		send:     smtp.SendMail,
	}
}

// WithSendFunc replaces the mail transport.
func (s *SMTPNotifier) WithSendFunc(fn SendMailFunc) *SMTPNotifier {
	s.send = fn
	return s
}

// Notify sends the alert. net/smtp has no context support, so ctx is only checked before dialing.
func (s *SMTPNotifier) Notify(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if err := s.send(s.addr, auth, s.from, s.to, s.message(a)); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

func (s *SMTPNotifier) message(a Alert) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", a.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", a.Time.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(a.Message())
	b.WriteString("\r\n")
	return b.Bytes()
}
