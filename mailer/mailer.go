// Package mailer composes transactional emails and delivers them over SMTP.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html"
	"html/template"
	"io"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"artisanat/invoice"
	"artisanat/metrics"
	"artisanat/models"
)

type Kind string

const (
	KindConfirmEmail      Kind = "confirm_email"
	KindPasswordReset     Kind = "password_reset"
	KindOrderConfirmation Kind = "order_confirmation"
	KindContactAdmin      Kind = "contact_admin"
	KindContactAck        Kind = "contact_ack"
	KindNewsletter        Kind = "newsletter_welcome"
	KindStockAlert        Kind = "stock_alert"
	KindApplicationStatus Kind = "application_status"
)

var subjects = map[Kind]string{
	KindConfirmEmail:      "Confirmez votre adresse e-mail",
	KindPasswordReset:     "Réinitialisation de votre mot de passe",
	KindOrderConfirmation: "Confirmation de votre commande #{{.Order.OrderNumber}}",
	KindContactAdmin:      "Nouveau message de contact : {{.SubjectLabel}}",
	KindContactAck:        "Nous avons bien reçu votre message",
	KindNewsletter:        "Bienvenue dans notre newsletter",
	KindStockAlert:        "{{.ProductName}} est de nouveau disponible",
	KindApplicationStatus: "Votre candidature artisan : {{.StatusLabel}}",
}

// Template data, one type per kind.
type (
	LinkData struct {
		Name string
		Link string
	}
	OrderData struct {
		Customer models.User
		Order    models.Order
		Company  string
		SiteURL  string
	}
	ContactData struct {
		models.ContactMessage
		SubjectLabel string
	}
	NewsletterData struct {
		Email string
	}
	StockAlertData struct {
		ProductName string
		ProductURL  string
	}
	ApplicationData struct {
		FullName    string
		Status      models.ApplicationStatus
		StatusLabel string
	}
)

type Attachment struct {
	Name string
	Data []byte
}

type Message struct {
	Kind        Kind
	To          []string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

//go:embed templates/*.html
var templateFS embed.FS

var (
	pages = template.Must(template.New("").Funcs(template.FuncMap{
		"euros": func(d decimal.Decimal) string { return strings.Replace(d.StringFixed(2), ".", ",", 1) + " €" },
		"label": invoice.ItemLabel,
	}).ParseFS(templateFS, "templates/*.html"))

	subjectTemplates = func() map[Kind]*texttemplate.Template {
		out := make(map[Kind]*texttemplate.Template, len(subjects))
		for k, s := range subjects {
			out[k] = texttemplate.Must(texttemplate.New(string(k)).Parse(s))
		}
		return out
	}()

	stripTags = bluemonday.StrictPolicy()
)

// Compose renders the subject, HTML body and plain-text alternative of kind.
func Compose(kind Kind, to []string, data any) (Message, error) {
	st, ok := subjectTemplates[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown email kind %q", kind)
	}
	var subject bytes.Buffer
	if err := st.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", kind, err)
	}

	var body bytes.Buffer
	if err := pages.ExecuteTemplate(&body, string(kind)+".html", data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", kind, err)
	}
	return Message{
		Kind:    kind,
		To:      to,
		Subject: subject.String(),
		HTML:    body.String(),
		Text:    PlainText(body.String()),
	}, nil
}

// PlainText strips markup and blank lines from an HTML body.
func PlainText(s string) string {
	text := html.UnescapeString(stripTags.Sanitize(s))
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

// Deliver sends msg through m and records the outcome.
func Deliver(ctx context.Context, m Mailer, msg Message) error {
	err := m.Send(ctx, msg)
	metrics.EmailSent(string(msg.Kind), err)
	return err
}

// --- SMTP --------------------------------------------------------------------

type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(host string, port int, username, password, from string) *SMTP {
	return &SMTP{dialer: gomail.NewDialer(host, port, username, password), from: from}
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	for _, a := range msg.Attachments {
		data := a.Data
		m.Attach(a.Name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send %s: %w", msg.Kind, err)
	}
	return nil
}

// --- development and tests -----------------------------------------------------

// Log writes messages to the logger instead of sending them.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(_ context.Context, msg Message) error {
	names := make([]string, len(msg.Attachments))
	for i, a := range msg.Attachments {
		names[i] = a.Name
	}
	l.Logger.Info("email not sent, SMTP disabled",
		zap.String("kind", string(msg.Kind)),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Strings("attachments", names),
	)
	return nil
}

// Memory keeps sent messages. Err, when set, is returned by Send.
type Memory struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (m *Memory) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *Memory) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
