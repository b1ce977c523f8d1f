// Package mailer sends templated mails to the registrants of an event.
package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"eventreg/internal/metrics"
	"eventreg/internal/models"
	"eventreg/internal/storage"
)

var ErrUnknownMailType = errors.New("unknown mail type")

type Store interface {
	ListRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error)
	Upsert(ctx context.Context, reg *models.Registration) error
	GetMailText(ctx context.Context, eventID int64, mailType string) (*models.MailText, error)
}

// Linker builds the verification link of a registration.
type Linker interface {
	Link(ev *models.Event, reg models.Registration) string
}

type MailReport struct {
	Sent    int
	Skipped int
	Failed  int
}

type Mailer struct {
	store    Store
	links    Linker
	tr       Transport
	fromName string
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func New(store Store, links Linker, tr Transport, fromName string, m *metrics.Metrics, log *zap.Logger) *Mailer {
	if m == nil {
		m = metrics.New(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{store: store, links: links, tr: tr, fromName: fromName, metrics: m, log: log}
}

// MailParticipants sends the event's mail text of mailType to every registration that
// still needs it. Confirmation mails go to unconfirmed registrations and mark them
// confirmed once sent; verification mails go to unverified ones. A non-empty debugTo
// receives every mail instead of the participants, and nothing is marked.
func (m *Mailer) MailParticipants(ctx context.Context, ev *models.Event, mailType, debugTo string) (MailReport, error) {
	var report MailReport
	if !models.ValidMailType(mailType) {
		return report, fmt.Errorf("%w: %q", ErrUnknownMailType, mailType)
	}
	mt, err := m.store.GetMailText(ctx, ev.ID, mailType)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return report, fmt.Errorf("no %s mail text for event %s: %w", mailType, ev.Name, err)
		}
		return report, err
	}
	regs, err := m.store.ListRegistrations(ctx, ev.ID)
	if err != nil {
		return report, fmt.Errorf("list registrations: %w", err)
	}

	subject := mt.Subject
	if subject == "" {
		subject = DefaultSubject(ev.Name, mailType)
	}

	for i := range regs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		reg := regs[i]
		if (mailType == models.MailConfirm && reg.Confirmed) || (mailType == models.MailVerify && reg.Verified) {
			report.Skipped++
			continue
		}
		to := strings.TrimSpace(reg.Fields.Email)
		if debugTo != "" {
			to = debugTo
		}
		if to == "" {
			m.log.Warn("Registration without email address",
				zap.Int64("event_id", ev.ID),
				zap.Int("row", reg.Row))
			report.Skipped++
			continue
		}

		msg := Message{
			FromName: m.fromName,
			From:     ev.FromMail,
			To:       to,
			Subject:  subject,
			HTML:     Render(mt.Body, m.values(ev, reg)),
		}
		if err := m.tr.Send(ctx, msg); err != nil {
			report.Failed++
			m.metrics.MailsSent.WithLabelValues(mailType, "error").Inc()
			m.log.Error("Failed to send mail",
				zap.Error(err),
				zap.String("type", mailType),
				zap.Int64("event_id", ev.ID),
				zap.Int("row", reg.Row))
			continue
		}
		report.Sent++
		m.metrics.MailsSent.WithLabelValues(mailType, "ok").Inc()

		if mailType == models.MailConfirm && debugTo == "" {
			reg.Confirmed = true
			if err := m.store.Upsert(ctx, &reg); err != nil {
				return report, fmt.Errorf("mark confirmed: %w", err)
			}
		}
	}

	m.log.Info("Mails sent",
		zap.Int64("event_id", ev.ID),
		zap.String("type", mailType),
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (m *Mailer) values(ev *models.Event, reg models.Registration) map[string]string {
	c := reg.Fields.Map()
	link := m.links.Link(ev, reg)
	c["greeting"] = Greeting(reg)
	c["full_name"] = reg.FullName()
	c["verify_link"] = link
	if qr, err := qrDataURI(link); err == nil {
		c["verify_qr"] = qr
	} else {
		m.log.Warn("Failed to encode QR code", zap.Error(err), zap.Int("row", reg.Row))
	}
	return c
}

func DefaultSubject(eventName, mailType string) string {
	if mailType == models.MailVerify {
		return fmt.Sprintf("[%s] %s se blíží, plánujete se zúčastnit?", eventName, eventName)
	}
	return fmt.Sprintf("[%s] Potvrzení registrace", eventName)
}

func Greeting(reg models.Registration) string {
	last := strings.TrimSpace(reg.Fields.LastName)
	switch strings.TrimSpace(reg.Fields.Sex) {
	case "Muž":
		return "Vážený pane " + last + ","
	case "Žena", "Zena":
		return "Vážená paní " + last + ","
	default:
		return "Dobrý den,"
	}
}

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Render substitutes {{name}} placeholders, matched case-insensitively against the keys
// of values. Values are HTML-escaped; unknown placeholders render empty.
func Render(tmpl string, values map[string]string) string {
	lower := make(map[string]string, len(values))
	for k, v := range values {
		lower[strings.ToLower(k)] = v
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(s string) string {
		name := placeholder.FindStringSubmatch(s)[1]
		return html.EscapeString(lower[strings.ToLower(name)])
	})
}

func qrDataURI(link string) (string, error) {
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
