// Package email delivers iTIP responses as iMIP mail (RFC 6047).
package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/cyp0633/caldora-itip/itip"
	gomail "github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const scheme = "mailto"

// Sender submits a rendered message to a mail server
type Sender interface {
	Send(from string, to []string, r io.Reader) error
}

// SMTPSender submits mail through an SMTP relay, upgrading to STARTTLS when
// offered
type SMTPSender struct {
	Addr     string
	Username string
	Password string
}

// Send implements Sender
func (s SMTPSender) Send(from string, to []string, r io.Reader) error {
	var auth sasl.Client
	if s.Username != "" {
		auth = sasl.NewPlainClient("", s.Username, s.Password)
	}
	return smtp.SendMail(s.Addr, auth, from, to, r)
}

// Transport renders responses as iMIP messages
type Transport struct {
	sender Sender
	from   *mail.Address
	logger *slog.Logger
	now    func() time.Time
}

// New creates a transport sending from the given address, e.g.
// "Alice <alice@example.com>".
func New(sender Sender, from string, logger *slog.Logger) (*Transport, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", from, err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Transport{sender: sender, from: addr, logger: logger, now: time.Now}, nil
}

// Scheme implements itip.Transport
func (t *Transport) Scheme() string {
	return scheme
}

// SendItems implements itip.Transport. Recipients outside the mailto scheme
// are skipped.
func (t *Transport) SendItems(ctx context.Context, recipients []itip.Attendee, msg *itip.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := make([]*gomail.Address, 0, len(recipients))
	for _, r := range recipients {
		addr, ok := mailAddress(r)
		if !ok {
			t.logger.Warn("skipping recipient without mailto address", "recipient", r.ID)
			continue
		}
		to = append(to, addr)
	}
	if len(to) == 0 {
		return fmt.Errorf("%w: no mailto recipients", itip.ErrInvalidArgument)
	}

	var buf bytes.Buffer
	if err := t.render(&buf, to, msg); err != nil {
		return err
	}

	rcpt := make([]string, 0, len(to))
	for _, a := range to {
		rcpt = append(rcpt, a.Address)
	}
	t.logger.Debug("sending imip message",
		"method", msg.ResponseMethod,
		"recipients", rcpt,
		"size", buf.Len())
	if err := t.sender.Send(t.from.Address, rcpt, &buf); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (t *Transport) render(w io.Writer, to []*gomail.Address, msg *itip.Message) error {
	cal, err := itip.MarshalMessage(msg)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	var h gomail.Header
	h.SetDate(t.now())
	h.SetAddressList("From", []*gomail.Address{t.from})
	h.SetAddressList("To", to)
	h.SetSubject(subject(msg))
	h.SetMessageID(t.messageID())

	mw, err := gomail.CreateInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("create mail writer: %w", err)
	}

	var th gomail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	pw, err := mw.CreatePart(th)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, body(msg)); err != nil {
		return err
	}
	if err := pw.Close(); err != nil {
		return err
	}

	var ch gomail.InlineHeader
	ch.SetContentType("text/calendar", map[string]string{
		"charset": "utf-8",
		"method":  string(msg.ResponseMethod),
	})
	cw, err := mw.CreatePart(ch)
	if err != nil {
		return err
	}
	if _, err := cw.Write(cal); err != nil {
		return err
	}
	if err := cw.Close(); err != nil {
		return err
	}
	return mw.Close()
}

func (t *Transport) messageID() string {
	domain := "localhost"
	if at := strings.LastIndex(t.from.Address, "@"); at >= 0 && at < len(t.from.Address)-1 {
		domain = t.from.Address[at+1:]
	}
	return uuid.NewString() + "@" + domain
}

func mailAddress(a itip.Attendee) (*gomail.Address, bool) {
	id := strings.TrimSpace(a.ID)
	if len(id) <= len(scheme)+1 || !strings.EqualFold(id[:len(scheme)+1], scheme+":") {
		return nil, false
	}
	return &gomail.Address{Name: a.CommonName, Address: id[len(scheme)+1:]}, true
}

func subject(msg *itip.Message) string {
	title := ""
	if len(msg.Items) > 0 {
		title = msg.Items[0].Summary()
	}
	verb := cases.Title(language.English).String(strings.ToLower(string(msg.ResponseMethod)))
	if title == "" {
		return verb
	}
	return verb + ": " + title
}

func body(msg *itip.Message) string {
	var b strings.Builder
	for _, item := range msg.Items {
		if item.Summary() != "" {
			fmt.Fprintf(&b, "%s\r\n", item.Summary())
		}
		for _, a := range item.Attendees() {
			fmt.Fprintf(&b, "%s: %s\r\n", strings.TrimPrefix(a.ID, scheme+":"), a.Status)
		}
	}
	return b.String()
}
