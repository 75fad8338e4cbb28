// Package caldav delivers iTIP responses by POSTing them to a CalDAV
// scheduling outbox (RFC 6638 section 5), leaving delivery to the server.
package caldav

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cyp0633/caldora-itip/internal/httpclient"
	"github.com/cyp0633/caldora-itip/internal/xml"
	"github.com/cyp0633/caldora-itip/itip"
)

// Transport posts responses to a scheduling outbox
type Transport struct {
	client     httpclient.Client
	outbox     string
	originator string
	logger     *slog.Logger
}

// New creates a transport posting to outbox as originator, a calendar address
// such as "mailto:alice@example.com".
func New(client httpclient.Client, outbox, originator string, logger *slog.Logger) (*Transport, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if outbox == "" {
		return nil, fmt.Errorf("outbox URL is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Transport{client: client, outbox: outbox, originator: originator, logger: logger}, nil
}

// Scheme implements itip.Transport. CalDAV servers address calendar users by
// their mailto URI.
func (t *Transport) Scheme() string {
	return "mailto"
}

// SendItems implements itip.Transport
func (t *Transport) SendItems(ctx context.Context, recipients []itip.Attendee, msg *itip.Message) error {
	if len(recipients) == 0 {
		return fmt.Errorf("%w: no recipients", itip.ErrInvalidArgument)
	}
	body, err := itip.MarshalMessage(msg)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", fmt.Sprintf("text/calendar; charset=utf-8; method=%s", msg.ResponseMethod))
	if originator := t.originatorFor(msg); originator != "" {
		header.Set("Originator", originator)
	}
	for _, r := range recipients {
		header.Add("Recipient", r.ID)
	}

	t.logger.Debug("posting to scheduling outbox",
		"outbox", t.outbox,
		"method", msg.ResponseMethod,
		"recipients", len(recipients))

	resp, err := t.client.DoPOST(ctx, t.outbox, header, body)
	if err != nil {
		return fmt.Errorf("post to outbox: %w", err)
	}
	if len(resp.Body) == 0 {
		return nil
	}

	status, err := xml.ParseScheduleResponse(resp.Body)
	if err != nil {
		return err
	}
	if failed := status.Failed(); len(failed) > 0 {
		msgs := make([]string, 0, len(failed))
		for _, f := range failed {
			msgs = append(msgs, fmt.Sprintf("%s: %s", f.Recipient, f.RequestStatus))
		}
		return fmt.Errorf("delivery failed for %s", strings.Join(msgs, ", "))
	}
	return nil
}

func (t *Transport) originatorFor(msg *itip.Message) string {
	if t.originator != "" {
		return t.originator
	}
	if msg.Identity == "" {
		return ""
	}
	return t.Scheme() + ":" + msg.Identity
}
