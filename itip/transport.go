package itip

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/samber/mo"
)

// Transport delivers a response message to its recipients.
type Transport interface {
	// Scheme is the calendar address scheme the transport delivers to, e.g. "mailto".
	Scheme() string
	SendItems(ctx context.Context, recipients []Attendee, msg *Message) error
}

// Dispatcher picks the transport for a response and submits it without
// waiting for delivery.
type Dispatcher struct {
	defaultTransport Transport
	logger           *slog.Logger
	inflight         sync.WaitGroup
}

// NewDispatcher creates a dispatcher falling back to def for messages without
// a target calendar.
func NewDispatcher(def Transport, logger *slog.Logger) (*Dispatcher, error) {
	if def == nil {
		return nil, fmt.Errorf("default transport is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{defaultTransport: def, logger: logger}, nil
}

// Resolve returns the transport configured on calendar, or the default
// transport if calendar is absent.
func (d *Dispatcher) Resolve(calendar mo.Option[Store]) (Transport, error) {
	store, ok := calendar.Get()
	if !ok || store == nil {
		return d.defaultTransport, nil
	}
	prop, ok := store.Property(PropTransport).Get()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %s property", ErrTransportUnsupported, store.Name(), PropTransport)
	}
	t, ok := prop.(Transport)
	if !ok {
		return nil, fmt.Errorf("%w: %s property of %s is %T", ErrTransportUnsupported, PropTransport, store.Name(), prop)
	}
	return t, nil
}

// Send hands msg to t in the background. Delivery errors are logged and not
// retried. Cancelling ctx after Send returns does not abort delivery.
func (d *Dispatcher) Send(ctx context.Context, t Transport, recipients []Attendee, msg *Message) {
	ctx = context.WithoutCancel(ctx)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		if err := t.SendItems(ctx, recipients, msg); err != nil {
			responsesDispatched.WithLabelValues(string(msg.ResponseMethod), t.Scheme(), "error").Inc()
			d.logger.Error("failed to send itip response",
				"method", msg.ResponseMethod,
				"scheme", t.Scheme(),
				"recipients", len(recipients),
				"error", err)
			return
		}
		responsesDispatched.WithLabelValues(string(msg.ResponseMethod), t.Scheme(), "sent").Inc()
		d.logger.Info("itip response sent",
			"method", msg.ResponseMethod,
			"scheme", t.Scheme(),
			"recipients", len(recipients))
	}()
}

// Wait blocks until every response submitted through Send has been handed off.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}
