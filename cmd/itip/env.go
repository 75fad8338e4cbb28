package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cyp0633/caldora-itip/internal/config"
	"github.com/cyp0633/caldora-itip/internal/httpclient"
	"github.com/cyp0633/caldora-itip/itip"
	"github.com/cyp0633/caldora-itip/storage/caldav"
	"github.com/cyp0633/caldora-itip/storage/memory"
	"github.com/cyp0633/caldora-itip/storage/postgres"
	caldavtransport "github.com/cyp0633/caldora-itip/transport/caldav"
	"github.com/cyp0633/caldora-itip/transport/email"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

// env is what a command needs from the configuration.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
}

func loadEnv(c *cli.Context) (*env, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return &env{cfg: cfg, logger: logger, out: c.App.Writer}, nil
}

// owner is the local user's calendar address, or "" if no identity is set.
func (e *env) owner() string {
	if e.cfg.Identity == "" {
		return ""
	}
	return "mailto:" + e.cfg.Identity
}

func (e *env) transport() (itip.Transport, error) {
	switch e.cfg.Transport.Kind {
	case config.TransportEmail:
		ec := e.cfg.Transport.Email
		sender := email.SMTPSender{Addr: ec.Addr, Username: ec.Username, Password: ec.Password}
		return email.New(sender, ec.From, e.logger.With("transport", "email"))
	case config.TransportCalDAV:
		cc := e.cfg.Transport.CalDAV
		client, err := httpclient.New(cc.Outbox, cc.Username, cc.Password, e.logger.With("component", "httpclient"))
		if err != nil {
			return nil, err
		}
		return caldavtransport.New(client, cc.Outbox, e.owner(), e.logger.With("transport", "caldav"))
	case config.TransportLog:
		return &writerTransport{w: e.out, logger: e.logger}, nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", e.cfg.Transport.Kind)
	}
}

// calendar is a configured store with its settings exposed.
type calendar interface {
	itip.Store
	SetOwner(address string)
	SetProperty(name string, value any)
}

// openStore builds the configured store. The returned func releases it.
func (e *env) openStore(ctx context.Context, tr itip.Transport) (calendar, func(), error) {
	var (
		store calendar
		done  = func() {}
	)
	switch e.cfg.Store.Kind {
	case config.StoreMemory:
		store = memory.New("memory", e.logger.With("store", "memory"))
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, e.cfg.Store.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		pg, err := postgres.New(pool, e.cfg.Store.Postgres.Calendar, e.logger.With("store", "postgres"))
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		store, done = pg, pool.Close
	case config.StoreCalDAV:
		sc := e.cfg.Store.CalDAV
		client, err := caldav.NewClient(sc.Endpoint, sc.Username, sc.Password, e.logger.With("component", "webdav"))
		if err != nil {
			return nil, nil, err
		}
		if store, err = caldav.New(client, sc.Calendar, e.logger.With("store", "caldav")); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", e.cfg.Store.Kind)
	}

	store.SetOwner(e.cfg.Store.Owner)
	store.SetProperty(itip.PropTransport, tr)
	return store, done, nil
}

// writerTransport writes responses to w instead of delivering them.
type writerTransport struct {
	w      io.Writer
	logger *slog.Logger
}

func (t *writerTransport) Scheme() string {
	return "mailto"
}

func (t *writerTransport) SendItems(_ context.Context, recipients []itip.Attendee, msg *itip.Message) error {
	data, err := itip.MarshalMessage(msg)
	if err != nil {
		return err
	}
	for _, r := range recipients {
		t.logger.Info("response not delivered, written to output", "recipient", r.ID, "method", msg.ResponseMethod)
	}
	_, err = t.w.Write(data)
	return err
}
