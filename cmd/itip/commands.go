package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyp0633/caldora-itip/itip"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func processCommand() *cli.Command {
	return &cli.Command{
		Name:  "process",
		Usage: "Apply an iTIP message to the configured calendar and send the response",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Read the message from `FILE` (\"-\" for stdin)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "identity",
				Usage: "Override the local user's address",
			},
		},
		Action: runProcess,
	}
}

func runProcess(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	if id := c.String("identity"); id != "" {
		e.cfg.Identity = id
		e.cfg.Store.Owner = ""
		e.cfg.Normalize()
	}

	msg, err := readMessage(c.String("file"))
	if err != nil {
		return err
	}

	tr, err := e.transport()
	if err != nil {
		return err
	}
	dispatcher, err := itip.NewDispatcher(tr, e.logger.With("component", "dispatcher"))
	if err != nil {
		return err
	}
	processor, err := itip.NewProcessor(dispatcher, e.logger.With("component", "processor"))
	if err != nil {
		return err
	}

	store, done, err := e.openStore(c.Context, tr)
	if err != nil {
		return err
	}
	defer done()

	msg.DeliverTo(store)
	msg.Identity = e.cfg.Identity

	listener := itip.ListenerFunc(func(comp itip.Completion) {
		if comp.Err != nil {
			e.logger.Warn("operation failed", "kind", comp.Kind, "uid", comp.ItemID, "error", comp.Err)
			return
		}
		e.logger.Debug("operation complete", "kind", comp.Kind, "uid", comp.ItemID)
	})
	err = processor.Process(c.Context, msg, listener)
	dispatcher.Wait()
	if err != nil {
		return fmt.Errorf("process %s message: %w", msg.ReceivedMethod, err)
	}
	e.logger.Info("message processed", "method", msg.ReceivedMethod, "items", len(msg.Items))
	return nil
}

func readMessage(path string) (*itip.Message, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return itip.ParseMessage(r)
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Show the suggested response to a method, or validate a method pair",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "received", Usage: "Received `METHOD`", Required: true},
			&cli.StringFlag{Name: "response", Usage: "Response `METHOD` to validate"},
			&cli.StringFlag{Name: "type", Usage: "Item `TYPE` (VEVENT or VTODO)", Value: "VEVENT"},
		},
		Action: runCheck,
	}
}

func runCheck(c *cli.Context) error {
	received, err := itip.ParseMethod(c.String("received"))
	if err != nil {
		return err
	}
	suggested, err := itip.SuggestResponse(received)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "suggested response to %s: %s\n", received, suggested)

	if c.String("response") == "" {
		return nil
	}
	response, err := itip.ParseMethod(c.String("response"))
	if err != nil {
		return err
	}
	itemType, err := itip.ParseItemType(c.String("type"))
	if err != nil {
		return err
	}
	valid, err := itip.IsValidPair(received, response, itemType)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s in response to %s for %s: valid=%t\n", response, received, itemType, valid)
	if !valid {
		return fmt.Errorf("%w: %s in response to %s", itip.ErrInvalidResponseMethod, response, received)
	}
	return nil
}

func serveMetricsCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve-metrics",
		Usage: "Serve Prometheus metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "Override the listen `ADDR`"},
		},
		Action: runServeMetrics,
	}
}

func runServeMetrics(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	addr := e.cfg.Metrics.Listen
	if l := c.String("listen"); l != "" {
		addr = l
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
