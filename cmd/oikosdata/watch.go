package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oikos-cash/oikos-data-bsc/internal/config"
	"github.com/oikos-cash/oikos-data-bsc/internal/storage"
	"github.com/oikos-cash/oikos-data-bsc/internal/storage/postgres"
	"github.com/oikos-cash/oikos-data-bsc/oikos"
)

const watchBuffer = 256

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	streams := args
	if len(streams) == 0 {
		streams = cfg.Streams
	}
	if len(streams) == 0 {
		return fmt.Errorf("no stream selected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, store, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	client := oikos.NewClient(cfg.Client(), logger)

	watchers := make([]*watcher, 0, len(streams))
	for _, name := range streams {
		w := &watcher{
			name:   name,
			client: client,
			sink:   sink,
			logger: logger.With(zap.String("stream", name)),
		}
		if name == oikos.StreamRates {
			w.cursor = cursorStore(cfg, store, name)
			w.start = cfg.Query.MinTimestamp
		}
		watchers = append(watchers, w)
	}

	logger.Info("watch start",
		zap.Strings("streams", streams),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("cursor_file", cfg.CursorFile),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range watchers {
		g.Go(func() error {
			return w.run(gctx)
		})
	}
	return g.Wait()
}

// cursorStore picks the file cursor when configured, the Postgres cursor
// otherwise. It returns nil when neither is available.
func cursorStore(cfg config.Config, store *postgres.Store, name string) storage.CursorStore {
	switch {
	case cfg.CursorFile != "":
		return &storage.FileCursorStore{Path: cfg.CursorFile}
	case store != nil:
		return &postgres.CursorStore{Store: store, Name: "watch:" + name}
	default:
		return nil
	}
}

// watcher forwards one stream into the sink. A stream with a cursor resumes
// one second before the last stored timestamp, so updates sharing that
// timestamp are delivered again rather than lost.
type watcher struct {
	name   string
	client *oikos.Client
	sink   storage.Sink
	cursor storage.CursorStore
	start  int64
	logger *zap.Logger

	last int64
}

func (w *watcher) run(ctx context.Context) error {
	after := w.start
	if w.cursor != nil {
		ts, ok, err := w.cursor.Load(ctx)
		if err != nil {
			return fmt.Errorf("load %s cursor: %w", w.name, err)
		}
		if ok {
			after = ts
			w.last = ts
			w.logger.Info("resume from cursor", zap.Int64("after", after))
		}
	}

	observable, err := w.client.Watch(w.name, after)
	if err != nil {
		return err
	}

	records := make(chan oikos.Envelope, watchBuffer)
	var completed atomic.Bool
	sub := observable.Subscribe(ctx, oikos.Observer[oikos.Envelope]{
		OnData: func(env oikos.Envelope) {
			select {
			case records <- env:
			case <-ctx.Done():
			}
		},
		OnError: func(err error) {
			w.logger.Warn("stream error", zap.Error(err))
		},
		OnComplete: func() {
			completed.Store(true)
		},
	})
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-records:
			if err := w.put(ctx, env); err != nil {
				return err
			}
		case <-sub.Done():
			if err := w.drain(ctx, records); err != nil {
				return err
			}
			if completed.Load() || ctx.Err() != nil {
				w.logger.Info("stream completed")
				return nil
			}
			return fmt.Errorf("stream %s stopped", w.name)
		}
	}
}

func (w *watcher) drain(ctx context.Context, records <-chan oikos.Envelope) error {
	for {
		select {
		case env := <-records:
			if err := w.put(ctx, env); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (w *watcher) put(ctx context.Context, env oikos.Envelope) error {
	if err := w.sink.PutRecords(ctx, []oikos.Envelope{env}); err != nil {
		return fmt.Errorf("write %s record: %w", w.name, err)
	}
	if w.cursor == nil {
		return nil
	}

	ts := env.Timestamp/1000 - 1
	if ts <= w.last {
		return nil
	}
	if err := w.cursor.Save(ctx, ts); err != nil {
		return fmt.Errorf("save %s cursor: %w", w.name, err)
	}
	w.last = ts
	return nil
}
