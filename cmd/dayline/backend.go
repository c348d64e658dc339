package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mschirtzinger/dayline/internal/config"
	"github.com/mschirtzinger/dayline/internal/db"
	"github.com/mschirtzinger/dayline/internal/engine"
	"github.com/mschirtzinger/dayline/internal/filestore"
	"github.com/mschirtzinger/dayline/internal/hub"
	"github.com/mschirtzinger/dayline/internal/logging"
	"github.com/mschirtzinger/dayline/internal/remote"
)

// backend pairs a document store with a record store. For the hub backend
// documents are remote while records stay in the local database.
type backend struct {
	remote.Store
	remote.RecordStore

	desc    string
	closers []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openBackend(ctx context.Context, c *config.Config) (*backend, error) {
	switch c.Store.Backend {
	case config.BackendMemory:
		m := remote.NewMemoryStore()
		return &backend{Store: m, RecordStore: m, desc: "memory", closers: []func() error{m.Close}}, nil

	case config.BackendSQLite:
		d, err := openDB(ctx, c.StorePath())
		if err != nil {
			return nil, err
		}
		return &backend{Store: d, RecordStore: d, desc: "sqlite " + d.Path(), closers: []func() error{d.Close}}, nil

	case config.BackendFile:
		fc := filestore.DefaultConfig(c.StorePath())
		fc.Logger = logging.Component("filestore")
		fs, err := filestore.Open(fc)
		if err != nil {
			return nil, fmt.Errorf("failed to open document directory: %w", err)
		}
		return &backend{Store: fs, RecordStore: fs, desc: "file " + fs.Dir(), closers: []func() error{fs.Close}}, nil

	case config.BackendHub:
		client, err := hub.NewClient(hub.ClientConfig{URL: c.Store.URL, Logger: logging.Component("hub")})
		if err != nil {
			return nil, fmt.Errorf("failed to create hub client: %w", err)
		}
		d, err := openDB(ctx, filepath.Join(c.StateDir, "dayline.db"))
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &backend{
			Store:       client,
			RecordStore: d,
			desc:        "hub " + c.Store.URL,
			closers:     []func() error{d.Close, client.Close},
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", c.Store.Backend)
}

func openDB(ctx context.Context, path string) (*db.DB, error) {
	d, err := db.Open(path, db.WithLogger(logging.Component("db")))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := d.InitSchemaContext(ctx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return d, nil
}

// session is a signed-in engine over an open backend.
type session struct {
	*engine.Engine
	backend *backend
}

// openSession opens the configured backend, signs the configured user in
// and waits for the document to load.
func openSession(ctx context.Context, c *config.Config) (*session, error) {
	b, err := openBackend(ctx, c)
	if err != nil {
		return nil, err
	}

	opts := engine.DefaultOptions()
	opts.DebounceInterval = c.Sync.Debounce
	opts.GuardWindow = c.Sync.GuardWindow
	opts.SavedStatusDuration = c.Sync.SavedStatus
	e := engine.New(b, b, opts)

	if err := e.SignIn(ctx, c.User); err != nil {
		_ = e.Close()
		_ = b.Close()
		return nil, err
	}
	if err := e.WaitReady(ctx); err != nil {
		_ = e.Close()
		_ = b.Close()
		return nil, fmt.Errorf("failed to load document for %s: %w", c.User, err)
	}
	return &session{Engine: e, backend: b}, nil
}

// Close saves pending edits, including ones made while a save was in
// flight, and releases the backend.
func (s *session) Close() error {
	flushErr := s.Flush()
	return errors.Join(flushErr, s.Engine.Close(), s.backend.Close())
}
