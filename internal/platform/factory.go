package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/plurinotes/pkg/core"
)

// Session is an opened store bound to its gateway.
type Session struct {
	Store   *core.Store
	Gateway core.Gateway

	logger            *slog.Logger
	emptyTrashOnClose bool
}

// Open initializes the gateway selected by the options, loads it into a new
// store and returns the session.
//
//	sess, err := platform.Open(ctx, "./notes", platform.WithAdapter("fs"))
func Open(ctx context.Context, uri string, opts ...Option) (*Session, error) {
	o := newOptions(opts)

	gw, err := o.init(ctx, uri)
	if err != nil {
		return nil, err
	}

	var storeOpts []core.Option
	if o.logger != nil {
		storeOpts = append(storeOpts, core.WithLogger(o.logger))
	}
	store := core.NewStore(gw, storeOpts...)
	if err := store.Load(ctx); err != nil {
		if c, ok := gw.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		Store:             store,
		Gateway:           store.Gateway(),
		logger:            logger,
		emptyTrashOnClose: o.flag("empty_trash_on_close"),
	}, nil
}

// Close empties the trash when configured to, then releases the gateway.
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	if s.emptyTrashOnClose {
		report, err := s.Store.EmptyTrash(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		s.logger.Debug("trash emptied on close", "purged", report.Purged, "candidates", report.Candidates)
	}
	if c, ok := s.Gateway.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close gateway: %w", err))
		}
	}
	return errors.Join(errs...)
}
