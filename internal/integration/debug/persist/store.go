// Package persist stores the breakpoints and watch expressions of a
// debug.Coordinator between runs.
package persist

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/dshills/debugstate/internal/integration/debug"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown persistence backend")

// Store loads and saves persisted debugger state.
type Store interface {
	// Load returns the stored state. A store that has never been written
	// returns an empty state and no error.
	Load(ctx context.Context) (debug.PersistedState, error)

	// Save replaces the stored state.
	Save(ctx context.Context, st debug.PersistedState) error

	// Close releases the store.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// Option configures a store.
type Option func(*options)

type options struct {
	log logrus.FieldLogger
}

// WithLogger sets the store logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func buildOptions(opts []Option) options {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	o := options{log: discard}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open opens the store for backend at path.
func Open(backend, path string, opts ...Option) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(path, opts...)
	case BackendSQLite:
		return OpenSQLiteStore(path, opts...)
	case BackendNone:
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// NopStore discards everything.
type NopStore struct{}

// Load returns an empty state.
func (NopStore) Load(context.Context) (debug.PersistedState, error) {
	return debug.PersistedState{}, nil
}

// Save does nothing.
func (NopStore) Save(context.Context, debug.PersistedState) error { return nil }

// Close does nothing.
func (NopStore) Close() error { return nil }

// normalize strips session-only data before writing.
func normalize(st debug.PersistedState) debug.PersistedState {
	out := debug.PersistedState{
		Breakpoints:      make(map[string][]debug.Breakpoint, len(st.Breakpoints)),
		WatchExpressions: append([]string(nil), st.WatchExpressions...),
	}
	for path, bps := range st.Breakpoints {
		if len(bps) == 0 {
			continue
		}
		cp := make([]debug.Breakpoint, len(bps))
		for i, bp := range bps {
			bp.Verified = false
			if bp.FilePath == "" {
				bp.FilePath = path
			}
			cp[i] = bp
		}
		out.Breakpoints[path] = cp
	}
	return out
}
