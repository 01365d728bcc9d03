package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// MultiStorageBackend aggregates several backends for redundancy. Stores go
// to every available backend; fetches return from the first backend that has
// the content.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a multi-backend over the given backends.
func NewMultiStorageBackend(backends []interfaces.StorageBackend, log *slog.Logger) *MultiStorageBackend {
	return &MultiStorageBackend{backends: backends, log: log}
}

// Fetch returns the content from the first available backend holding it.
// Returns ErrContentNotFound only if every backend missed.
func (m *MultiStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	var errs []error
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable, skipping",
				slog.String("backend", backend.Name()),
				slog.String("content_id", id.String()))
			continue
		}

		data, err := backend.Fetch(ctx, id, contentType)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, interfaces.ErrContentNotFound) {
			m.log.Warn("Backend fetch failed",
				slog.String("backend", backend.Name()),
				slog.String("content_id", id.String()),
				"err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
	}

	if len(errs) == 0 {
		return nil, interfaces.ErrBackendUnavailable
	}
	return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, joinErrs(errs))
}

// Store writes to every available backend and succeeds if at least one
// accepted the content.
func (m *MultiStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)

	var stored int
	var errs []error
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			continue
		}
		if _, err := backend.Store(ctx, data, contentType); err != nil {
			m.log.Warn("Backend store failed",
				slog.String("backend", backend.Name()),
				slog.String("content_id", id.String()),
				"err", err)
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}
		stored++
	}

	if stored == 0 {
		return id, fmt.Errorf("no backend accepted content %s: %s", id, joinErrs(errs))
	}

	m.log.Debug("Stored content",
		slog.String("content_id", id.String()),
		slog.Int("replicas", stored))

	return id, nil
}

// Available reports whether at least one underlying backend is accessible.
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns an identifier for logging.
func (m *MultiStorageBackend) Name() string {
	names := make([]string, len(m.backends))
	for i, backend := range m.backends {
		names[i] = backend.Name()
	}
	return "multi[" + strings.Join(names, ",") + "]"
}

// LocationURI returns the URIs of the underlying backends.
func (m *MultiStorageBackend) LocationURI() string {
	uris := make([]string, len(m.backends))
	for i, backend := range m.backends {
		uris[i] = backend.LocationURI()
	}
	return strings.Join(uris, ",")
}

func joinErrs(errs []error) string {
	if len(errs) == 0 {
		return "no backends configured"
	}
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
