package storage

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// downBackend is never available.
type downBackend struct{}

func (downBackend) Fetch(context.Context, interfaces.ContentID, interfaces.ContentType) ([]byte, error) {
	return nil, interfaces.ErrBackendUnavailable
}
func (downBackend) Store(context.Context, []byte, interfaces.ContentType) (interfaces.ContentID, error) {
	return interfaces.ContentID{}, interfaces.ErrBackendUnavailable
}
func (downBackend) Available(context.Context) bool { return false }
func (downBackend) Name() string                   { return "down" }
func (downBackend) LocationURI() string            { return "down://" }

func TestFileBackend_RoundTrip(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)

	data := []byte(`{"entries":[]}`)
	id, err := backend.Store(context.Background(), data, interfaces.SnapshotType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(data), id)

	fetched, err := backend.Fetch(context.Background(), id, interfaces.SnapshotType)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)

	// Types are separate namespaces.
	_, err = backend.Fetch(context.Background(), id, interfaces.PayloadType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestMultiStorage_SkipsUnavailableBackends(t *testing.T) {
	fileBackend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)

	multi := NewMultiStorageBackend([]interfaces.StorageBackend{downBackend{}, fileBackend}, slog.Default())

	data := []byte("snapshot-bytes")
	id, err := multi.Store(context.Background(), data, interfaces.SnapshotType)
	require.NoError(t, err)

	fetched, err := multi.Fetch(context.Background(), id, interfaces.SnapshotType)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)
}

func TestMultiStorage_FetchFallsThroughMisses(t *testing.T) {
	emptyBackend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)
	fullBackend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)

	data := []byte("only-in-second")
	id, err := fullBackend.Store(context.Background(), data, interfaces.PayloadType)
	require.NoError(t, err)

	multi := NewMultiStorageBackend([]interfaces.StorageBackend{emptyBackend, fullBackend}, slog.Default())

	fetched, err := multi.Fetch(context.Background(), id, interfaces.PayloadType)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)
}

func TestMultiStorage_AllMiss(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)

	multi := NewMultiStorageBackend([]interfaces.StorageBackend{backend}, slog.Default())

	_, err = multi.Fetch(context.Background(), interfaces.ComputeID([]byte("missing")), interfaces.SnapshotType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestFactory_RejectsUnsupportedScheme(t *testing.T) {
	factory := NewFactory(slog.Default())

	_, err := factory.StorageBackendFor("gopher://example.com")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}

func TestFactory_CreatesFileBackend(t *testing.T) {
	factory := NewFactory(slog.Default())

	backend, err := factory.StorageBackendFor(interfaces.StorageBackendLocation("file://" + t.TempDir()))
	require.NoError(t, err)
	assert.True(t, backend.Available(context.Background()))
}

func TestFactory_MultiBackendNeedsOneValidURI(t *testing.T) {
	factory := NewFactory(slog.Default())

	_, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{"bogus://x"})
	assert.Error(t, err)

	multi, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		"bogus://x",
		interfaces.StorageBackendLocation("file://" + t.TempDir()),
	})
	require.NoError(t, err)
	assert.True(t, multi.Available(context.Background()))
}
