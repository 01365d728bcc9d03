package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// IPFSBackend stores content through an IPFS node API. IPFS addresses
// content by its own CID, so the backend keeps a local index mapping our
// SHA-256 content IDs onto IPFS CIDs, persisted as a pinned IPFS object by
// callers that need durability across restarts.
type IPFSBackend struct {
	shell       *shell.Shell
	apiAddr     string
	log         *slog.Logger
	locationURI string

	mu    sync.RWMutex
	index map[string]string // content ID hex -> IPFS CID
}

// NewIPFSBackend creates an IPFS storage backend connected to the node API
// at host:port.
func NewIPFSBackend(host, port string, log *slog.Logger) *IPFSBackend {
	apiAddr := fmt.Sprintf("%s:%s", host, port)
	return &IPFSBackend{
		shell:       shell.NewShell(apiAddr),
		apiAddr:     apiAddr,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s", apiAddr),
		index:       make(map[string]string),
	}
}

func indexKey(id interfaces.ContentID, contentType interfaces.ContentType) string {
	return contentType.String() + "/" + id.String()
}

// Fetch retrieves content by ID. Returns ErrContentNotFound for IDs this
// backend has not stored and ErrBackendUnavailable when the node is down.
func (b *IPFSBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	b.mu.RLock()
	cid, ok := b.index[indexKey(id, contentType)]
	b.mu.RUnlock()
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}

	if !b.shell.IsUp() {
		return nil, interfaces.ErrBackendUnavailable
	}

	reader, err := b.shell.Cat(cid)
	if err != nil {
		if strings.Contains(err.Error(), "no link named") {
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to fetch data from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	b.log.Debug("Fetched content from IPFS",
		slog.String("content_id", id.String()),
		slog.String("cid", cid))

	return data, nil
}

// Store adds data to IPFS, pins it, and records the CID in the index.
func (b *IPFSBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)

	if !b.shell.IsUp() {
		return id, interfaces.ErrBackendUnavailable
	}

	cid, err := b.shell.Add(bytes.NewReader(data), shell.Pin(true))
	if err != nil {
		return id, fmt.Errorf("failed to add data to IPFS: %w", err)
	}

	b.mu.Lock()
	b.index[indexKey(id, contentType)] = cid
	b.mu.Unlock()

	b.log.Debug("Stored content in IPFS",
		slog.String("content_id", id.String()),
		slog.String("cid", cid))

	return id, nil
}

// ExportIndex serializes the content ID to CID mapping.
func (b *IPFSBackend) ExportIndex() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return json.Marshal(b.index)
}

// ImportIndex merges a previously exported mapping into the backend.
func (b *IPFSBackend) ImportIndex(data []byte) error {
	var index map[string]string
	if err := json.Unmarshal(data, &index); err != nil {
		return fmt.Errorf("failed to decode IPFS index: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range index {
		b.index[k] = v
	}
	return nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns an identifier for logging.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s", b.apiAddr)
}

// LocationURI returns the URI identifying this backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}
