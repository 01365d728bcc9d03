package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pluggable-systems/plugin-registry-backend/api"
	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// RegistryClient talks to the registry HTTP server. Read operations need no
// key; write operations are signed with Key, and the server authorizes the
// identity the signature recovers to.
type RegistryClient struct {
	// ServerAddr is the base URL of the registry server.
	ServerAddr string

	// Key signs write requests. May be nil for a read-only client.
	Key *ecdsa.PrivateKey

	// HTTPClient is the underlying client. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func (c *RegistryClient) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("could not encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ServerAddr+path, bodyReader)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.Key != nil {
		if err := api.SignRequest(c.Key, req); err != nil {
			return err
		}
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request registry endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("registry endpoint returned non-200 response: %d", resp.StatusCode)
		}
		return fmt.Errorf("registry endpoint returned error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("could not parse registry response: %w", err)
	}
	return nil
}

// Status fetches the registry status summary.
func (c *RegistryClient) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/public/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version fetches the current frontier entry.
func (c *RegistryClient) Version(ctx context.Context) (*api.VersionResponse, error) {
	var resp api.VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/public/version", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Entry fetches the ledger entry at the given ordinal.
func (c *RegistryClient) Entry(ctx context.Context, ordinal uint64) (*api.VersionResponse, error) {
	var resp api.VersionResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/public/versions/%d", ordinal), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Bound fetches one compatibility window bound.
func (c *RegistryClient) Bound(ctx context.Context, kind interfaces.BoundKind) (*api.BoundResponse, error) {
	var resp api.BoundResponse
	if err := c.do(ctx, http.MethodGet, "/api/public/bounds/"+kind.String(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Instance fetches the record for a registered instance.
func (c *RegistryClient) Instance(ctx context.Context, instance interfaces.Address) (*api.InstanceResponse, error) {
	var resp api.InstanceResponse
	if err := c.do(ctx, http.MethodGet, "/api/public/instances/"+instance.String(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Publish adds a new version at the frontier. Requires the authority key.
func (c *RegistryClient) Publish(ctx context.Context, req *api.PublishRequest) (uint64, error) {
	var resp api.PublishResponse
	if err := c.do(ctx, http.MethodPost, "/api/admin/versions", req, &resp); err != nil {
		return 0, err
	}
	return resp.Ordinal, nil
}

// Edit rewrites an existing ledger entry in place. Requires the authority key.
func (c *RegistryClient) Edit(ctx context.Context, ordinal uint64, req *api.EditRequest) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/admin/versions/%d", ordinal), req, nil)
}

// SetBound widens one compatibility window bound. Requires the authority key.
func (c *RegistryClient) SetBound(ctx context.Context, kind interfaces.BoundKind, value string) error {
	return c.do(ctx, http.MethodPut, "/api/admin/bounds/"+kind.String(), &api.SetBoundRequest{Value: value}, nil)
}

// Register creates the record for a new instance owned by the signing key.
func (c *RegistryClient) Register(ctx context.Context, instance interfaces.Address) (*api.InstanceResponse, error) {
	var resp api.InstanceResponse
	if err := c.do(ctx, http.MethodPost, "/api/instances/"+instance.String(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upgrade moves an instance one step toward the frontier. The signing key
// must be the instance owner.
func (c *RegistryClient) Upgrade(ctx context.Context, instance interfaces.Address) (*api.UpgradeResponse, error) {
	var resp api.UpgradeResponse
	if err := c.do(ctx, http.MethodPost, "/api/instances/"+instance.String()+"/upgrade", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
