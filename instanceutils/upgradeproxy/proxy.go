package upgradeproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// UpgradeCall is the body POSTed to an instance's admin endpoint when its
// code is swapped.
type UpgradeCall struct {
	InstanceID string        `json:"instance_id"`
	Ordinal    uint64        `json:"ordinal"`
	Label      string        `json:"label"`
	LogicRef   string        `json:"logic_ref"`
	Payload    hexutil.Bytes `json:"payload"`
}

// HTTPProxy implements interfaces.UpgradeProxy by delivering the upgrade call
// to the instance's admin endpoint over HTTP. Endpoints come from the
// configured resolver and are tried in order until one accepts.
type HTTPProxy struct {
	resolver EndpointResolver
	client   *http.Client
	log      *slog.Logger
}

// NewHTTPProxy creates an upgrade proxy using the given endpoint resolver.
func NewHTTPProxy(resolver EndpointResolver, log *slog.Logger) *HTTPProxy {
	return &HTTPProxy{
		resolver: resolver,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

// ApplyUpgrade implements interfaces.UpgradeProxy.
func (p *HTTPProxy) ApplyUpgrade(ctx context.Context, instance interfaces.Address, entry interfaces.VersionEntry) error {
	endpoints, err := p.resolver.Resolve(instance)
	if err != nil {
		return fmt.Errorf("could not resolve instance endpoint: %w", err)
	}
	if len(endpoints) == 0 {
		return fmt.Errorf("no endpoints resolved for instance %s", instance)
	}

	body, err := json.Marshal(&UpgradeCall{
		InstanceID: instance.String(),
		Ordinal:    entry.Ordinal,
		Label:      entry.Label,
		LogicRef:   entry.LogicRef.String(),
		Payload:    []byte(entry.Payload),
	})
	if err != nil {
		return fmt.Errorf("could not encode upgrade call: %w", err)
	}

	var lastErr error
	for _, endpoint := range endpoints {
		if err := p.deliver(ctx, endpoint, body); err != nil {
			p.log.Warn("Upgrade delivery failed, trying next endpoint",
				"err", err, "endpoint", endpoint, "instance", instance.String())
			lastErr = err
			continue
		}

		p.log.Info("Upgrade delivered",
			"instance", instance.String(), "ordinal", entry.Ordinal, "endpoint", endpoint)
		return nil
	}

	return fmt.Errorf("upgrade delivery failed on all endpoints: %w", lastErr)
}

func (p *HTTPProxy) deliver(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/admin/upgrade", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("instance returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// LoopbackProxy accepts every upgrade without contacting anything. Used when
// the registry tracks versions for instances it does not manage directly.
type LoopbackProxy struct {
	Log *slog.Logger
}

// ApplyUpgrade implements interfaces.UpgradeProxy.
func (p *LoopbackProxy) ApplyUpgrade(ctx context.Context, instance interfaces.Address, entry interfaces.VersionEntry) error {
	if p.Log != nil {
		p.Log.Debug("Loopback upgrade accepted", "instance", instance.String(), "ordinal", entry.Ordinal)
	}
	return nil
}
