package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// Coordinator orchestrates client-initiated upgrades. Per instance, the only
// legal transition is from ordinal n to n+1; an instance at the ledger
// frontier has nothing to move to until a new version is published.
//
// Multi-version jumps are never performed: a jump would apply only the final
// version's payload and skip the migrations encoded in the intermediate
// payloads, silently corrupting instance state. Sequential stepping keeps
// every payload in the chain executed exactly once, in order.
type Coordinator struct {
	ledger    *Ledger
	instances *InstanceRegistry
	proxy     interfaces.UpgradeProxy
	sink      interfaces.EventSink
	log       *slog.Logger

	mu       sync.Mutex
	inflight map[interfaces.Address]*sync.Mutex
}

// NewCoordinator creates an upgrade coordinator over the given ledger and
// instance registry, delegating code swaps to the proxy collaborator.
func NewCoordinator(ledger *Ledger, instances *InstanceRegistry, proxy interfaces.UpgradeProxy, sink interfaces.EventSink, log *slog.Logger) *Coordinator {
	return &Coordinator{
		ledger:    ledger,
		instances: instances,
		proxy:     proxy,
		sink:      sink,
		log:       log,
		inflight:  make(map[interfaces.Address]*sync.Mutex),
	}
}

// instanceLock returns the exclusive lock serializing upgrades of a single
// instance. Upgrades of distinct instances proceed independently.
func (c *Coordinator) instanceLock(instance interfaces.Address) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.inflight[instance]
	if !ok {
		lock = &sync.Mutex{}
		c.inflight[instance] = lock
	}
	return lock
}

// RequestUpgrade moves the instance to the next published ordinal. Only the
// registered owner may call it. The proxy's code-swap call happens before
// the record is advanced and under the instance's exclusive lock, so a
// failed swap leaves the record untouched and a reentrant request can never
// observe a half-updated ordinal.
func (c *Coordinator) RequestUpgrade(ctx context.Context, instance interfaces.Address, caller interfaces.Identity) (uint64, error) {
	lock := c.instanceLock(instance)
	lock.Lock()
	defer lock.Unlock()

	record, err := c.instances.Record(instance)
	if err != nil {
		return 0, err
	}
	if !record.Owner.Equal(caller) {
		return 0, fmt.Errorf("%w: caller %s is not instance owner", interfaces.ErrUnauthorized, caller)
	}

	target := record.CurrentOrdinal + 1
	if target > c.ledger.HighestOrdinal() {
		return 0, fmt.Errorf("%w: instance at frontier ordinal %d", interfaces.ErrVersionSkip, record.CurrentOrdinal)
	}

	entry, err := c.ledger.Entry(target)
	if err != nil {
		return 0, err
	}

	if err := c.proxy.ApplyUpgrade(ctx, instance, entry); err != nil {
		c.log.Error("Proxy upgrade call failed",
			slog.String("instance", instance.String()),
			slog.Uint64("target", target),
			"err", err)
		return 0, fmt.Errorf("%w: %v", interfaces.ErrUpgradeExecutionFailed, err)
	}

	if err := c.instances.advance(instance, record.CurrentOrdinal, target); err != nil {
		return 0, err
	}

	if c.sink != nil {
		c.sink.Publish(interfaces.InstanceUpgraded{
			InstanceID: instance,
			Owner:      record.Owner,
			NewOrdinal: target,
		})
	}

	c.log.Info("Instance upgraded",
		slog.String("instance", instance.String()),
		slog.String("owner", record.Owner.String()),
		slog.Uint64("ordinal", target),
		slog.String("label", entry.Label))

	return target, nil
}
