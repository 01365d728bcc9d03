package registry

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// InstanceRegistry tracks deployed module instances: their owning client and
// the ledger ordinal they currently run. A record is created exactly once,
// at registration, pinned to the ledger frontier observed at that moment.
type InstanceRegistry struct {
	mu      sync.RWMutex
	records map[interfaces.Address]*interfaces.InstanceRecord

	ledger    *Ledger
	oracle    interfaces.ExchangeOracle
	sink      interfaces.EventSink
	log       *slog.Logger
	setupCost *big.Int
}

// NewInstanceRegistry creates an instance registry backed by the given
// ledger. setupCost is the nominal instance setup cost, converted into the
// settlement currency through the oracle at registration time; a nil oracle
// or zero cost disables fee conversion.
func NewInstanceRegistry(ledger *Ledger, oracle interfaces.ExchangeOracle, setupCost *big.Int, sink interfaces.EventSink, log *slog.Logger) *InstanceRegistry {
	return &InstanceRegistry{
		records:   make(map[interfaces.Address]*interfaces.InstanceRecord),
		ledger:    ledger,
		oracle:    oracle,
		sink:      sink,
		log:       log,
		setupCost: setupCost,
	}
}

// Register creates the record for a new instance. The caller becomes the
// immutable owner and the record is pinned to the current ledger frontier.
// The settlement fee is computed first so that an oracle failure aborts the
// registration with no side effects.
func (r *InstanceRegistry) Register(ctx context.Context, instance interfaces.Address, caller interfaces.Identity) (interfaces.InstanceRecord, error) {
	if instance.IsZero() {
		return interfaces.InstanceRecord{}, interfaces.ErrInvalidAddress
	}

	fee := new(big.Int)
	if r.oracle != nil && r.setupCost != nil && r.setupCost.Sign() > 0 {
		rate, err := r.oracle.CurrentExchangeRate(ctx)
		if err != nil {
			return interfaces.InstanceRecord{}, fmt.Errorf("%w: %v", interfaces.ErrOracleUnavailable, err)
		}
		fee.Mul(r.setupCost, rate)
	}

	r.mu.Lock()
	if _, exists := r.records[instance]; exists {
		r.mu.Unlock()
		return interfaces.InstanceRecord{}, interfaces.ErrInstanceExists
	}

	record := &interfaces.InstanceRecord{
		InstanceID:     instance,
		Owner:          caller,
		CurrentOrdinal: r.ledger.HighestOrdinal(),
	}
	r.records[instance] = record
	snapshot := *record
	r.mu.Unlock()

	if r.sink != nil {
		r.sink.Publish(interfaces.InstanceRegistered{
			InstanceID:    instance,
			Owner:         caller,
			Ordinal:       snapshot.CurrentOrdinal,
			SettlementFee: fee.String(),
		})
	}

	r.log.Info("Instance registered",
		slog.String("instance", instance.String()),
		slog.String("owner", caller.String()),
		slog.Uint64("ordinal", snapshot.CurrentOrdinal))

	return snapshot, nil
}

// Record returns a copy of the record for the given instance.
func (r *InstanceRegistry) Record(instance interfaces.Address) (interfaces.InstanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[instance]
	if !ok {
		return interfaces.InstanceRecord{}, fmt.Errorf("%w: %s", interfaces.ErrInstanceNotFound, instance)
	}
	return *record, nil
}

// Records returns a copy of every instance record.
func (r *InstanceRegistry) Records() []interfaces.InstanceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]interfaces.InstanceRecord, 0, len(r.records))
	for _, record := range r.records {
		out = append(out, *record)
	}
	return out
}

// advance moves an instance's ordinal from from to to. It is called by the
// coordinator only, after the proxy call succeeded, under the coordinator's
// per-instance lock. The compare guards against a record replaced between
// the coordinator's read and its commit.
func (r *InstanceRegistry) advance(instance interfaces.Address, from, to uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[instance]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrInstanceNotFound, instance)
	}
	if record.CurrentOrdinal != from {
		return fmt.Errorf("instance %s moved concurrently: at %d, expected %d", instance, record.CurrentOrdinal, from)
	}
	record.CurrentOrdinal = to
	return nil
}

// restore replaces the record table from a snapshot.
func (r *InstanceRegistry) restore(records []interfaces.InstanceRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[interfaces.Address]*interfaces.InstanceRecord, len(records))
	for _, record := range records {
		rec := record
		r.records[record.InstanceID] = &rec
	}
}
