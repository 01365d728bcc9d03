package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// Ledger is the append/replace-able sequence of published logic versions.
// Ordinals are dense and start at 0; the genesis entry is written at
// construction and the frontier only ever advances by one.
type Ledger struct {
	mu       sync.RWMutex
	entries  map[uint64]interfaces.VersionEntry
	highest  uint64
	notifier interfaces.VerificationNotifier
	sink     interfaces.EventSink
	log      *slog.Logger
}

// NewLedger creates a ledger with its genesis entry at ordinal 0. The genesis
// logic reference must be non-zero; the genesis payload may be empty since no
// instance ever migrates onto ordinal 0.
func NewLedger(label string, logicRef interfaces.Address, payload interfaces.UpgradePayload, notifier interfaces.VerificationNotifier, sink interfaces.EventSink, log *slog.Logger) (*Ledger, error) {
	if logicRef.IsZero() {
		return nil, interfaces.ErrInvalidAddress
	}

	l := &Ledger{
		entries:  make(map[uint64]interfaces.VersionEntry),
		notifier: notifier,
		sink:     sink,
		log:      log,
	}
	l.entries[0] = interfaces.VersionEntry{
		Ordinal:  0,
		Label:    label,
		LogicRef: logicRef,
		Payload:  payload,
	}
	return l, nil
}

// Publish appends a new version at the next ordinal and returns it. The new
// entry must differ from the frontier entry in both label and logic
// reference: a release that changes only one of the two is the same version
// with a different name and is rejected.
func (l *Ledger) Publish(label string, logicRef interfaces.Address, payload interfaces.UpgradePayload) (uint64, error) {
	if logicRef.IsZero() {
		return 0, interfaces.ErrInvalidAddress
	}

	l.mu.Lock()
	head := l.entries[l.highest]
	if head.Label == label || head.LogicRef.Equal(logicRef) {
		l.mu.Unlock()
		return 0, interfaces.ErrDuplicateVersion
	}

	ordinal := l.highest + 1
	entry := interfaces.VersionEntry{
		Ordinal:  ordinal,
		Label:    label,
		LogicRef: logicRef,
		Payload:  payload,
	}
	l.entries[ordinal] = entry
	l.highest = ordinal
	l.mu.Unlock()

	l.logicChanged(entry)

	l.log.Info("Published version",
		slog.Uint64("ordinal", ordinal),
		slog.String("label", label),
		slog.String("logicRef", logicRef.String()))

	return ordinal, nil
}

// Edit overwrites an already-published ordinal in place. Edits correct a
// possibly already-adopted entry, so they carry a stricter payload check than
// Publish: the payload must encode an operation, since an edited version is
// likely to be exercised immediately by pending upgrades.
func (l *Ledger) Edit(ordinal uint64, label string, logicRef interfaces.Address, payload interfaces.UpgradePayload) error {
	if logicRef.IsZero() {
		return interfaces.ErrInvalidAddress
	}
	if !payload.HasCallData() {
		return interfaces.ErrInvalidPayload
	}

	l.mu.Lock()
	if ordinal > l.highest {
		l.mu.Unlock()
		return fmt.Errorf("%w: %d > %d", interfaces.ErrInvalidOrdinal, ordinal, l.highest)
	}
	if ordinal > 0 {
		prev := l.entries[ordinal-1]
		if prev.Label == label || prev.LogicRef.Equal(logicRef) {
			l.mu.Unlock()
			return interfaces.ErrDuplicateVersion
		}
	}

	entry := interfaces.VersionEntry{
		Ordinal:  ordinal,
		Label:    label,
		LogicRef: logicRef,
		Payload:  payload,
	}
	l.entries[ordinal] = entry
	l.mu.Unlock()

	l.logicChanged(entry)

	l.log.Info("Edited version",
		slog.Uint64("ordinal", ordinal),
		slog.String("label", label),
		slog.String("logicRef", logicRef.String()))

	return nil
}

// logicChanged fires the verification revocation side effect and the
// LogicContractSet event after a successful publish or edit.
func (l *Ledger) logicChanged(entry interfaces.VersionEntry) {
	if l.notifier != nil {
		if err := l.notifier.NotifyLogicChanged(entry.LogicRef); err != nil {
			// Revocation is best effort: the entry is already committed
			// and the external verifier re-checks on its own schedule.
			l.log.Warn("Verification revocation notify failed",
				slog.Uint64("ordinal", entry.Ordinal),
				"err", err)
		}
	}
	if l.sink != nil {
		l.sink.Publish(interfaces.LogicContractSet{
			Label:    entry.Label,
			Ordinal:  entry.Ordinal,
			LogicRef: entry.LogicRef,
			Payload:  entry.Payload,
		})
	}
}

// HighestOrdinal returns the current ledger frontier.
func (l *Ledger) HighestOrdinal() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.highest
}

// CurrentVersionLabel returns the label at the frontier.
func (l *Ledger) CurrentVersionLabel() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.entries[l.highest].Label
}

// Entry returns the entry at the given ordinal.
func (l *Ledger) Entry(ordinal uint64) (interfaces.VersionEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[ordinal]
	if !ok {
		return interfaces.VersionEntry{}, fmt.Errorf("%w: %d", interfaces.ErrInvalidOrdinal, ordinal)
	}
	return entry, nil
}

// Entries returns a copy of every ledger entry in ordinal order.
func (l *Ledger) Entries() []interfaces.VersionEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]interfaces.VersionEntry, 0, l.highest+1)
	for ordinal := uint64(0); ordinal <= l.highest; ordinal++ {
		out = append(out, l.entries[ordinal])
	}
	return out
}
