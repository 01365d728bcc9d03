package interfaces

import (
	"context"
	"math/big"
)

// UpgradeProxy is the external collaborator that performs the delegated-call
// code switch inside a deployed instance. The coordinator invokes it exactly
// once per successful upgrade request; an error means the swap did not happen
// and registry state must not change.
type UpgradeProxy interface {
	// ApplyUpgrade swaps the instance's active code to the given version
	// entry and runs its migration payload.
	ApplyUpgrade(ctx context.Context, instance Address, entry VersionEntry) error
}

// ExchangeOracle supplies the rate used to convert the nominal instance setup
// cost into the instance's settlement currency at registration time.
type ExchangeOracle interface {
	// CurrentExchangeRate returns the current conversion rate. A failure
	// here aborts instance registration with no side effects.
	CurrentExchangeRate(ctx context.Context) (*big.Int, error)
}

// VerificationNotifier is the external registry/verification collaborator.
// Whenever published logic changes, any externally cached "verified" status
// for the registrant must be invalidated.
type VerificationNotifier interface {
	// NotifyLogicChanged resets the registrant's verification status.
	NotifyLogicChanged(registrant Identity) error
}

// VersionReader is the read-only view of the version ledger consumed by
// collaborators deciding whether and how an instance may move.
type VersionReader interface {
	// HighestOrdinal returns the current ledger frontier.
	HighestOrdinal() uint64

	// Entry returns the entry at the given ordinal.
	Entry(ordinal uint64) (VersionEntry, error)

	// CurrentVersionLabel returns the label at the frontier.
	CurrentVersionLabel() string
}

// InstanceReader exposes instance records. Records are readable by anyone;
// mutation rights stay with the registered owner.
type InstanceReader interface {
	// Record returns the record for the given instance.
	Record(instance Address) (InstanceRecord, error)
}
