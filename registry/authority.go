package registry

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// Authority gates every ledger- and window-mutating operation behind the
// single privileged registry identity. The owner identity is injected at
// construction and access checks are plain parameter comparisons against it.
//
// Instance owners are a distinct, per-instance privilege scoped to upgrading
// their own instance; they hold no authority here.
type Authority struct {
	owner  interfaces.Identity
	ledger *Ledger
	window *Window
	log    *slog.Logger
}

// NewAuthority wraps the ledger and window with access control for the given
// owner identity.
func NewAuthority(owner interfaces.Identity, ledger *Ledger, window *Window, log *slog.Logger) *Authority {
	return &Authority{owner: owner, ledger: ledger, window: window, log: log}
}

// Owner returns the privileged registry identity.
func (a *Authority) Owner() interfaces.Identity {
	return a.owner
}

func (a *Authority) authorize(caller interfaces.Identity) error {
	if !caller.Equal(a.owner) {
		a.log.Warn("Rejected privileged call", slog.String("caller", caller.String()))
		return fmt.Errorf("%w: caller %s is not the registry authority", interfaces.ErrUnauthorized, caller)
	}
	return nil
}

// Publish appends a new version to the ledger on behalf of the authority.
func (a *Authority) Publish(caller interfaces.Identity, label string, logicRef interfaces.Address, payload interfaces.UpgradePayload) (uint64, error) {
	if err := a.authorize(caller); err != nil {
		return 0, err
	}
	return a.ledger.Publish(label, logicRef, payload)
}

// Edit overwrites a published ledger entry on behalf of the authority.
func (a *Authority) Edit(caller interfaces.Identity, ordinal uint64, label string, logicRef interfaces.Address, payload interfaces.UpgradePayload) error {
	if err := a.authorize(caller); err != nil {
		return err
	}
	return a.ledger.Edit(ordinal, label, logicRef, payload)
}

// SetBound updates a compatibility window bound on behalf of the authority.
func (a *Authority) SetBound(caller interfaces.Identity, kind interfaces.BoundKind, value interfaces.VersionTuple) error {
	if err := a.authorize(caller); err != nil {
		return err
	}
	return a.window.SetBound(kind, value)
}

// Service bundles the registry components behind a single wiring point for
// the HTTP surface and the snapshot loop.
type Service struct {
	Ledger      *Ledger
	Window      *Window
	Instances   *InstanceRegistry
	Coordinator *Coordinator
	Authority   *Authority
}

// ServiceConfig collects everything needed to assemble a registry service.
type ServiceConfig struct {
	// Owner is the single privileged registry identity.
	Owner interfaces.Identity

	// GenesisLabel, GenesisLogicRef and GenesisPayload populate ordinal 0.
	GenesisLabel    string
	GenesisLogicRef interfaces.Address
	GenesisPayload  interfaces.UpgradePayload

	// SetupCost is the nominal instance setup cost converted through the
	// oracle at registration. Nil disables fee conversion.
	SetupCost *big.Int

	Proxy    interfaces.UpgradeProxy
	Oracle   interfaces.ExchangeOracle
	Notifier interfaces.VerificationNotifier
	Sink     interfaces.EventSink
	Log      *slog.Logger
}

// NewService assembles ledger, window, instance registry, coordinator and
// authority into a ready-to-serve registry.
func NewService(cfg *ServiceConfig) (*Service, error) {
	ledger, err := NewLedger(cfg.GenesisLabel, cfg.GenesisLogicRef, cfg.GenesisPayload, cfg.Notifier, cfg.Sink, cfg.Log)
	if err != nil {
		return nil, err
	}

	window := NewWindow(cfg.Sink, cfg.Log)
	instances := NewInstanceRegistry(ledger, cfg.Oracle, cfg.SetupCost, cfg.Sink, cfg.Log)
	coordinator := NewCoordinator(ledger, instances, cfg.Proxy, cfg.Sink, cfg.Log)
	authority := NewAuthority(cfg.Owner, ledger, window, cfg.Log)

	return &Service{
		Ledger:      ledger,
		Window:      window,
		Instances:   instances,
		Coordinator: coordinator,
		Authority:   authority,
	}, nil
}
