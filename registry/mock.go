package registry

import (
	"context"
	"math/big"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// MockUpgradeProxy mocks the UpgradeProxy collaborator.
type MockUpgradeProxy struct {
	mock.Mock
}

// ApplyUpgrade mocks the ApplyUpgrade method.
func (m *MockUpgradeProxy) ApplyUpgrade(ctx context.Context, instance interfaces.Address, entry interfaces.VersionEntry) error {
	args := m.Called(ctx, instance, entry)
	return args.Error(0)
}

// MockExchangeOracle mocks the ExchangeOracle collaborator.
type MockExchangeOracle struct {
	mock.Mock
}

// CurrentExchangeRate mocks the CurrentExchangeRate method.
func (m *MockExchangeOracle) CurrentExchangeRate(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

// MockVerificationNotifier mocks the VerificationNotifier collaborator.
type MockVerificationNotifier struct {
	mock.Mock
}

// NotifyLogicChanged mocks the NotifyLogicChanged method.
func (m *MockVerificationNotifier) NotifyLogicChanged(registrant interfaces.Identity) error {
	args := m.Called(registrant)
	return args.Error(0)
}

// CaptureSink records every published event for assertions in tests.
type CaptureSink struct {
	mu     sync.Mutex
	events []interfaces.Event
}

// Publish implements interfaces.EventSink.
func (c *CaptureSink) Publish(event interfaces.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns a copy of everything published so far.
func (c *CaptureSink) Events() []interfaces.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interfaces.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Named returns the published events with the given name, in order.
func (c *CaptureSink) Named(name string) []interfaces.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []interfaces.Event
	for _, ev := range c.events {
		if ev.EventName() == name {
			out = append(out, ev)
		}
	}
	return out
}
