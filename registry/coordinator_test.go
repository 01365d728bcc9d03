package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

type coordinatorFixture struct {
	ledger      *Ledger
	instances   *InstanceRegistry
	coordinator *Coordinator
	proxy       *MockUpgradeProxy
	sink        *CaptureSink
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()

	sink := new(CaptureSink)
	ledger, err := NewLedger("1.0", testAddr(0x10), nil, nil, sink, testLogger())
	require.NoError(t, err)

	proxy := new(MockUpgradeProxy)
	instances := NewInstanceRegistry(ledger, nil, nil, sink, testLogger())
	coordinator := NewCoordinator(ledger, instances, proxy, sink, testLogger())

	return &coordinatorFixture{
		ledger:      ledger,
		instances:   instances,
		coordinator: coordinator,
		proxy:       proxy,
		sink:        sink,
	}
}

// TestCoordinator_PublishRegisterUpgrade walks the canonical flow: ordinal 0
// at construction, ordinal 1 published, an instance created at 0, upgraded
// to 1, and then stuck until ordinal 2 exists.
func TestCoordinator_PublishRegisterUpgrade(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Publish("1.1", testAddr(0x20), interfaces.UpgradePayload{0xAA, 0xBB, 0xCC, 0xDD})
	require.NoError(t, err)

	instance, owner := testAddr(0x01), testAddr(0xA0)
	_, err = f.instances.Register(ctx, instance, owner)
	require.NoError(t, err)

	f.proxy.On("ApplyUpgrade", mock.Anything, instance, mock.MatchedBy(func(e interfaces.VersionEntry) bool {
		return e.Ordinal == 1 && e.Label == "1.1"
	})).Return(nil).Once()

	ordinal, err := f.coordinator.RequestUpgrade(ctx, instance, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ordinal)

	record, err := f.instances.Record(instance)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), record.CurrentOrdinal)

	// No ordinal 2 yet: the instance is at the frontier.
	_, err = f.coordinator.RequestUpgrade(ctx, instance, owner)
	assert.ErrorIs(t, err, interfaces.ErrVersionSkip)

	f.proxy.AssertExpectations(t)

	events := f.sink.Named("InstanceUpgraded")
	require.Len(t, events, 1)
	ev := events[0].(interfaces.InstanceUpgraded)
	assert.Equal(t, instance, ev.InstanceID)
	assert.Equal(t, owner, ev.Owner)
	assert.Equal(t, uint64(1), ev.NewOrdinal)
}

func TestCoordinator_OnlyOwnerMayUpgrade(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Publish("1.1", testAddr(0x20), nil)
	require.NoError(t, err)

	instance, owner := testAddr(0x01), testAddr(0xA0)
	_, err = f.instances.Register(ctx, instance, owner)
	require.NoError(t, err)

	_, err = f.coordinator.RequestUpgrade(ctx, instance, testAddr(0xB0))
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

	// The ordinal did not move and the proxy was never called.
	record, err := f.instances.Record(instance)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), record.CurrentOrdinal)
	f.proxy.AssertNotCalled(t, "ApplyUpgrade", mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_UnknownInstance(t *testing.T) {
	f := newCoordinatorFixture(t)

	_, err := f.coordinator.RequestUpgrade(context.Background(), testAddr(0x99), testAddr(0xA0))
	assert.ErrorIs(t, err, interfaces.ErrInstanceNotFound)
}

func TestCoordinator_ProxyFailureLeavesStateUntouched(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Publish("1.1", testAddr(0x20), nil)
	require.NoError(t, err)

	instance, owner := testAddr(0x01), testAddr(0xA0)
	_, err = f.instances.Register(ctx, instance, owner)
	require.NoError(t, err)

	f.proxy.On("ApplyUpgrade", mock.Anything, instance, mock.Anything).Return(assert.AnError).Once()

	_, err = f.coordinator.RequestUpgrade(ctx, instance, owner)
	assert.ErrorIs(t, err, interfaces.ErrUpgradeExecutionFailed)

	record, err := f.instances.Record(instance)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), record.CurrentOrdinal)
	assert.Empty(t, f.sink.Named("InstanceUpgraded"))

	// The failure is retryable once the proxy recovers.
	f.proxy.On("ApplyUpgrade", mock.Anything, instance, mock.Anything).Return(nil).Once()
	ordinal, err := f.coordinator.RequestUpgrade(ctx, instance, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ordinal)
}

// TestCoordinator_SingleStepOnly verifies that n successful upgrade calls
// move an instance created at ordinal k to exactly k+n, stepping through
// every intermediate payload.
func TestCoordinator_SingleStepOnly(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	instance, owner := testAddr(0x01), testAddr(0xA0)
	_, err := f.instances.Register(ctx, instance, owner)
	require.NoError(t, err)

	labels := []string{"1.1", "1.2", "1.3"}
	for i, label := range labels {
		_, err := f.ledger.Publish(label, testAddr(byte(0x20+i)), nil)
		require.NoError(t, err)
	}

	var applied []uint64
	f.proxy.On("ApplyUpgrade", mock.Anything, instance, mock.Anything).Run(func(args mock.Arguments) {
		applied = append(applied, args.Get(2).(interfaces.VersionEntry).Ordinal)
	}).Return(nil).Times(3)

	for n := 1; n <= 3; n++ {
		ordinal, err := f.coordinator.RequestUpgrade(ctx, instance, owner)
		require.NoError(t, err)
		assert.Equal(t, uint64(n), ordinal)
	}

	// Every payload in the chain ran exactly once, in order.
	assert.Equal(t, []uint64{1, 2, 3}, applied)

	_, err = f.coordinator.RequestUpgrade(ctx, instance, owner)
	assert.ErrorIs(t, err, interfaces.ErrVersionSkip)
}

// TestCoordinator_ConcurrentRequestsSerialize fires concurrent upgrade
// requests at one instance with a single published step: exactly one
// succeeds, the rest observe the frontier.
func TestCoordinator_ConcurrentRequestsSerialize(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Publish("1.1", testAddr(0x20), nil)
	require.NoError(t, err)

	instance, owner := testAddr(0x01), testAddr(0xA0)
	_, err = f.instances.Register(ctx, instance, owner)
	require.NoError(t, err)

	f.proxy.On("ApplyUpgrade", mock.Anything, instance, mock.Anything).Return(nil)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coordinator.RequestUpgrade(ctx, instance, owner)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, skipped int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, interfaces.ErrVersionSkip):
			skipped++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, skipped)

	record, err := f.instances.Record(instance)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), record.CurrentOrdinal)
	f.proxy.AssertNumberOfCalls(t, "ApplyUpgrade", 1)
}
