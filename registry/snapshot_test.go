package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// A restored registry must carry on exactly where the snapshotted one left
// off: same frontier, same bounds, same instance positions, and all the
// usual invariants still enforced.
func TestSnapshot_RestoreContinuesOperation(t *testing.T) {
	svc, owner := newTestService(t)
	ctx := t.Context()

	_, err := svc.Authority.Publish(owner, "1.1", testAddr(0x20), interfaces.UpgradePayload{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.NoError(t, svc.Authority.SetBound(owner, interfaces.BoundLower, tuple(1, 0, 0)))

	instance, client := testAddr(0x01), testAddr(0xA0)
	_, err = svc.Instances.Register(ctx, instance, client)
	require.NoError(t, err)

	proxy := svc.Coordinator.proxy.(*MockUpgradeProxy)
	proxy.On("ApplyUpgrade", mock.Anything, instance, mock.Anything).Return(nil)
	_, err = svc.Coordinator.RequestUpgrade(ctx, instance, client)
	require.NoError(t, err)

	snap := svc.Snapshot()

	restored, restoredOwner := newTestService(t)
	require.NoError(t, restored.Restore(snap))

	assert.Equal(t, uint64(1), restored.Ledger.HighestOrdinal())
	assert.Equal(t, "1.1", restored.Ledger.CurrentVersionLabel())

	lower, set := restored.Window.Bound(interfaces.BoundLower)
	require.True(t, set)
	assert.Equal(t, tuple(1, 0, 0), lower)

	record, err := restored.Instances.Record(instance)
	require.NoError(t, err)
	assert.Equal(t, client, record.Owner)
	assert.Equal(t, uint64(1), record.CurrentOrdinal)

	// The restored ledger still rejects duplicates of its frontier.
	_, err = restored.Authority.Publish(restoredOwner, "1.1", testAddr(0x99), nil)
	assert.ErrorIs(t, err, interfaces.ErrDuplicateVersion)

	// And the restored window still only widens.
	err = restored.Authority.SetBound(restoredOwner, interfaces.BoundLower, tuple(2, 0, 0))
	assert.ErrorIs(t, err, interfaces.ErrInvalidBoundOrdering)

	// Publishing past the restored frontier works.
	ordinal, err := restored.Authority.Publish(restoredOwner, "1.2", testAddr(0x30), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ordinal)

	// And the restored instance can take the next step.
	restoredProxy := restored.Coordinator.proxy.(*MockUpgradeProxy)
	restoredProxy.On("ApplyUpgrade", mock.Anything, instance, mock.Anything).Return(nil)
	next, err := restored.Coordinator.RequestUpgrade(ctx, instance, client)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next)
}

func TestSnapshot_RejectsMalformedLedger(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Restore(Snapshot{})
	assert.Error(t, err)

	err = svc.Restore(Snapshot{Entries: []interfaces.VersionEntry{{Ordinal: 5, Label: "1.0"}}})
	assert.Error(t, err)
}
