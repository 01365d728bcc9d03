package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

func newTestService(t *testing.T) (*Service, interfaces.Identity) {
	t.Helper()

	owner := testAddr(0xFF)
	svc, err := NewService(&ServiceConfig{
		Owner:           owner,
		GenesisLabel:    "1.0",
		GenesisLogicRef: testAddr(0x10),
		Proxy:           new(MockUpgradeProxy),
		Log:             testLogger(),
	})
	require.NoError(t, err)
	return svc, owner
}

func TestAuthority_GatesPublish(t *testing.T) {
	svc, owner := newTestService(t)

	_, err := svc.Authority.Publish(testAddr(0x01), "1.1", testAddr(0x20), nil)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)
	assert.Equal(t, uint64(0), svc.Ledger.HighestOrdinal())

	ordinal, err := svc.Authority.Publish(owner, "1.1", testAddr(0x20), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ordinal)
}

func TestAuthority_GatesEdit(t *testing.T) {
	svc, owner := newTestService(t)

	_, err := svc.Authority.Publish(owner, "1.1", testAddr(0x20), nil)
	require.NoError(t, err)

	payload := interfaces.UpgradePayload{1, 2, 3, 4, 5}

	err = svc.Authority.Edit(testAddr(0x01), 1, "1.1b", testAddr(0x21), payload)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

	err = svc.Authority.Edit(owner, 1, "1.1b", testAddr(0x21), payload)
	assert.NoError(t, err)
}

func TestAuthority_GatesSetBound(t *testing.T) {
	svc, owner := newTestService(t)

	err := svc.Authority.SetBound(testAddr(0x01), interfaces.BoundLower, tuple(1, 0, 0))
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)
	_, set := svc.Window.Bound(interfaces.BoundLower)
	assert.False(t, set)

	err = svc.Authority.SetBound(owner, interfaces.BoundLower, tuple(1, 0, 0))
	require.NoError(t, err)
	v, set := svc.Window.Bound(interfaces.BoundLower)
	require.True(t, set)
	assert.Equal(t, tuple(1, 0, 0), v)
}

// Instance ownership and registry authority are distinct privileges: the
// authority cannot upgrade someone else's instance.
func TestAuthority_CannotUpgradeForeignInstance(t *testing.T) {
	svc, owner := newTestService(t)
	ctx := t.Context()

	_, err := svc.Authority.Publish(owner, "1.1", testAddr(0x20), nil)
	require.NoError(t, err)

	instance, client := testAddr(0x01), testAddr(0xA0)
	_, err = svc.Instances.Register(ctx, instance, client)
	require.NoError(t, err)

	_, err = svc.Coordinator.RequestUpgrade(ctx, instance, owner)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)
}
