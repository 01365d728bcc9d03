package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

func tuple(major, minor, patch uint8) interfaces.VersionTuple {
	return interfaces.VersionTuple{Major: major, Minor: minor, Patch: patch}
}

func TestWindow_UnsetBoundsAreExplicit(t *testing.T) {
	w := NewWindow(nil, testLogger())

	_, set := w.Bound(interfaces.BoundLower)
	assert.False(t, set)
	_, set = w.Bound(interfaces.BoundUpper)
	assert.False(t, set)

	// Unset means no restriction.
	assert.True(t, w.Admits(tuple(0, 0, 0)))
	assert.True(t, w.Admits(tuple(255, 255, 255)))
}

func TestWindow_LowerOnlyDrops(t *testing.T) {
	w := NewWindow(nil, testLogger())

	require.NoError(t, w.SetBound(interfaces.BoundLower, tuple(1, 0, 0)))

	// Raising the floor narrows the window.
	err := w.SetBound(interfaces.BoundLower, tuple(2, 0, 0))
	assert.ErrorIs(t, err, interfaces.ErrInvalidBoundOrdering)

	// Dropping it widens and is allowed.
	require.NoError(t, w.SetBound(interfaces.BoundLower, tuple(0, 5, 0)))

	v, set := w.Bound(interfaces.BoundLower)
	require.True(t, set)
	assert.Equal(t, tuple(0, 5, 0), v)

	// Restating the current value is a no-op, not a narrowing.
	assert.NoError(t, w.SetBound(interfaces.BoundLower, tuple(0, 5, 0)))
}

func TestWindow_UpperOnlyRises(t *testing.T) {
	w := NewWindow(nil, testLogger())

	require.NoError(t, w.SetBound(interfaces.BoundUpper, tuple(2, 0, 0)))

	err := w.SetBound(interfaces.BoundUpper, tuple(1, 9, 9))
	assert.ErrorIs(t, err, interfaces.ErrInvalidBoundOrdering)

	require.NoError(t, w.SetBound(interfaces.BoundUpper, tuple(2, 1, 0)))

	v, set := w.Bound(interfaces.BoundUpper)
	require.True(t, set)
	assert.Equal(t, tuple(2, 1, 0), v)
}

func TestWindow_FailedUpdateLeavesBoundUnchanged(t *testing.T) {
	w := NewWindow(nil, testLogger())

	require.NoError(t, w.SetBound(interfaces.BoundLower, tuple(1, 0, 0)))
	require.Error(t, w.SetBound(interfaces.BoundLower, tuple(3, 0, 0)))

	v, set := w.Bound(interfaces.BoundLower)
	require.True(t, set)
	assert.Equal(t, tuple(1, 0, 0), v)
}

func TestWindow_Admits(t *testing.T) {
	w := NewWindow(nil, testLogger())
	require.NoError(t, w.SetBound(interfaces.BoundLower, tuple(1, 0, 0)))
	require.NoError(t, w.SetBound(interfaces.BoundUpper, tuple(2, 0, 0)))

	assert.True(t, w.Admits(tuple(1, 0, 0)))
	assert.True(t, w.Admits(tuple(1, 5, 3)))
	assert.True(t, w.Admits(tuple(2, 0, 0)))
	assert.False(t, w.Admits(tuple(0, 9, 9)))
	assert.False(t, w.Admits(tuple(2, 0, 1)))
}

func TestWindow_EmitsBoundChanged(t *testing.T) {
	sink := new(CaptureSink)
	w := NewWindow(sink, testLogger())

	require.NoError(t, w.SetBound(interfaces.BoundUpper, tuple(3, 1, 4)))

	events := sink.Named("BoundChanged")
	require.Len(t, events, 1)
	ev := events[0].(interfaces.BoundChanged)
	assert.Equal(t, "upper", ev.Kind)
	assert.Equal(t, tuple(3, 1, 4), ev.Value)
}

func TestParseBoundKind(t *testing.T) {
	kind, err := interfaces.ParseBoundKind("lower")
	require.NoError(t, err)
	assert.Equal(t, interfaces.BoundLower, kind)

	kind, err = interfaces.ParseBoundKind("upper")
	require.NoError(t, err)
	assert.Equal(t, interfaces.BoundUpper, kind)

	_, err = interfaces.ParseBoundKind("sideways")
	assert.ErrorIs(t, err, interfaces.ErrInvalidBoundKind)
}
