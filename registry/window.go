package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// Window holds the compatibility bounds a plugin type was certified against.
// Once a bound is set it can only widen: the floor drops or stays, the
// ceiling rises or stays. Trust in already-deployed plugins is never revoked
// by silently narrowing their certified range; narrowing requires a full
// re-publish.
//
// An unset bound is tracked explicitly rather than as the zero tuple, so a
// legitimately stored 0.0.0 is distinguishable from "no restriction".
type Window struct {
	mu    sync.RWMutex
	lower *interfaces.VersionTuple
	upper *interfaces.VersionTuple
	sink  interfaces.EventSink
	log   *slog.Logger
}

// NewWindow creates a compatibility window with both bounds unset.
func NewWindow(sink interfaces.EventSink, log *slog.Logger) *Window {
	return &Window{sink: sink, log: log}
}

// SetBound stores a bound value, enforcing the widening rule against any
// previously stored value for that bound.
func (w *Window) SetBound(kind interfaces.BoundKind, value interfaces.VersionTuple) error {
	w.mu.Lock()
	switch kind {
	case interfaces.BoundLower:
		if w.lower != nil && value.Compare(*w.lower) > 0 {
			w.mu.Unlock()
			return fmt.Errorf("%w: lower %s > %s", interfaces.ErrInvalidBoundOrdering, value, *w.lower)
		}
		v := value
		w.lower = &v
	case interfaces.BoundUpper:
		if w.upper != nil && value.Compare(*w.upper) < 0 {
			w.mu.Unlock()
			return fmt.Errorf("%w: upper %s < %s", interfaces.ErrInvalidBoundOrdering, value, *w.upper)
		}
		v := value
		w.upper = &v
	default:
		w.mu.Unlock()
		return fmt.Errorf("%w: %d", interfaces.ErrInvalidBoundKind, kind)
	}
	w.mu.Unlock()

	if w.sink != nil {
		w.sink.Publish(interfaces.BoundChanged{Kind: kind.String(), Value: value})
	}

	w.log.Info("Compatibility bound updated",
		slog.String("kind", kind.String()),
		slog.String("value", value.String()))

	return nil
}

// Bound returns the stored value for a bound and whether it has been set.
// An unset bound means "no restriction"; interpreting that is the caller's
// responsibility.
func (w *Window) Bound(kind interfaces.BoundKind) (interfaces.VersionTuple, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	switch kind {
	case interfaces.BoundLower:
		if w.lower == nil {
			return interfaces.VersionTuple{}, false
		}
		return *w.lower, true
	case interfaces.BoundUpper:
		if w.upper == nil {
			return interfaces.VersionTuple{}, false
		}
		return *w.upper, true
	default:
		return interfaces.VersionTuple{}, false
	}
}

// Admits reports whether a platform version falls inside the window. Unset
// bounds do not restrict.
func (w *Window) Admits(version interfaces.VersionTuple) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.lower != nil && version.Compare(*w.lower) < 0 {
		return false
	}
	if w.upper != nil && version.Compare(*w.upper) > 0 {
		return false
	}
	return true
}
