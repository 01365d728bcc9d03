package interfaces

// Event is a structured notification emitted after every state-changing
// registry operation, delivered to external observers through an EventSink.
type Event interface {
	// EventName returns the stable name observers dispatch on.
	EventName() string
}

// EventSink receives registry events. Implementations must not block the
// emitting operation; delivery failures are the sink's concern.
type EventSink interface {
	Publish(event Event)
}

// LogicContractSet is emitted after every successful publish or edit.
type LogicContractSet struct {
	Label    string         `json:"label"`
	Ordinal  uint64         `json:"ordinal"`
	LogicRef Address        `json:"logic_ref"`
	Payload  UpgradePayload `json:"payload"`
}

// EventName implements Event.
func (LogicContractSet) EventName() string { return "LogicContractSet" }

// InstanceUpgraded is emitted after an instance successfully steps to the
// next ordinal.
type InstanceUpgraded struct {
	InstanceID Address  `json:"instance_id"`
	Owner      Identity `json:"owner"`
	NewOrdinal uint64   `json:"new_ordinal"`
}

// EventName implements Event.
func (InstanceUpgraded) EventName() string { return "InstanceUpgraded" }

// BoundChanged is emitted after a compatibility window bound is updated.
type BoundChanged struct {
	Kind  string       `json:"kind"`
	Value VersionTuple `json:"value"`
}

// EventName implements Event.
func (BoundChanged) EventName() string { return "BoundChanged" }

// InstanceRegistered is emitted after a new instance record is created.
type InstanceRegistered struct {
	InstanceID Address  `json:"instance_id"`
	Owner      Identity `json:"owner"`
	Ordinal    uint64   `json:"ordinal"`
	// SettlementFee is the setup cost converted at the oracle rate observed
	// during registration, in settlement currency units.
	SettlementFee string `json:"settlement_fee"`
}

// EventName implements Event.
func (InstanceRegistered) EventName() string { return "InstanceRegistered" }
