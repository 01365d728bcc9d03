package api

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PublishRequest is the body of POST /api/admin/versions.
type PublishRequest struct {
	// Label is the human-readable version label, e.g. "1.1".
	Label string `json:"label"`

	// LogicRef is the hex-encoded code reference for the new version.
	LogicRef string `json:"logic_ref"`

	// Payload is the migration call data applied when an instance steps
	// onto this version.
	Payload hexutil.Bytes `json:"payload"`
}

// PublishResponse reports the ordinal assigned to a published version.
type PublishResponse struct {
	Ordinal uint64 `json:"ordinal"`
}

// EditRequest is the body of PUT /api/admin/versions/{ordinal}.
type EditRequest struct {
	Label    string        `json:"label"`
	LogicRef string        `json:"logic_ref"`
	Payload  hexutil.Bytes `json:"payload"`
}

// SetBoundRequest is the body of PUT /api/admin/bounds/{kind}.
type SetBoundRequest struct {
	// Value is the dotted "major.minor.patch" platform version.
	Value string `json:"value"`
}

// VersionResponse describes a single ledger entry.
type VersionResponse struct {
	Ordinal  uint64        `json:"ordinal"`
	Label    string        `json:"label"`
	LogicRef string        `json:"logic_ref"`
	Payload  hexutil.Bytes `json:"payload"`
}

// BoundResponse describes one compatibility window bound. Set is false while
// the bound has never been configured, in which case Value is empty.
type BoundResponse struct {
	Kind  string `json:"kind"`
	Set   bool   `json:"set"`
	Value string `json:"value,omitempty"`
}

// InstanceResponse describes a registered instance record.
type InstanceResponse struct {
	InstanceID     string `json:"instance_id"`
	Owner          string `json:"owner"`
	CurrentOrdinal uint64 `json:"current_ordinal"`
}

// UpgradeResponse reports the ordinal an instance was moved to.
type UpgradeResponse struct {
	InstanceID string `json:"instance_id"`
	NewOrdinal uint64 `json:"new_ordinal"`
}

// StatusResponse summarizes the registry state for operators.
type StatusResponse struct {
	Frontier     uint64        `json:"frontier"`
	CurrentLabel string        `json:"current_label"`
	Lower        BoundResponse `json:"lower"`
	Upper        BoundResponse `json:"upper"`
	Instances    int           `json:"instances"`
}
