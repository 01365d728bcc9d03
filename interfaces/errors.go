package interfaces

import "errors"

// Registry precondition failures. Every operation either fully commits or
// fails with one of these and leaves state unchanged. None are retried
// automatically; callers retry with corrected input.
var (
	// ErrInvalidAddress is returned when a logic reference is the zero address.
	ErrInvalidAddress = errors.New("invalid logic address")

	// ErrDuplicateVersion is returned when a published or edited entry does
	// not differ from its predecessor in both label and logic reference.
	ErrDuplicateVersion = errors.New("version does not differ from predecessor")

	// ErrInvalidOrdinal is returned when an edit targets an ordinal beyond
	// the ledger frontier.
	ErrInvalidOrdinal = errors.New("ordinal not present in ledger")

	// ErrInvalidPayload is returned when an edited entry carries a payload
	// with no encoded operation.
	ErrInvalidPayload = errors.New("upgrade payload carries no call data")

	// ErrInvalidBoundKind is returned when a bound name is not one of the
	// two recognized literals.
	ErrInvalidBoundKind = errors.New("unrecognized bound kind")

	// ErrInvalidBoundOrdering is returned when a bound update would narrow
	// the compatibility window.
	ErrInvalidBoundOrdering = errors.New("bound update narrows compatibility window")

	// ErrInvalidBoundLength is returned when a version tuple does not have
	// exactly three 8-bit components.
	ErrInvalidBoundLength = errors.New("malformed version tuple")

	// ErrUnauthorized is returned when a caller is neither the registry
	// authority nor, for instance operations, the instance owner.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrVersionSkip is returned when an upgrade is requested but the
	// instance already runs the highest published ordinal.
	ErrVersionSkip = errors.New("no adjacent version to upgrade to")

	// ErrUpgradeExecutionFailed is returned when the proxy collaborator
	// rejects the code swap. The instance stays on its prior ordinal.
	ErrUpgradeExecutionFailed = errors.New("proxy upgrade execution failed")

	// ErrInstanceExists is returned when registering an instance ID that
	// already has a record. Records are created exactly once.
	ErrInstanceExists = errors.New("instance already registered")

	// ErrInstanceNotFound is returned when an operation references an
	// unknown instance.
	ErrInstanceNotFound = errors.New("instance not registered")

	// ErrOracleUnavailable is returned when the fee oracle cannot supply an
	// exchange rate during instance registration.
	ErrOracleUnavailable = errors.New("exchange rate oracle unavailable")
)
