// Package registry implements the versioned plugin-module registry core: the
// ordered version ledger, the compatibility window, the per-instance record
// table, the upgrade coordinator, and the authority wrapper gating privileged
// mutation.
//
// Key guarantees:
//
//   - Published versions advance the ledger frontier by exactly one, and an
//     entry never duplicates its predecessor in label or logic reference.
//   - Compatibility bounds only widen after being set: the floor can only
//     drop, the ceiling can only rise.
//   - An instance only ever moves to the immediately next ordinal, so every
//     migration payload in the chain runs exactly once, in order.
//   - Ledger- and window-mutating operations require the single authority
//     identity; upgrades require the instance's registered owner.
//
// All operations are synchronous and atomic: a precondition failure leaves
// state untouched. The coordinator performs its external proxy call under a
// per-instance exclusive lock and commits the new ordinal only after the
// proxy reports success, so a failed swap never moves the record.
//
// External collaborators (code-swap proxy, fee oracle, verification
// notifier, event sink) are injected through the interfaces package.
package registry
