// Package httpserver implements the HTTP surface of the plugin registry.
//
// The server exposes three groups of endpoints:
//
//   - /api/public/*: unauthenticated reads of the version ledger, the
//     compatibility window, and instance records.
//   - /api/admin/*: authority-only writes (publish, edit, set bound). Each
//     request must be signed; the recovered identity is authorized by the
//     registry authority.
//   - /api/instances/*: client operations (register, upgrade). Each request
//     must be signed; registration binds the instance to the signer, and
//     upgrades are accepted only from the recorded owner.
//
// Health and drain endpoints (/livez, /readyz, /drain, /undrain) follow the
// usual load-balancer protocol, and metrics are served on a separate listener.
package httpserver
