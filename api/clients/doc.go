// Package clients provides HTTP clients for the registry API. The
// RegistryClient signs write requests with a caller key so the server can
// recover and authorize the caller identity.
package clients
