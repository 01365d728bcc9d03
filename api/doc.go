// Package api defines the wire types and request authentication scheme shared
// by the registry HTTP server and its clients.
//
// Write operations are authenticated with a secp256k1 signature over the
// request: the client signs the Keccak-256 hash of the method, path, and body,
// and the server recovers the caller identity from the signature. No session
// state or pre-registered credentials are needed; the recovered address IS the
// caller identity the registry authorizes against.
package api
