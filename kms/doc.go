// Package kms manages the registry authority key.
//
// The authority key gates every privileged registry operation, so it is never
// stored whole: it is split into shares with Shamir's Secret Sharing, each
// share is encrypted under its custodian's passphrase, and a threshold of
// custodians must come together to reconstruct the key. Reconstruction
// happens only in memory.
package kms
