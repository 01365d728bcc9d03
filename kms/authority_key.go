package kms

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/vault/shamir"
	"golang.org/x/crypto/argon2"
)

const (
	saltLength  = 16
	nonceLength = 12
)

// deriveShareKey stretches a custodian passphrase into an AES-256 key.
func deriveShareKey(passphrase string, salt []byte) []byte {
	// Parameters: time=1, memory=64*1024, threads=4, keyLen=32
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// EncryptShare seals one key share under a custodian passphrase. The output
// is salt || nonce || ciphertext.
func EncryptShare(share []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	block, err := aes.NewCipher(deriveShareKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aesGCM.Seal(nil, nonce, share, nil)

	out := make([]byte, 0, saltLength+nonceLength+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// DecryptShare opens a share sealed with EncryptShare.
func DecryptShare(sealed []byte, passphrase string) ([]byte, error) {
	if len(sealed) < saltLength+nonceLength {
		return nil, errors.New("sealed share too short")
	}

	salt := sealed[:saltLength]
	nonce := sealed[saltLength : saltLength+nonceLength]
	ciphertext := sealed[saltLength+nonceLength:]

	block, err := aes.NewCipher(deriveShareKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	share, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt share: %w", err)
	}
	return share, nil
}

// SplitAuthorityKey splits the authority key into len(passphrases) shares
// with the given reconstruction threshold. Share i is sealed under
// passphrases[i]. The caller should erase the plaintext key after
// distribution.
func SplitAuthorityKey(key *ecdsa.PrivateKey, threshold int, passphrases []string) ([][]byte, error) {
	if threshold < 2 {
		return nil, errors.New("threshold must be at least 2")
	}
	if len(passphrases) < threshold {
		return nil, errors.New("need at least threshold custodians")
	}

	shares, err := shamir.Split(ethcrypto.FromECDSA(key), len(passphrases), threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split authority key: %w", err)
	}

	sealed := make([][]byte, len(shares))
	for i, share := range shares {
		sealed[i], err = EncryptShare(share, passphrases[i])
		if err != nil {
			return nil, fmt.Errorf("failed to seal share %d: %w", i, err)
		}
		wipeBytes(share)
	}
	return sealed, nil
}

// CombineAuthorityKey reconstructs the authority key from sealed shares.
// sealedShares[i] is opened with passphrases[i]; any threshold-sized subset
// of the original shares suffices.
func CombineAuthorityKey(sealedShares [][]byte, passphrases []string) (*ecdsa.PrivateKey, error) {
	if len(sealedShares) != len(passphrases) {
		return nil, errors.New("share and passphrase counts differ")
	}

	shares := make([][]byte, len(sealedShares))
	defer func() {
		for _, share := range shares {
			wipeBytes(share)
		}
	}()

	for i, sealed := range sealedShares {
		share, err := DecryptShare(sealed, passphrases[i])
		if err != nil {
			return nil, fmt.Errorf("failed to open share %d: %w", i, err)
		}
		shares[i] = share
	}

	keyBytes, err := shamir.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct authority key: %w", err)
	}
	defer wipeBytes(keyBytes)

	key, err := ethcrypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("reconstructed bytes are not a valid key: %w", err)
	}
	return key, nil
}

// Securely wipe data from memory
func wipeBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
