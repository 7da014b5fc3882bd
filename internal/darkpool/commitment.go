package darkpool

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const nonceBytes = 16

// ComputeCommitment derives the commitment hash binding a wallet, market
// and amount: sha3-256 over "wallet:market:amount:nonce" with a fresh
// random nonce. Two calls with identical inputs never produce the same
// hash, so commitments cannot be linked or replayed.
//
// The nonce is not returned. A caller that ever wants to prove the
// committed plaintext must persist the nonce out-of-band; as it stands the
// commitment binds but cannot be reopened server-side.
func ComputeCommitment(wallet, marketID, amount string) (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("commitment nonce: %w", err)
	}

	payload := fmt.Sprintf("%s:%s:%s:%s", wallet, marketID, amount, hex.EncodeToString(nonce))
	digest := sha3.Sum256([]byte(payload))
	return hex.EncodeToString(digest[:]), nil
}

// ValidCommitmentFormat reports whether a client-supplied commitment looks
// like a 256-bit hex digest. Format check only; the hash itself is opaque
// to the backend.
func ValidCommitmentFormat(commitment string) bool {
	if len(commitment) != 64 {
		return false
	}
	_, err := hex.DecodeString(commitment)
	return err == nil
}
