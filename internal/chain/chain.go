// Package chain provides the on-chain capabilities consumed by the rest of
// the service: balance reads, transaction broadcast, signature verification
// and raw account reads for the oracle decoders.
package chain

import (
	"context"
	"errors"
	"fmt"
)

// Chain identifies a supported ledger. The set is closed: adapters are
// registered per variant at construction time, never looked up by free-form
// string.
type Chain string

const (
	Solana   Chain = "solana"
	Ethereum Chain = "ethereum"
	Sui      Chain = "sui"
)

var (
	// ErrUnsupportedChain means no adapter is registered for the variant.
	ErrUnsupportedChain = errors.New("chain: unsupported chain")

	// ErrNotImplemented is returned by placeholder adapters for chains
	// the protocol plans to support but has not wired up yet.
	ErrNotImplemented = errors.New("chain: adapter not implemented")
)

// Adapter is the capability set every chain integration provides.
type Adapter interface {
	// ReadBalance returns the native balance in the chain's base unit.
	ReadBalance(ctx context.Context, address string) (float64, error)

	// BroadcastTransaction submits a pre-signed serialized transaction
	// and returns its signature or hash. Signing happens client-side.
	BroadcastTransaction(ctx context.Context, rawTx []byte) (string, error)

	// VerifySignature checks that address signed message producing the
	// given hex signature.
	VerifySignature(message string, signatureHex, address string) (bool, error)
}

// Registry routes capability requests to the adapter for each chain
// variant. Construct once at startup and pass by reference.
type Registry struct {
	adapters map[Chain]Adapter
	solana   *SolanaAdapter
}

// NewRegistry builds the registry around a live Solana adapter. Ethereum
// and Sui are registered as explicit not-implemented placeholders so
// selecting them fails predictably instead of panicking at call sites.
func NewRegistry(solana *SolanaAdapter) *Registry {
	return &Registry{
		adapters: map[Chain]Adapter{
			Solana:   solana,
			Ethereum: Unimplemented{Chain: Ethereum},
			Sui:      Unimplemented{Chain: Sui},
		},
		solana: solana,
	}
}

// Get returns the adapter for a chain variant.
func (r *Registry) Get(c Chain) (Adapter, error) {
	adapter, ok := r.adapters[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, c)
	}
	return adapter, nil
}

// Solana returns the concrete Solana adapter, which also serves as the
// account-read capability for the oracle.
func (r *Registry) Solana() *SolanaAdapter {
	return r.solana
}

// Unimplemented is the placeholder adapter for chains that are declared
// but not yet integrated. Every call returns ErrNotImplemented.
type Unimplemented struct {
	Chain Chain
}

func (u Unimplemented) ReadBalance(context.Context, string) (float64, error) {
	return 0, fmt.Errorf("%w: %s", ErrNotImplemented, u.Chain)
}

func (u Unimplemented) BroadcastTransaction(context.Context, []byte) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrNotImplemented, u.Chain)
}

func (u Unimplemented) VerifySignature(string, string, string) (bool, error) {
	return false, fmt.Errorf("%w: %s", ErrNotImplemented, u.Chain)
}
