package chain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

const lamportsPerSol = 1e9

// SolanaAdapter speaks JSON-RPC to a Solana node. It implements the chain
// Adapter capability set and additionally exposes raw account reads for the
// oracle decoders.
type SolanaAdapter struct {
	rpcURL     string
	httpClient *http.Client
}

// NewSolanaAdapter creates an adapter for the given RPC endpoint, e.g.
// "https://api.devnet.solana.com".
func NewSolanaAdapter(rpcURL string) *SolanaAdapter {
	return &SolanaAdapter{
		rpcURL: rpcURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// rpcRequest is the standard JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcResponse is the standard JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call performs a single JSON-RPC request and unmarshals the result.
func (a *SolanaAdapter) call(ctx context.Context, method string, params []any, result any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("solana rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solana rpc %s: unexpected status %d", method, resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("solana rpc %s: decode response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("solana rpc %s: %s (code %d)", method, envelope.Error.Message, envelope.Error.Code)
	}

	return json.Unmarshal(envelope.Result, result)
}

// GetAccountBytes fetches an account's raw data via getAccountInfo with
// base64 encoding. A missing account yields nil bytes and no error.
func (a *SolanaAdapter) GetAccountBytes(ctx context.Context, address string) ([]byte, error) {
	var result struct {
		Value *struct {
			Data []string `json:"data"` // [payload, encoding]
		} `json:"value"`
	}

	params := []any{address, map[string]string{"encoding": "base64", "commitment": "confirmed"}}
	if err := a.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil || len(result.Value.Data) == 0 {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("solana account %s: decode data: %w", address, err)
	}
	return data, nil
}

// ReadBalance returns the SOL balance for an address.
func (a *SolanaAdapter) ReadBalance(ctx context.Context, address string) (float64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}

	params := []any{address, map[string]string{"commitment": "confirmed"}}
	if err := a.call(ctx, "getBalance", params, &result); err != nil {
		log.Error().Err(err).Str("service", "chain").Str("address", address).Msg("get balance failed")
		return 0, err
	}

	return float64(result.Value) / lamportsPerSol, nil
}

// BroadcastTransaction submits a serialized signed transaction. Signing
// happens in the wallet; this side only ever sees the finished bytes.
func (a *SolanaAdapter) BroadcastTransaction(ctx context.Context, rawTx []byte) (string, error) {
	if len(rawTx) == 0 {
		return "", fmt.Errorf("solana broadcast: empty transaction")
	}

	var signature string
	params := []any{base64.StdEncoding.EncodeToString(rawTx), map[string]string{"encoding": "base64"}}
	if err := a.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}

	log.Info().Str("service", "chain").Str("signature", signature).Msg("solana tx broadcast")
	return signature, nil
}

// VerifySignature checks an ed25519 signature against a base58 Solana
// pubkey. A well-formed but wrong signature returns (false, nil);
// malformed inputs return an error.
func (a *SolanaAdapter) VerifySignature(message, signatureHex, address string) (bool, error) {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false, fmt.Errorf("solana verify: decode signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("solana verify: signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}

	pub, err := base58.Decode(address)
	if err != nil {
		return false, fmt.Errorf("solana verify: decode address: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("solana verify: pubkey must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}

	return ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig), nil
}
