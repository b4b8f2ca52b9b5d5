package solana

import "context"

// RPCClient defines the subset of the Solana JSON-RPC API used to read
// token mint state.
type RPCClient interface {
	// GetAccountInfo retrieves a raw account by public key.
	// Returns nil, nil when the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenSupply retrieves the total supply of an SPL token mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error)
}
