// Package stub provides an in-memory solana.RPCClient for tests.
package stub

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"strconv"
	"sync"

	"token-companion/internal/solana"
)

// ErrNotFound is returned by GetTokenSupply for unknown mints.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient over in-memory accounts.
type RPCClient struct {
	mu       sync.Mutex
	Accounts map[string]*solana.AccountInfo
	Supplies map[string]*solana.TokenAmount
	Calls    int
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts: make(map[string]*solana.AccountInfo),
		Supplies: make(map[string]*solana.TokenAmount),
	}
}

// GetAccountInfo returns the stored account, or nil for unknown keys.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	return c.Accounts[pubkey], nil
}

// GetTokenSupply returns the stored supply for mint.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint string) (*solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	amount, ok := c.Supplies[mint]
	if !ok {
		return nil, ErrNotFound
	}
	return amount, nil
}

// CallCount returns the number of RPC calls served.
func (c *RPCClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls
}

// AddMint stores an SPL mint account with the given raw supply and decimals.
func (c *RPCClient) AddMint(mint string, supply uint64, decimals uint8) {
	data := make([]byte, 82)
	binary.LittleEndian.PutUint64(data[36:44], supply)
	data[44] = decimals
	data[45] = 1 // initialized

	ui := float64(supply) / math.Pow10(int(decimals))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[mint] = &solana.AccountInfo{
		Owner: "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
		Data:  base64.StdEncoding.EncodeToString(data),
	}
	c.Supplies[mint] = &solana.TokenAmount{
		Amount:         strconv.FormatUint(supply, 10),
		Decimals:       int(decimals),
		UIAmount:       ui,
		UIAmountString: strconv.FormatFloat(ui, 'f', -1, 64),
	}
}

// AddMetadata stores a Metaplex metadata account for mint.
func (c *RPCClient) AddMetadata(mint, name, symbol string) error {
	pda, err := solana.DeriveMetadataPDA(mint)
	if err != nil {
		return err
	}

	data := make([]byte, 65) // key, update authority, mint
	data[0] = 4
	data = append(data, borshString(name, 32)...)
	data = append(data, borshString(symbol, 10)...)
	data = append(data, borshString("", 200)...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pda] = &solana.AccountInfo{
		Owner: solana.MetaplexProgramID,
		Data:  base64.StdEncoding.EncodeToString(data),
	}
	return nil
}

// borshString encodes s zero-padded to size, the way Metaplex stores names.
func borshString(s string, size int) []byte {
	out := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(out, uint32(size))
	copy(out[4:], s)
	return out
}
