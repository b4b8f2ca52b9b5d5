package solana

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// TokenAmount is the getTokenSupply result value.
type TokenAmount struct {
	Amount         string  `json:"amount"` // raw u64 as decimal string
	Decimals       int     `json:"decimals"`
	UIAmount       float64 `json:"uiAmount"`
	UIAmountString string  `json:"uiAmountString"`
}

// MintMetadata is the on-chain view of an SPL token mint.
type MintMetadata struct {
	Mint      string
	Decimals  int
	Supply    float64 // UI units (raw / 10^decimals)
	Name      string  // from Metaplex metadata, may be empty
	Symbol    string
	FetchedAt int64 // ms
}
