package solana

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"token-companion/internal/cache"
)

// DefaultMetadataTTL bounds how long on-chain mint metadata is reused.
const DefaultMetadataTTL = 10 * time.Minute

// ErrMintNotFound is returned when the mint account does not exist.
var ErrMintNotFound = errors.New("mint account not found")

// MetadataSource reads decimals and supply from the SPL mint account and
// name and symbol from the Metaplex metadata account.
type MetadataSource struct {
	rpc   RPCClient
	cache cache.Cache[MintMetadata]
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewMetadataSource creates a metadata source. A nil cache disables caching.
func NewMetadataSource(rpc RPCClient, c cache.Cache[MintMetadata], log logrus.FieldLogger) *MetadataSource {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MetadataSource{
		rpc:   rpc,
		cache: c,
		log:   log.WithField("component", "solana.metadata"),
		now:   time.Now,
	}
}

// MintMetadata returns on-chain metadata for mint.
// Name and symbol are best-effort; a missing Metaplex account is not an error.
func (s *MetadataSource) MintMetadata(ctx context.Context, mint string) (*MintMetadata, error) {
	if s.cache != nil {
		if m, ok := s.cache.Get(ctx, mint); ok {
			return &m, nil
		}
	}

	mintInfo, err := s.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get mint account info: %w", err)
	}
	if mintInfo == nil {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, mint)
	}

	meta := &MintMetadata{
		Mint:      mint,
		FetchedAt: s.now().UnixMilli(),
	}
	if err := parseMintData(mintInfo.Data, meta); err != nil {
		if ferr := s.supplyFallback(ctx, meta); ferr != nil {
			return nil, fmt.Errorf("%w (getTokenSupply: %v)", err, ferr)
		}
		s.log.WithError(err).WithField("mint", mint).Debug("mint data unreadable, used getTokenSupply")
	}

	pda, err := DeriveMetadataPDA(mint)
	if err == nil {
		metaInfo, err := s.rpc.GetAccountInfo(ctx, pda)
		switch {
		case err != nil:
			s.log.WithError(err).WithField("mint", mint).Debug("metaplex lookup failed")
		case metaInfo != nil:
			parseMetaplexData(metaInfo.Data, meta)
		}
	}

	if s.cache != nil {
		s.cache.Put(ctx, mint, *meta)
	}
	return meta, nil
}

// supplyFallback fills supply and decimals from getTokenSupply.
func (s *MetadataSource) supplyFallback(ctx context.Context, meta *MintMetadata) error {
	amount, err := s.rpc.GetTokenSupply(ctx, meta.Mint)
	if err != nil {
		return err
	}
	if amount == nil {
		return ErrMintNotFound
	}

	supply := amount.UIAmount
	if amount.UIAmountString != "" {
		if v, err := strconv.ParseFloat(amount.UIAmountString, 64); err == nil {
			supply = v
		}
	}
	meta.Decimals = amount.Decimals
	meta.Supply = supply
	return nil
}

// parseMintData parses SPL Token Mint account data.
// SPL Token Mint layout (82 bytes):
// - mintAuthority: Option<Pubkey> (36 bytes: 4 + 32)
// - supply: u64 (8 bytes)
// - decimals: u8 (1 byte)
// - isInitialized: bool (1 byte)
// - freezeAuthority: Option<Pubkey> (36 bytes: 4 + 32)
func parseMintData(data string, meta *MintMetadata) error {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("decode mint data: %w", err)
	}

	if len(decoded) < 82 {
		return fmt.Errorf("mint data too short: %d", len(decoded))
	}

	supply := binary.LittleEndian.Uint64(decoded[36:44])
	decimals := int(decoded[44])

	meta.Decimals = decimals
	meta.Supply = float64(supply) / math.Pow(10, float64(decimals))
	return nil
}

// parseMetaplexData parses Metaplex Token Metadata account data.
// Layout:
// - key: u8 (4 for MetadataV1)
// - updateAuthority: Pubkey (32 bytes)
// - mint: Pubkey (32 bytes)
// - name: borsh String (4 + len)
// - symbol: borsh String (4 + len)
// Malformed data leaves meta untouched.
func parseMetaplexData(data string, meta *MintMetadata) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return
	}

	if len(decoded) < 100 || decoded[0] != 4 {
		return
	}

	offset := 65

	name, offset, ok := readBorshString(decoded, offset, 100)
	if !ok {
		return
	}
	symbol, _, ok := readBorshString(decoded, offset, 20)
	if !ok {
		return
	}

	meta.Name = name
	meta.Symbol = symbol
}

// readBorshString reads a u32-length-prefixed string with a length cap and
// trims the null padding Metaplex uses.
func readBorshString(b []byte, offset, maxLen int) (string, int, bool) {
	if offset+4 > len(b) {
		return "", offset, false
	}
	n := int(binary.LittleEndian.Uint32(b[offset:]))
	offset += 4
	if n > maxLen || offset+n > len(b) {
		return "", offset, false
	}
	s := strings.TrimRight(string(b[offset:offset+n]), "\x00")
	return s, offset + n, true
}
