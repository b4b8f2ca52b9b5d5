package solana

import (
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

const wrappedSOL = "So11111111111111111111111111111111111111112"

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"wrapped sol", wrappedSOL, true},
		{"metaplex program", MetaplexProgramID, true},
		{"empty", "", false},
		{"invalid alphabet", "0OIl", false},
		{"too short", "abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.input)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidAddress) {
				t.Errorf("expected ErrInvalidAddress, got %v", err)
			}
		})
	}
}

func TestDeriveMetadataPDA(t *testing.T) {
	pda, err := DeriveMetadataPDA(wrappedSOL)
	if err != nil {
		t.Fatalf("DeriveMetadataPDA: %v", err)
	}

	raw, err := base58.Decode(pda)
	if err != nil || len(raw) != 32 {
		t.Fatalf("PDA is not a 32-byte key: %s", pda)
	}

	if isOnCurve(raw) {
		t.Error("PDA must be off the ed25519 curve")
	}

	again, _ := DeriveMetadataPDA(wrappedSOL)
	if again != pda {
		t.Error("derivation must be deterministic")
	}
}

func TestDeriveMetadataPDA_InvalidMint(t *testing.T) {
	if _, err := DeriveMetadataPDA("not-base58!"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
}
