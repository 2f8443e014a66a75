package wallet_test

import (
	"encoding/hex"
	"testing"

	"github.com/bitcr-wallet/pocket/cashu"
	"github.com/bitcr-wallet/pocket/wallet"
)

func tokenProofs() cashu.Proofs {
	fakePoint := make([]byte, 33)
	fakePoint[0] = 0x02
	return cashu.Proofs{
		{Amount: 4, Id: "00deadbeefcafe01", Secret: "s1", C: hex.EncodeToString(fakePoint)},
	}
}

// Each pocket encodes under its V4 prefix (cashuB for debit, bitcrB for
// credit), that prefix decodes back to the same pocket, and the body
// round-trips through the shared cashuB machinery regardless of which prefix
// wraps it.
func TestEncodeTokenPrefixByPocket(t *testing.T) {
	tests := []struct {
		pocket   wallet.Pocket
		expected string
	}{
		{wallet.PocketDebit, "cashuB"},
		{wallet.PocketCredit, "bitcrB"},
	}

	for _, test := range tests {
		token, err := wallet.EncodeToken(test.pocket, tokenProofs(), "http://mint.example", "sat", "", false)
		if err != nil {
			t.Fatalf("encode failed for pocket %v: %v", test.pocket, err)
		}
		if token[:6] != test.expected {
			t.Fatalf("expected prefix %q, got %q", test.expected, token[:6])
		}

		decoded, err := wallet.DecodeToken(token)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if decoded.Pocket != test.pocket {
			t.Fatalf("expected pocket %v, got %v", test.pocket, decoded.Pocket)
		}
		if decoded.Token.Amount() != 4 {
			t.Fatalf("expected amount 4, got %d", decoded.Token.Amount())
		}
	}
}

func TestDecodeTokenUnknownPrefixRejected(t *testing.T) {
	_, err := wallet.DecodeToken("sathuBsomejunkafterprefix")
	if err == nil {
		t.Fatal("expected error for unrecognized prefix")
	}
}

func TestDecodeTokenTooShortRejected(t *testing.T) {
	_, err := wallet.DecodeToken("cash")
	if err == nil {
		t.Fatal("expected error for too-short token string")
	}
}
