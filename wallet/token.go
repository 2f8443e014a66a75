package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/bitcr-wallet/pocket/cashu"
)

// Pocket distinguishes which of the wallet's two pockets a token belongs to.
// It governs the token prefix: debit tokens round-trip as the standard
// cashuA/cashuB prefixes, credit tokens use the bitcrA/bitcrB prefixes so a
// receiving wallet can route straight to the right pocket without first
// decoding the body.
type Pocket int

const (
	PocketDebit Pocket = iota
	PocketCredit
)

const prefixLen = 6

var tokenPrefixes = map[Pocket][2]string{
	PocketDebit:  {"cashuA", "cashuB"},
	PocketCredit: {"bitcrA", "bitcrB"},
}

// EncodeToken serializes proofs as a V4 (CBOR) token under the prefix that
// matches pocket — cashuB for debit, bitcrB for credit. Unit round-trips
// verbatim; it is never normalized in case or otherwise rewritten.
func EncodeToken(pocket Pocket, proofs cashu.Proofs, mintURL, unit, memo string, includeDLEQ bool) (string, error) {
	prefixes, ok := tokenPrefixes[pocket]
	if !ok {
		return "", fmt.Errorf("unknown pocket %d", pocket)
	}

	token, err := buildTokenV4(proofs, mintURL, unit, memo, includeDLEQ)
	if err != nil {
		return "", err
	}
	serialized, err := token.Serialize()
	if err != nil {
		return "", err
	}
	return prefixes[1] + serialized[prefixLen:], nil
}

// buildTokenV4 converts proofs into a V4 token with no Sat-only unit
// restriction — the pocket engine's units are caller-defined strings, not a
// fixed enum.
func buildTokenV4(proofs cashu.Proofs, mintURL, unit, memo string, includeDLEQ bool) (cashu.TokenV4, error) {
	if !includeDLEQ {
		for i := range proofs {
			proofs[i].DLEQ = nil
		}
	}
	return proofsToTokenV4(proofs, mintURL, unit, memo)
}

// proofsToTokenV4 groups proofs by keyset id into the per-keyset ProofV4
// layout the V4 wire format requires.
func proofsToTokenV4(proofs cashu.Proofs, mintURL, unit, memo string) (cashu.TokenV4, error) {
	proofsMap := make(map[string][]cashu.ProofV4)
	for _, proof := range proofs {
		C, err := hex.DecodeString(proof.C)
		if err != nil {
			return cashu.TokenV4{}, fmt.Errorf("invalid C: %w", err)
		}
		proofV4 := cashu.ProofV4{
			Amount:  proof.Amount,
			Secret:  proof.Secret,
			C:       C,
			Witness: proof.Witness,
		}
		if proof.DLEQ != nil {
			e, err := hex.DecodeString(proof.DLEQ.E)
			if err != nil {
				return cashu.TokenV4{}, fmt.Errorf("invalid e in DLEQ proof: %w", err)
			}
			s, err := hex.DecodeString(proof.DLEQ.S)
			if err != nil {
				return cashu.TokenV4{}, fmt.Errorf("invalid s in DLEQ proof: %w", err)
			}
			r, err := hex.DecodeString(proof.DLEQ.R)
			if err != nil {
				return cashu.TokenV4{}, fmt.Errorf("invalid r in DLEQ proof: %w", err)
			}
			proofV4.DLEQ = &cashu.DLEQV4{E: e, S: s, R: r}
		}
		proofsMap[proof.Id] = append(proofsMap[proof.Id], proofV4)
	}

	tokenProofs := make([]cashu.TokenV4Proof, 0, len(proofsMap))
	for kid, v := range proofsMap {
		keysetIdBytes, err := hex.DecodeString(kid)
		if err != nil {
			return cashu.TokenV4{}, fmt.Errorf("invalid keyset id: %w", err)
		}
		tokenProofs = append(tokenProofs, cashu.TokenV4Proof{Id: keysetIdBytes, Proofs: v})
	}

	return cashu.TokenV4{MintURL: mintURL, Unit: unit, Memo: memo, TokenProofs: tokenProofs}, nil
}

// DecodedToken is what DecodeToken hands back: the parsed token plus which
// pocket its prefix names, so the caller never has to inspect the prefix
// string itself.
type DecodedToken struct {
	Pocket Pocket
	Token  cashu.Token
}

// DecodeToken accepts any of the four prefixes. cashuA/bitcrA (V3, JSON) are
// decode-only — this wallet never mints them — cashuB/bitcrB (V4, CBOR) are
// encoded and decoded both ways.
func DecodeToken(tokenstr string) (DecodedToken, error) {
	if len(tokenstr) < prefixLen {
		return DecodedToken{}, fmt.Errorf("invalid token: too short")
	}
	prefix := tokenstr[:prefixLen]

	pocket, canonical, ok := canonicalPrefix(prefix)
	if !ok {
		return DecodedToken{}, &UnsupportedTokenError{Prefix: prefix}
	}
	rewritten := canonical + tokenstr[prefixLen:]

	switch canonical {
	case "cashuB":
		token, err := cashu.DecodeTokenV4(rewritten)
		if err != nil {
			return DecodedToken{}, err
		}
		return DecodedToken{Pocket: pocket, Token: *token}, nil
	case "cashuA":
		token, err := cashu.DecodeTokenV3(rewritten)
		if err != nil {
			return DecodedToken{}, err
		}
		return DecodedToken{Pocket: pocket, Token: *token}, nil
	default:
		return DecodedToken{}, &UnsupportedTokenError{Prefix: prefix}
	}
}

func canonicalPrefix(prefix string) (Pocket, string, bool) {
	switch prefix {
	case "cashuA":
		return PocketDebit, "cashuA", true
	case "cashuB":
		return PocketDebit, "cashuB", true
	case "bitcrA":
		return PocketCredit, "cashuA", true
	case "bitcrB":
		return PocketCredit, "cashuB", true
	default:
		return 0, "", false
	}
}
