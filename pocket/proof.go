package pocket

import (
	"encoding/hex"
	"fmt"

	"github.com/bitcr-wallet/pocket/cashu"
	"github.com/bitcr-wallet/pocket/crypto"
)

// ProofState is the wallet-local lattice a Proof moves through. It is richer
// than the mint's NUT-07 wire state (Unspent/Pending/Spent): PendingSpent and
// Reserved exist only on this side of the repository.
type ProofState int

const (
	Unspent ProofState = iota
	PendingSpent
	Pending
	Reserved
	Spent
)

func (s ProofState) String() string {
	switch s {
	case Unspent:
		return "unspent"
	case PendingSpent:
		return "pendingspent"
	case Pending:
		return "pending"
	case Reserved:
		return "reserved"
	case Spent:
		return "spent"
	default:
		return "unknown"
	}
}

// KeysetInfo is the mint-published fact sheet this engine reasons about.
// InputFeePpk must be zero for every keyset the engine touches; a nonzero
// fee means the keyset is unusable and callers should treat it as absent.
type KeysetInfo struct {
	Id          string
	Unit        string
	Active      bool
	FinalExpiry *uint64
	InputFeePpk uint32
}

// Y is the deterministic curve point identifying a proof by its secret,
// hex-encoded compressed. Two proofs sharing a Y are the same proof.
func Y(secret string) (string, error) {
	point := crypto.HashToCurve([]byte(secret))
	if point == nil {
		return "", fmt.Errorf("%w: could not hash secret to curve", ErrInternalInvariant)
	}
	return hex.EncodeToString(point.SerializeCompressed()), nil
}

// StoredProof is a Proof plus its repository-local bookkeeping.
type StoredProof struct {
	Proof cashu.Proof
	State ProofState
}

func (sp StoredProof) y() (string, error) {
	return Y(sp.Proof.Secret)
}

// mustY panics only on a secret that can never legally occur (a proof is
// constructed exclusively by this package or unblinded from mint signatures,
// both of which always produce a hashable secret).
func mustY(p cashu.Proof) string {
	y, err := Y(p.Secret)
	if err != nil {
		panic(err)
	}
	return y
}
