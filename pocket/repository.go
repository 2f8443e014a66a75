package pocket

import (
	"context"

	"github.com/bitcr-wallet/pocket/cashu"
	"github.com/bitcr-wallet/pocket/crypto"
)

// ProofRepository is the single source of truth for one pocket's proof
// state and per-keyset derivation counters. Every method is one atomic
// operation; implementations durable or in-memory must honor the CAS
// contract on IncrementCounter identically (see store/memory and
// store/bolt).
type ProofRepository interface {
	StoreNew(ctx context.Context, proof cashu.Proof) (string, error)
	StorePendingSpent(ctx context.Context, proof cashu.Proof) (string, error)
	LoadProof(ctx context.Context, y string) (StoredProof, error)
	DeleteProof(ctx context.Context, y string) error

	ListUnspent(ctx context.Context) (map[string]cashu.Proof, error)
	ListPending(ctx context.Context) (map[string]cashu.Proof, error)
	ListReserved(ctx context.Context) (map[string]cashu.Proof, error)
	ListAll(ctx context.Context) ([]string, error)

	// MarkAsPendingSpent transitions a proof from Unspent to PendingSpent.
	// Fails InvalidProofState if the proof is not currently Unspent.
	MarkAsPendingSpent(ctx context.Context, y string) (cashu.Proof, error)

	Counter(ctx context.Context, keysetId string) (uint32, error)
	// IncrementCounter is the CAS linearization point for derivation:
	// succeeds only if the stored counter equals old.
	IncrementCounter(ctx context.Context, keysetId string, old, delta uint32) error
}

// MintClient is the synchronous remote interface to one mint. No caching
// happens here; every call is one HTTP round trip.
type MintClient interface {
	GetKeysets(ctx context.Context) ([]KeysetInfo, error)
	GetKeyset(ctx context.Context, id string) (crypto.PublicKeys, error)
	Swap(ctx context.Context, inputs cashu.Proofs, outputs cashu.BlindedMessages) (cashu.BlindedSignatures, error)
	CheckState(ctx context.Context, ys []string) (map[string]MintProofState, error)
	Restore(ctx context.Context, outputs cashu.BlindedMessages) (cashu.BlindedMessages, cashu.BlindedSignatures, error)
}

// MintProofState is the mint's NUT-07 answer for one y: narrower than the
// wallet-local ProofState lattice (no PendingSpent/Reserved, those are
// purely local bookkeeping).
type MintProofState int

const (
	MintUnspent MintProofState = iota
	MintPending
	MintSpent
)
