package pocket

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/google/uuid"

	"github.com/bitcr-wallet/pocket/cashu"
)

// SendReference is the ephemeral, single-cell state a prepare_send installs
// and a send_proofs consumes. At most one is outstanding per pocket; a new
// prepare overwrites whatever was there.
type SendReference struct {
	RequestId string
	SendYs    []string

	HasSwap    bool
	SwapY      string
	SwapAmount uint64
}

// PocketSummary is what prepare_send hands back to the caller.
type PocketSummary struct {
	RequestId string
	Target    uint64
}

// RedemptionSummary projects a credit keyset's balance onto its redemption
// date (final_expiry plus the caller's payment window).
type RedemptionSummary struct {
	Timestamp uint64
	Amount    uint64
}

// base holds what every pocket variant needs regardless of Credit/Debit
// semantics: the repository handle, the mint client, the shared read-only
// xpriv, and the current_send single-cell lock.
type base struct {
	unit   string
	repo   ProofRepository
	client MintClient
	master *hdkeychain.ExtendedKey
	logger *slog.Logger

	mu      sync.Mutex
	current *SendReference
}

func (b *base) balance(ctx context.Context) (uint64, error) {
	unspent, err := b.repo.ListUnspent(ctx)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, p := range unspent {
		total += p.Amount
	}
	return total, nil
}

func (b *base) cleanLocalProofs(ctx context.Context) ([]string, error) {
	ys, err := b.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(ys) == 0 {
		return nil, nil
	}
	states, err := b.client.CheckState(ctx, ys)
	if err != nil {
		return nil, err
	}

	var deleted []string
	for _, y := range ys {
		if states[y] != MintSpent {
			continue
		}
		if err := b.repo.DeleteProof(ctx, y); err != nil {
			b.logger.Error("clean_local_proofs: failed to delete confirmed-spent proof", "y", y, "err", err)
			continue
		}
		deleted = append(deleted, y)
	}
	return deleted, nil
}

// receiveProofs is the shared receive_proofs shape: validate, stash
// inputs PendingSpent so a partial digest never double-credits, then digest.
func (b *base) receiveProofs(ctx context.Context, proofs cashu.Proofs,
	validate func(cashu.Proofs) error, targetKeysetFor func(string) string) (uint64, []string, error) {

	if err := validate(proofs); err != nil {
		return 0, nil, err
	}
	for _, p := range proofs {
		if _, err := b.repo.StorePendingSpent(ctx, p); err != nil {
			return 0, nil, err
		}
	}
	return digestProofs(ctx, b.logger, b.client, b.repo, b.master, proofs, targetKeysetFor)
}

// prepareSend installs the SendReference produced by the variant's
// selection, overwriting whatever was previously outstanding.
func (b *base) prepareSend(target uint64, sendYs []string, swapY string, swapAmount uint64, hasSwap bool) PocketSummary {
	ref := &SendReference{
		RequestId:  uuid.NewString(),
		SendYs:     sendYs,
		HasSwap:    hasSwap,
		SwapY:      swapY,
		SwapAmount: swapAmount,
	}
	b.mu.Lock()
	b.current = ref
	b.mu.Unlock()
	return PocketSummary{RequestId: ref.RequestId, Target: target}
}

// sendProofs atomically takes-or-fails the current_send slot, marks the
// listed proofs PendingSpent, and — if a swap fragment was selected — cuts
// it to the exact remainder via swapProofToTarget. The returned map always
// sums to exactly the prepared target.
func (b *base) sendProofs(ctx context.Context, rid string) (map[string]cashu.Proof, error) {
	b.mu.Lock()
	ref := b.current
	if ref == nil || ref.RequestId != rid {
		b.mu.Unlock()
		return nil, &NoPrepareRefError{RequestId: rid}
	}
	b.current = nil
	b.mu.Unlock()

	result := make(map[string]cashu.Proof, len(ref.SendYs)+1)
	for _, y := range ref.SendYs {
		proof, err := b.repo.MarkAsPendingSpent(ctx, y)
		if err != nil {
			return nil, err
		}
		result[y] = proof
	}

	if ref.HasSwap {
		proof, err := b.repo.MarkAsPendingSpent(ctx, ref.SwapY)
		if err != nil {
			return nil, err
		}
		fragments, err := swapProofToTarget(ctx, b.logger, b.client, b.repo, b.master, proof, proof.Id, ref.SwapAmount)
		if err != nil {
			return nil, err
		}
		for _, f := range fragments {
			result[mustY(f)] = f
		}
	}

	return result, nil
}

// yProof pairs a repository key with its proof for selection purposes.
type yProof struct {
	y     string
	proof cashu.Proof
}

// selectForTarget implements the shared greedy selection rule: add
// whole candidates, in the given order, until the accumulated amount would
// equal or exceed target; the first candidate that would overshoot becomes
// the swap fragment, sized to the exact remainder. Fails InsufficientFunds
// if the candidates can't reach target at all.
func selectForTarget(candidates []yProof, target uint64) ([]string, string, uint64, bool, error) {
	var sendYs []string
	var accumulated uint64

	for _, c := range candidates {
		if accumulated >= target {
			break
		}
		if accumulated+c.proof.Amount <= target {
			sendYs = append(sendYs, c.y)
			accumulated += c.proof.Amount
			continue
		}
		remainder := target - accumulated
		return sendYs, c.y, remainder, true, nil
	}

	if accumulated < target {
		return nil, "", 0, false, ErrInsufficientFunds
	}
	return sendYs, "", 0, false, nil
}

// sortYProofsByAmount orders candidates ascending by amount: smallest-first
// coin selection maximizes the chance of an exact match with no swap
// fragment needed.
func sortYProofsByAmount(candidates []yProof) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].proof.Amount < candidates[j].proof.Amount
	})
}
