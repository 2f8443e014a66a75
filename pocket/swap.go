package pocket

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/bitcr-wallet/pocket/cashu"
	"github.com/bitcr-wallet/pocket/crypto"
)

// unblindProofs zips signatures with premint entries positionally. A
// mismatch on any single pair is logged and the pair dropped — it never
// aborts the surrounding batch.
func unblindProofs(logger *slog.Logger, keysetId string, keys crypto.PublicKeys, sigs cashu.BlindedSignatures, premints PreMintBatch) cashu.Proofs {
	n := len(sigs)
	if len(premints) < n {
		n = len(premints)
	}

	proofs := make(cashu.Proofs, 0, n)
	for i := 0; i < n; i++ {
		sig := sigs[i]
		pm := premints[i]

		if sig.Id != keysetId || pm.KeysetId != keysetId {
			logger.Warn("unblind: keyset id mismatch, dropping", "keyset_id", keysetId, "sig_id", sig.Id, "premint_id", pm.KeysetId)
			continue
		}
		if pm.Amount != 0 && sig.Amount != pm.Amount {
			logger.Warn("unblind: amount mismatch, dropping", "keyset_id", keysetId, "premint_amount", pm.Amount, "sig_amount", sig.Amount)
			continue
		}
		pubkey, ok := keys[sig.Amount]
		if !ok {
			logger.Warn("unblind: no key for signature amount, dropping", "keyset_id", keysetId, "amount", sig.Amount)
			continue
		}

		C_bytes, err := hex.DecodeString(sig.C_)
		if err != nil {
			logger.Warn("unblind: invalid signature point, dropping", "err", err)
			continue
		}
		C_, err := secp256k1.ParsePubKey(C_bytes)
		if err != nil {
			logger.Warn("unblind: invalid signature point, dropping", "err", err)
			continue
		}

		C := crypto.UnblindSignature(C_, pm.BlindingFactor, pubkey)
		proofs = append(proofs, cashu.Proof{
			Amount: sig.Amount,
			Id:     keysetId,
			Secret: pm.Secret,
			C:      hex.EncodeToString(C.SerializeCompressed()),
		})
	}
	return proofs
}

// swap flattens blinded outputs preserving order within each keyset, posts
// one swap request, groups returned signatures back by keyset id, unblinds
// and stores each resulting proof as Unspent. Per-proof store failures are
// logged, not propagated — the counter was already advanced, so partial
// success is accepted rather than rolled back.
func swap(ctx context.Context, logger *slog.Logger, client MintClient, repo ProofRepository,
	inputs cashu.Proofs, premintsByKid map[string]PreMintBatch, keysetsByKid map[string]crypto.PublicKeys) (uint64, error) {

	kids := make([]string, 0, len(premintsByKid))
	for kid := range premintsByKid {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	var outputs cashu.BlindedMessages
	for _, kid := range kids {
		outputs = append(outputs, premintsByKid[kid].Outputs()...)
	}

	sigs, err := client.Swap(ctx, inputs, outputs)
	if err != nil {
		return 0, fmt.Errorf("swap request failed: %w", err)
	}

	var total uint64
	idx := 0
	for _, kid := range kids {
		n := len(premintsByKid[kid])
		if idx+n > len(sigs) {
			n = len(sigs) - idx
			if n < 0 {
				n = 0
			}
		}
		groupSigs := sigs[idx : idx+n]
		idx += n

		proofs := unblindProofs(logger, kid, keysetsByKid[kid], groupSigs, premintsByKid[kid])
		for _, p := range proofs {
			if _, err := repo.StoreNew(ctx, p); err != nil {
				logger.Error("swap: failed to store resulting proof", "keyset_id", kid, "err", err)
				continue
			}
			total += p.Amount
		}
	}

	return total, nil
}

// digestProofs is the shared Credit/Debit digest protocol: group
// inputs by keyset id, derive a premint batch per group under the caller's
// chosen target keyset, CAS-advance the counter, fetch any unseen keysets,
// post one combined swap, and report total stored plus the consumed input
// ys. If a counter CAS fails mid-way the operation aborts with a conflict
// error and the caller's inputs remain PendingSpent for a retry.
func digestProofs(ctx context.Context, logger *slog.Logger, client MintClient, repo ProofRepository,
	master *hdkeychain.ExtendedKey, inputs cashu.Proofs, targetKeysetFor func(inputKeysetId string) string) (uint64, []string, error) {

	groups := make(map[string]cashu.Proofs)
	groupOrder := make([]string, 0)
	for _, p := range inputs {
		if _, ok := groups[p.Id]; !ok {
			groupOrder = append(groupOrder, p.Id)
		}
		groups[p.Id] = append(groups[p.Id], p)
	}
	sort.Strings(groupOrder)

	premintsByKid := make(map[string]PreMintBatch)
	for _, inputKid := range groupOrder {
		group := groups[inputKid]
		targetKid := targetKeysetFor(inputKid)
		amounts := cashu.AmountSplit(group.Amount())

		counter, err := repo.Counter(ctx, targetKid)
		if err != nil {
			return 0, nil, err
		}
		batch, err := DerivePreMintBatch(master, targetKid, counter, amounts)
		if err != nil {
			return 0, nil, err
		}
		if err := repo.IncrementCounter(ctx, targetKid, counter, uint32(len(amounts))); err != nil {
			return 0, nil, fmt.Errorf("%w: keyset %s", err, targetKid)
		}
		premintsByKid[targetKid] = append(premintsByKid[targetKid], batch...)
	}

	keysetsByKid := make(map[string]crypto.PublicKeys)
	for kid := range premintsByKid {
		keys, err := client.GetKeyset(ctx, kid)
		if err != nil {
			return 0, nil, err
		}
		keysetsByKid[kid] = keys
	}

	total, err := swap(ctx, logger, client, repo, inputs, premintsByKid, keysetsByKid)
	if err != nil {
		return 0, nil, err
	}

	ys := make([]string, len(inputs))
	for i, p := range inputs {
		ys[i] = mustY(p)
	}
	return total, ys, nil
}

// swapProofToTarget converts one proof into a set summing exactly to
// targetAmount under targetKeysetId: the split covers the full proof
// amount, the surplus ("change of change") stays Unspent, and the
// fragments that sum to target are stored PendingSpent since they are
// earmarked for an in-flight send.
func swapProofToTarget(ctx context.Context, logger *slog.Logger, client MintClient, repo ProofRepository,
	master *hdkeychain.ExtendedKey, proof cashu.Proof, targetKeysetId string, targetAmount uint64) (cashu.Proofs, error) {

	if targetAmount > proof.Amount {
		return nil, fmt.Errorf("%w: target %d exceeds proof amount %d", ErrInsufficientFunds, targetAmount, proof.Amount)
	}

	amounts := append(cashu.AmountSplit(targetAmount), cashu.AmountSplit(proof.Amount-targetAmount)...)

	counter, err := repo.Counter(ctx, targetKeysetId)
	if err != nil {
		return nil, err
	}
	batch, err := DerivePreMintBatch(master, targetKeysetId, counter, amounts)
	if err != nil {
		return nil, err
	}
	if err := repo.IncrementCounter(ctx, targetKeysetId, counter, uint32(len(amounts))); err != nil {
		return nil, fmt.Errorf("%w: keyset %s", err, targetKeysetId)
	}

	sigs, err := client.Swap(ctx, cashu.Proofs{proof}, batch.Outputs())
	if err != nil {
		return nil, fmt.Errorf("swap-to-target request failed: %w", err)
	}

	keys, err := client.GetKeyset(ctx, targetKeysetId)
	if err != nil {
		return nil, err
	}

	proofs := unblindProofs(logger, targetKeysetId, keys, sigs, batch)
	sortProofsDescending(proofs)

	// Largest-feasible-fit: take each proof, largest first, unless it would
	// overshoot the target — this is what actually converges on an exact
	// subset sum for a canonical (non-repeating per side) binary split,
	// where blindly taking every proof under target would not.
	var onTarget, extras cashu.Proofs
	var accumulated uint64
	for _, p := range proofs {
		if accumulated+p.Amount <= targetAmount {
			onTarget = append(onTarget, p)
			accumulated += p.Amount
		} else {
			extras = append(extras, p)
		}
	}
	if accumulated != targetAmount {
		return nil, fmt.Errorf("%w: swap-to-target could not reach exact amount %d (got %d)", ErrInternalInvariant, targetAmount, accumulated)
	}

	for _, p := range extras {
		if _, err := repo.StoreNew(ctx, p); err != nil {
			logger.Error("swap-to-target: failed to store change proof", "err", err)
		}
	}
	for _, p := range onTarget {
		if _, err := repo.StorePendingSpent(ctx, p); err != nil {
			logger.Error("swap-to-target: failed to store on-target proof", "err", err)
		}
	}

	return onTarget, nil
}
