package pocket

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// Restore batch tuning, per NUT-13 gap-limit convention.
const (
	restoreBatchSize          = 100
	emptyResponsesBeforeAbort = 3
)

// RestoreKeyset walks one keyset's derivation indices from its persisted
// counter, recovering proofs the mint still recognizes without any local
// history. The persisted counter only ever advances by a full batch stride
// on a non-empty batch — never by the count of proofs actually recovered —
// so a gap of unused indices inside a hit batch is never re-derived, but an
// empty tail past the last hit is never persisted either.
func RestoreKeyset(ctx context.Context, logger *slog.Logger, client MintClient, repo ProofRepository,
	master *hdkeychain.ExtendedKey, keysetId string) (int, error) {

	keys, err := client.GetKeyset(ctx, keysetId)
	if err != nil {
		return 0, err
	}

	checkpoint, err := repo.Counter(ctx, keysetId)
	if err != nil {
		return 0, err
	}
	liveCursor := checkpoint

	var totalRecovered int
	emptyStreak := 0

	for emptyStreak < emptyResponsesBeforeAbort {
		batchStart := liveCursor
		batch, err := derivePreMintRange(master, keysetId, batchStart, restoreBatchSize)
		if err != nil {
			return totalRecovered, err
		}

		returnedOutputs, sigs, err := client.Restore(ctx, batch.Outputs())
		if err != nil {
			return totalRecovered, err
		}

		if len(returnedOutputs) == 0 {
			emptyStreak++
			liveCursor = batchStart + restoreBatchSize
			continue
		}
		emptyStreak = 0

		// Walk both sequences in the same order, advancing the premint
		// cursor until its blinded message matches the mint's echoed one —
		// the mint may have fewer entries than sent.
		matched := make(PreMintBatch, 0, len(returnedOutputs))
		bi := 0
		for _, out := range returnedOutputs {
			for bi < len(batch) && batch[bi].BlindedMessage.B_ != out.B_ {
				bi++
			}
			if bi >= len(batch) {
				logger.Warn("restore: returned output did not match any premint entry, dropping", "keyset_id", keysetId)
				continue
			}
			matched = append(matched, batch[bi])
			bi++
		}

		proofs := unblindProofs(logger, keysetId, keys, sigs, matched)
		ys := make([]string, len(proofs))
		for i, p := range proofs {
			ys[i] = mustY(p)
		}
		states, err := client.CheckState(ctx, ys)
		if err != nil {
			return totalRecovered, err
		}

		for i, p := range proofs {
			y := ys[i]
			var storeErr error
			switch states[y] {
			case MintSpent:
				continue
			case MintPending:
				_, storeErr = repo.StorePendingSpent(ctx, p)
			default: // MintUnspent, or unreported: treat as recoverable
				_, storeErr = repo.StoreNew(ctx, p)
			}
			if storeErr != nil {
				logger.Error("restore: failed to store recovered proof", "y", y, "err", storeErr)
				continue
			}
			totalRecovered++
		}

		newCheckpoint := batchStart + restoreBatchSize
		if err := repo.IncrementCounter(ctx, keysetId, checkpoint, newCheckpoint-checkpoint); err != nil {
			return totalRecovered, err
		}
		checkpoint = newCheckpoint
		liveCursor = checkpoint
	}

	return totalRecovered, nil
}

// RestoreLocalProofs runs RestoreKeyset over every keyset of this pocket's
// unit named in infos.
func (c *Credit) RestoreLocalProofs(ctx context.Context, infos map[string]KeysetInfo) (int, error) {
	var total int
	for kid, info := range infos {
		if info.Unit != c.unit {
			continue
		}
		n, err := RestoreKeyset(ctx, c.logger, c.client, c.repo, c.master, kid)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (d *Debit) RestoreLocalProofs(ctx context.Context, infos map[string]KeysetInfo) (int, error) {
	var total int
	for kid, info := range infos {
		if info.Unit != d.unit {
			continue
		}
		n, err := RestoreKeyset(ctx, d.logger, d.client, d.repo, d.master, kid)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
