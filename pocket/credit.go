package pocket

import (
	"context"
	"log/slog"
	"sort"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/bitcr-wallet/pocket/cashu"
)

// Credit is the time-bounded pocket variant: proofs belong to keysets that
// carry a final_expiry, and once a keyset inactivates its proofs must be
// redeemed into debit rather than swapped onward.
type Credit struct {
	base
}

func NewCredit(unit string, repo ProofRepository, client MintClient, master *hdkeychain.ExtendedKey, logger *slog.Logger) *Credit {
	return &Credit{base: base{unit: unit, repo: repo, client: client, master: master, logger: logger}}
}

func (c *Credit) Unit() string { return c.unit }

func (c *Credit) Balance(ctx context.Context) (uint64, error) { return c.balance(ctx) }

// validateKeysets enforces matching unit, currently active, and
// fee-free. Credit proofs from inactivated keysets belong in redemption,
// not receive_proofs.
func (c *Credit) validateKeysets(proofs cashu.Proofs, infos map[string]KeysetInfo) error {
	for _, p := range proofs {
		info, ok := infos[p.Id]
		if !ok {
			return &UnknownKeysetIdError{KeysetId: p.Id}
		}
		if info.Unit != c.unit {
			return &CurrencyUnitMismatchError{Expected: c.unit, Got: info.Unit}
		}
		if !info.Active {
			return &InactiveKeysetError{KeysetId: p.Id}
		}
		if info.InputFeePpk != 0 {
			return ErrFeesUnsupported
		}
	}
	return nil
}

func (c *Credit) ReceiveProofs(ctx context.Context, infos map[string]KeysetInfo, proofs cashu.Proofs) (uint64, []string, error) {
	return c.receiveProofs(ctx, proofs,
		func(p cashu.Proofs) error { return c.validateKeysets(p, infos) },
		func(inputKid string) string { return inputKid }, // credit consolidates within the same keyset
	)
}

// PrepareSend selects proofs soonest-expiring keyset first: among
// active same-unit keysets, sort ascending by final_expiry (none sorts
// last), then within a keyset smallest-amount-first.
func (c *Credit) PrepareSend(ctx context.Context, target uint64, infos map[string]KeysetInfo) (PocketSummary, error) {
	unspent, err := c.repo.ListUnspent(ctx)
	if err != nil {
		return PocketSummary{}, err
	}

	byKeyset := make(map[string][]yProof)
	for y, proof := range unspent {
		info, ok := infos[proof.Id]
		if !ok || info.Unit != c.unit || !info.Active {
			continue
		}
		byKeyset[proof.Id] = append(byKeyset[proof.Id], yProof{y: y, proof: proof})
	}

	kids := make([]string, 0, len(byKeyset))
	for kid := range byKeyset {
		kids = append(kids, kid)
	}
	sort.SliceStable(kids, func(i, j int) bool {
		fi, fj := infos[kids[i]].FinalExpiry, infos[kids[j]].FinalExpiry
		if fi == nil {
			return false
		}
		if fj == nil {
			return true
		}
		return *fi < *fj
	})

	var candidates []yProof
	for _, kid := range kids {
		group := byKeyset[kid]
		sortYProofsByAmount(group)
		candidates = append(candidates, group...)
	}

	sendYs, swapY, swapAmount, hasSwap, err := selectForTarget(candidates, target)
	if err != nil {
		return PocketSummary{}, err
	}
	return c.prepareSend(target, sendYs, swapY, swapAmount, hasSwap), nil
}

func (c *Credit) SendProofs(ctx context.Context, rid string) (map[string]cashu.Proof, error) {
	return c.sendProofs(ctx, rid)
}

func (c *Credit) CleanLocalProofs(ctx context.Context) ([]string, error) {
	return c.cleanLocalProofs(ctx)
}

// ReclaimProofs lists locally pending proofs, asks the mint, and splits
// mint-Unspent proofs into reclaimable (keyset still active, same unit —
// digested back into Unspent) and redeemable (keyset now inactive —
// returned for the caller to feed into debit).
func (c *Credit) ReclaimProofs(ctx context.Context, infos map[string]KeysetInfo) (uint64, cashu.Proofs, error) {
	pending, err := c.repo.ListPending(ctx)
	if err != nil {
		return 0, nil, err
	}
	if len(pending) == 0 {
		return 0, nil, nil
	}

	ys := make([]string, 0, len(pending))
	for y := range pending {
		ys = append(ys, y)
	}
	states, err := c.client.CheckState(ctx, ys)
	if err != nil {
		return 0, nil, err
	}

	var reclaimable, redeemable cashu.Proofs
	for y, proof := range pending {
		if states[y] != MintUnspent {
			continue
		}
		info, ok := infos[proof.Id]
		if !ok {
			continue
		}
		if info.Active && info.Unit == c.unit {
			reclaimable = append(reclaimable, proof)
		} else if !info.Active {
			redeemable = append(redeemable, proof)
		}
	}

	var total uint64
	if len(reclaimable) > 0 {
		total, _, err = digestProofs(ctx, c.logger, c.client, c.repo, c.master, reclaimable,
			func(inputKid string) string { return inputKid })
		if err != nil {
			return 0, nil, err
		}
	}
	return total, redeemable, nil
}

// GetRedeemableProofs scans Unspent for proofs whose keyset has inactivated;
// each is marked PendingSpent and handed to the caller to receive into debit.
func (c *Credit) GetRedeemableProofs(ctx context.Context, infos map[string]KeysetInfo) (cashu.Proofs, error) {
	unspent, err := c.repo.ListUnspent(ctx)
	if err != nil {
		return nil, err
	}

	var out cashu.Proofs
	for y, proof := range unspent {
		info, ok := infos[proof.Id]
		if !ok || info.Active {
			continue
		}
		if _, err := c.repo.MarkAsPendingSpent(ctx, y); err != nil {
			c.logger.Error("get_redeemable_proofs: failed to mark pending", "y", y, "err", err)
			continue
		}
		out = append(out, proof)
	}
	return out, nil
}

// ListRedemptions buckets Unspent by keyset and projects each keyset with a
// final_expiry onto a redemption timestamp, sorted ascending.
func (c *Credit) ListRedemptions(ctx context.Context, infos map[string]KeysetInfo, paymentWindow uint64) ([]RedemptionSummary, error) {
	unspent, err := c.repo.ListUnspent(ctx)
	if err != nil {
		return nil, err
	}

	amountByKeyset := make(map[string]uint64)
	for _, proof := range unspent {
		amountByKeyset[proof.Id] += proof.Amount
	}

	var summaries []RedemptionSummary
	for kid, amount := range amountByKeyset {
		info, ok := infos[kid]
		if !ok || info.FinalExpiry == nil {
			continue
		}
		summaries = append(summaries, RedemptionSummary{
			Timestamp: *info.FinalExpiry + paymentWindow,
			Amount:    amount,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].Timestamp < summaries[j].Timestamp })
	return summaries, nil
}
