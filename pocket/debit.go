package pocket

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/bitcr-wallet/pocket/cashu"
)

// Debit is the fungible pocket variant: proofs are freely swapped toward
// the single active, fee-free keyset of the matching unit.
type Debit struct {
	base
}

func NewDebit(unit string, repo ProofRepository, client MintClient, master *hdkeychain.ExtendedKey, logger *slog.Logger) *Debit {
	return &Debit{base: base{unit: unit, repo: repo, client: client, master: master, logger: logger}}
}

func (d *Debit) Unit() string { return d.unit }

func (d *Debit) Balance(ctx context.Context) (uint64, error) { return d.balance(ctx) }

// findActiveKeyset picks the sole consolidation target: the one active,
// fee-free keyset matching this pocket's unit.
func (d *Debit) findActiveKeyset(infos map[string]KeysetInfo) (string, error) {
	for kid, info := range infos {
		if info.Unit == d.unit && info.Active && info.InputFeePpk == 0 {
			return kid, nil
		}
	}
	return "", ErrNoActiveKeyset
}

func (d *Debit) validateKeysets(proofs cashu.Proofs, infos map[string]KeysetInfo) error {
	for _, p := range proofs {
		info, ok := infos[p.Id]
		if !ok {
			return &UnknownKeysetIdError{KeysetId: p.Id}
		}
		if info.Unit != d.unit {
			return &CurrencyUnitMismatchError{Expected: d.unit, Got: info.Unit}
		}
		if info.InputFeePpk != 0 {
			return ErrFeesUnsupported
		}
	}
	return nil
}

// ReceiveProofs accepts proofs from any keyset of the matching unit — active
// or not — and always consolidates the digest into the single active
// keyset, unlike Credit which keeps proofs under their originating keyset.
func (d *Debit) ReceiveProofs(ctx context.Context, infos map[string]KeysetInfo, proofs cashu.Proofs) (uint64, []string, error) {
	target, err := d.findActiveKeyset(infos)
	if err != nil {
		return 0, nil, err
	}
	return d.receiveProofs(ctx, proofs,
		func(p cashu.Proofs) error { return d.validateKeysets(p, infos) },
		func(string) string { return target },
	)
}

// PrepareSend draws candidates from every Unspent proof of this pocket's
// unit, smallest-amount-first, with no keyset ordering since debit holds
// only the one active keyset's worth of fungible value.
func (d *Debit) PrepareSend(ctx context.Context, target uint64, infos map[string]KeysetInfo) (PocketSummary, error) {
	unspent, err := d.repo.ListUnspent(ctx)
	if err != nil {
		return PocketSummary{}, err
	}

	var candidates []yProof
	for y, proof := range unspent {
		info, ok := infos[proof.Id]
		if !ok || info.Unit != d.unit {
			continue
		}
		candidates = append(candidates, yProof{y: y, proof: proof})
	}
	sortYProofsByAmount(candidates)

	sendYs, swapY, swapAmount, hasSwap, err := selectForTarget(candidates, target)
	if err != nil {
		return PocketSummary{}, err
	}
	return d.prepareSend(target, sendYs, swapY, swapAmount, hasSwap), nil
}

func (d *Debit) SendProofs(ctx context.Context, rid string) (map[string]cashu.Proof, error) {
	return d.sendProofs(ctx, rid)
}

func (d *Debit) CleanLocalProofs(ctx context.Context) ([]string, error) {
	return d.cleanLocalProofs(ctx)
}

// ReclaimProofs returns an amount only — debit draws no distinction between
// reclaimable and redeemable, since every debit keyset is perpetual.
func (d *Debit) ReclaimProofs(ctx context.Context, infos map[string]KeysetInfo) (uint64, error) {
	pending, err := d.repo.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ys := make([]string, 0, len(pending))
	for y := range pending {
		ys = append(ys, y)
	}
	states, err := d.client.CheckState(ctx, ys)
	if err != nil {
		return 0, err
	}

	var reclaimable cashu.Proofs
	for y, proof := range pending {
		if states[y] == MintUnspent {
			reclaimable = append(reclaimable, proof)
		}
	}
	if len(reclaimable) == 0 {
		return 0, nil
	}

	target, err := d.findActiveKeyset(infos)
	if err != nil {
		return 0, err
	}
	total, _, err := digestProofs(ctx, d.logger, d.client, d.repo, d.master, reclaimable, func(string) string { return target })
	return total, err
}
