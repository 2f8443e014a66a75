package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/bitcr-wallet/pocket/cashu"
	"github.com/bitcr-wallet/pocket/pocket"
)

// Config names the one mint and the two unit strings this wallet's pockets
// are pinned to. A wallet only ever holds proofs against one mint — a
// second mint means a second Wallet.
type Config struct {
	MintURL    string
	DebitUnit  string
	CreditUnit string
}

// Balance reports each pocket's total separately — the two units are not
// fungible with one another, so summing them would be meaningless.
type Balance struct {
	Debit  uint64
	Credit uint64
}

// SendReference is the wallet-level handle prepare_send hands back. It
// wraps the pocket-level request id with which pocket owns it, so send can
// dispatch without the caller ever naming a pocket itself.
type SendReference struct {
	RequestId string
	Pocket    Pocket
	Target    uint64
}

// Wallet composes a Debit and a Credit pocket against one mint, plus the
// transaction log recording every completed send and receive. It holds no
// proof state itself — that lives in whatever ProofRepository each pocket
// was built with — only the bookkeeping needed to dispatch send/receive to
// the right pocket and to choose one when the caller doesn't name one.
type Wallet struct {
	cfg    Config
	client pocket.MintClient
	debit  *pocket.Debit
	credit *pocket.Credit
	txs    TransactionRepository
	logger *slog.Logger

	mu       sync.Mutex
	sendRefs map[string]SendReference
}

// New builds a Wallet from its two proof repositories and a shared
// transaction log. client is the mint binding both pockets share — callers
// pass their own so tests can inject a stub instead of talking HTTP. master
// is the wallet's deterministic xpriv, passed through unchanged to both
// pockets for NUT-13 blinding-factor derivation.
func New(cfg Config, debitRepo, creditRepo pocket.ProofRepository, txs TransactionRepository,
	client pocket.MintClient, master *hdkeychain.ExtendedKey, logger *slog.Logger) *Wallet {

	if logger == nil {
		logger = slog.Default()
	}
	return &Wallet{
		cfg:      cfg,
		client:   client,
		debit:    pocket.NewDebit(cfg.DebitUnit, debitRepo, client, master, logger),
		credit:   pocket.NewCredit(cfg.CreditUnit, creditRepo, client, master, logger),
		txs:      txs,
		logger:   logger,
		sendRefs: make(map[string]SendReference),
	}
}

func (w *Wallet) MintURL() string { return w.cfg.MintURL }

// Debit exposes the underlying debit pocket for callers that need direct
// pocket-level access (restore, low-level inspection).
func (w *Wallet) Debit() *pocket.Debit { return w.debit }

// Credit exposes the underlying credit pocket, symmetric with Debit.
func (w *Wallet) Credit() *pocket.Credit { return w.credit }

// KeysetInfos fetches the mint's current keyset list, keyed by id. Both
// RestoreLocalProofs calls and any other pocket-level operation a caller
// drives directly need this same map.
func (w *Wallet) KeysetInfos(ctx context.Context) (map[string]pocket.KeysetInfo, error) {
	return w.keysetInfos(ctx)
}

func (w *Wallet) keysetInfos(ctx context.Context) (map[string]pocket.KeysetInfo, error) {
	list, err := w.client.GetKeysets(ctx)
	if err != nil {
		return nil, err
	}
	infos := make(map[string]pocket.KeysetInfo, len(list))
	for _, info := range list {
		infos[info.Id] = info
	}
	return infos, nil
}

// Balance sums each pocket's unspent proofs independently.
func (w *Wallet) Balance(ctx context.Context) (Balance, error) {
	debitTotal, err := w.debit.Balance(ctx)
	if err != nil {
		return Balance{}, err
	}
	creditTotal, err := w.credit.Balance(ctx)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Debit: debitTotal, Credit: creditTotal}, nil
}

// PrepareSend selects target's worth of proofs from one pocket without
// moving anything yet. If unit names a pocket's unit, that pocket alone is
// tried. If unit is empty, credit is tried first and debit only on
// insufficient credit funds — credit is time-bounded and should be spent
// down before the perpetual debit balance.
func (w *Wallet) PrepareSend(ctx context.Context, target uint64, unit string) (SendReference, error) {
	infos, err := w.keysetInfos(ctx)
	if err != nil {
		return SendReference{}, err
	}

	var which Pocket
	var summary pocket.PocketSummary

	switch unit {
	case w.cfg.CreditUnit:
		which = PocketCredit
		summary, err = w.credit.PrepareSend(ctx, target, infos)
	case w.cfg.DebitUnit:
		which = PocketDebit
		summary, err = w.debit.PrepareSend(ctx, target, infos)
	case "":
		which = PocketCredit
		summary, err = w.credit.PrepareSend(ctx, target, infos)
		if err != nil && errors.Is(err, pocket.ErrInsufficientFunds) {
			which = PocketDebit
			summary, err = w.debit.PrepareSend(ctx, target, infos)
		}
	default:
		return SendReference{}, fmt.Errorf("unknown unit %q", unit)
	}
	if err != nil {
		return SendReference{}, err
	}

	ref := SendReference{RequestId: summary.RequestId, Pocket: which, Target: summary.Target}
	w.mu.Lock()
	w.sendRefs[ref.RequestId] = ref
	w.mu.Unlock()
	return ref, nil
}

// Send consumes a previously prepared request id, encodes the resulting
// proofs as a token under the matched pocket's prefix, and records an
// outgoing Transaction. Fee is the difference between what was sent and
// what was targeted — always zero today since the engine rejects any
// keyset charging fees, but recorded in case that ever changes.
func (w *Wallet) Send(ctx context.Context, rid, memo string, timestamp uint64) (string, string, error) {
	w.mu.Lock()
	ref, ok := w.sendRefs[rid]
	if ok {
		delete(w.sendRefs, rid)
	}
	w.mu.Unlock()
	if !ok {
		return "", "", &pocket.NoPrepareRefError{RequestId: rid}
	}

	var proofsByY map[string]cashu.Proof
	var unit string
	var err error
	switch ref.Pocket {
	case PocketCredit:
		unit = w.cfg.CreditUnit
		proofsByY, err = w.credit.SendProofs(ctx, rid)
	default:
		unit = w.cfg.DebitUnit
		proofsByY, err = w.debit.SendProofs(ctx, rid)
	}
	if err != nil {
		return "", "", err
	}

	proofs := make(cashu.Proofs, 0, len(proofsByY))
	ys := make([]string, 0, len(proofsByY))
	for y, p := range proofsByY {
		proofs = append(proofs, p)
		ys = append(ys, y)
	}

	token, err := EncodeToken(ref.Pocket, proofs, w.cfg.MintURL, unit, memo, false)
	if err != nil {
		return "", "", err
	}

	sent := proofs.Amount()
	tx := Transaction{
		MintURL:   w.cfg.MintURL,
		Direction: Outgoing,
		Amount:    sent,
		Fee:       int64(sent) - int64(ref.Target),
		Unit:      unit,
		Ys:        ys,
		Timestamp: timestamp,
		Memo:      memo,
	}
	if err := w.txs.Record(ctx, tx); err != nil {
		return "", "", err
	}
	return token, tx.Id(), nil
}

// ReceiveToken decodes tokenstr, rejects it outright if it names a
// different mint, and routes it to the pocket its prefix names. It records
// an incoming Transaction with fee equal to the difference between what
// the token carried and what the digest actually stored.
func (w *Wallet) ReceiveToken(ctx context.Context, tokenstr string, timestamp uint64) (uint64, string, error) {
	decoded, err := DecodeToken(tokenstr)
	if err != nil {
		return 0, "", err
	}
	if decoded.Token.Mint() != w.cfg.MintURL {
		return 0, "", &MintMismatchError{TokenMint: decoded.Token.Mint(), WalletMint: w.cfg.MintURL}
	}
	proofs := decoded.Token.Proofs()
	if len(proofs) == 0 {
		return 0, "", ErrEmptyToken
	}

	infos, err := w.keysetInfos(ctx)
	if err != nil {
		return 0, "", err
	}

	var stored uint64
	var ys []string
	switch decoded.Pocket {
	case PocketCredit:
		stored, ys, err = w.credit.ReceiveProofs(ctx, infos, proofs)
	default:
		stored, ys, err = w.debit.ReceiveProofs(ctx, infos, proofs)
	}
	if err != nil {
		return 0, "", err
	}

	received := proofs.Amount()
	tx := Transaction{
		MintURL:   w.cfg.MintURL,
		Direction: Incoming,
		Amount:    stored,
		Fee:       int64(received) - int64(stored),
		Unit:      tokenUnit(decoded.Token),
		Ys:        ys,
		Timestamp: timestamp,
	}
	if err := w.txs.Record(ctx, tx); err != nil {
		return 0, "", err
	}
	return stored, tx.Id(), nil
}

// ReclaimFunds first reclaims the debit pocket's own pending proofs, then
// drives credit.reclaim_proofs and hands whatever it returned as redeemable
// to debit.receive_proofs. It returns the combined amount that moved back to
// Unspent across both pockets.
func (w *Wallet) ReclaimFunds(ctx context.Context) (uint64, error) {
	infos, err := w.keysetInfos(ctx)
	if err != nil {
		return 0, err
	}

	debitReclaimed, err := w.debit.ReclaimProofs(ctx, infos)
	if err != nil {
		return 0, err
	}

	creditReclaimed, redeemable, err := w.credit.ReclaimProofs(ctx, infos)
	if err != nil {
		return 0, err
	}

	var fromRedemption uint64
	if len(redeemable) > 0 {
		fromRedemption, _, err = w.debit.ReceiveProofs(ctx, infos, redeemable)
		if err != nil {
			return 0, err
		}
	}

	return debitReclaimed + creditReclaimed + fromRedemption, nil
}

// RedeemCredit pulls every proof whose credit keyset has inactivated and
// deposits it into the debit pocket, converting time-bounded value into
// perpetual value.
func (w *Wallet) RedeemCredit(ctx context.Context) (uint64, error) {
	infos, err := w.keysetInfos(ctx)
	if err != nil {
		return 0, err
	}

	redeemable, err := w.credit.GetRedeemableProofs(ctx, infos)
	if err != nil {
		return 0, err
	}
	if len(redeemable) == 0 {
		return 0, nil
	}

	total, _, err := w.debit.ReceiveProofs(ctx, infos, redeemable)
	return total, err
}

// ListRedemptions projects the credit pocket's balance onto its upcoming
// redemption dates, given the caller's payment window.
func (w *Wallet) ListRedemptions(ctx context.Context, paymentWindow uint64) ([]pocket.RedemptionSummary, error) {
	infos, err := w.keysetInfos(ctx)
	if err != nil {
		return nil, err
	}
	return w.credit.ListRedemptions(ctx, infos, paymentWindow)
}

// CleanLocalDB drops locally-stored proofs the mint confirms are already
// spent, across both pockets, and returns the combined count removed.
func (w *Wallet) CleanLocalDB(ctx context.Context) (int, error) {
	debitDeleted, err := w.debit.CleanLocalProofs(ctx)
	if err != nil {
		return 0, err
	}
	creditDeleted, err := w.credit.CleanLocalProofs(ctx)
	if err != nil {
		return 0, err
	}
	return len(debitDeleted) + len(creditDeleted), nil
}

func (w *Wallet) Transactions() TransactionRepository { return w.txs }

// tokenUnit recovers the unit string a decoded token carried. cashu.Token
// doesn't expose it directly since V3 and V4 tokens store it differently.
func tokenUnit(token cashu.Token) string {
	switch t := token.(type) {
	case cashu.TokenV4:
		return t.Unit
	case cashu.TokenV3:
		return t.Unit
	}
	return ""
}
