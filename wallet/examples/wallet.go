//go:build ignore_vet
// +build ignore_vet

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/bitcr-wallet/pocket/pocket/store"
	"github.com/bitcr-wallet/pocket/wallet"
)

func main() {
	ctx := context.Background()

	var master *hdkeychain.ExtendedKey // derived from the wallet's mnemonic

	cfg := wallet.Config{MintURL: "http://localhost:3338", DebitUnit: "sat", CreditUnit: "usd-credit"}
	w := wallet.New(
		cfg,
		store.NewMemory(),
		store.NewMemory(),
		wallet.NewMemoryTransactions(),
		wallet.NewClient(cfg.MintURL),
		master,
		slog.Default(),
	)

	balance, err := w.Balance(ctx)
	fmt.Println(balance, err)

	// Send 21 sat, letting the wallet pick whichever pocket the unit resolves to.
	ref, err := w.PrepareSend(ctx, 21, "sat")
	if err != nil {
		return
	}
	token, txId, err := w.Send(ctx, ref.RequestId, "", 0)
	fmt.Println(token, txId, err)

	// Receive a token from elsewhere.
	amount, receiveTxId, err := w.ReceiveToken(ctx, "cashuBo2FteB...", 0)
	fmt.Println(amount, receiveTxId, err)

	redeemed, err := w.RedeemCredit(ctx)
	fmt.Println(redeemed, err)
}
