package wallet_test

import (
	"context"
	"testing"

	"github.com/bitcr-wallet/pocket/wallet"
)

// Id is a content hash: reordering Ys or Metadata keys must not change it,
// but changing any field must.
func TestTransactionIdStableUnderReordering(t *testing.T) {
	base := wallet.Transaction{
		MintURL: "http://mint.example", Direction: wallet.Outgoing, Amount: 16, Fee: 0,
		Unit: "sat", Ys: []string{"aa", "bb", "cc"}, Timestamp: 100, Memo: "coffee",
		Metadata: map[string]string{"app": "nutw", "device": "pixel"},
	}
	reordered := wallet.Transaction{
		MintURL: "http://mint.example", Direction: wallet.Outgoing, Amount: 16, Fee: 0,
		Unit: "sat", Ys: []string{"cc", "aa", "bb"}, Timestamp: 100, Memo: "coffee",
		Metadata: map[string]string{"device": "pixel", "app": "nutw"},
	}

	if base.Id() != reordered.Id() {
		t.Fatalf("expected reordering Ys/Metadata to leave Id unchanged: %s != %s", base.Id(), reordered.Id())
	}

	changed := base
	changed.Amount = 17
	if base.Id() == changed.Id() {
		t.Fatal("expected a changed field to change the Id")
	}
}

func TestMemoryTransactionsRecordAndGet(t *testing.T) {
	ctx := context.Background()
	repo := wallet.NewMemoryTransactions()

	tx := wallet.Transaction{MintURL: "http://mint.example", Direction: wallet.Incoming, Amount: 8, Unit: "sat", Ys: []string{"yy"}, Timestamp: 1}
	if err := repo.Record(ctx, tx); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	got, err := repo.Get(ctx, tx.Id())
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Amount != 8 {
		t.Fatalf("expected amount 8, got %d", got.Amount)
	}

	if _, err := repo.Get(ctx, "nonexistent"); err == nil {
		t.Fatal("expected error for unknown transaction id")
	}
}

func TestMemoryTransactionsListSortedByTimestamp(t *testing.T) {
	ctx := context.Background()
	repo := wallet.NewMemoryTransactions()

	later := wallet.Transaction{MintURL: "http://mint.example", Direction: wallet.Incoming, Amount: 1, Unit: "sat", Ys: []string{"a"}, Timestamp: 200}
	earlier := wallet.Transaction{MintURL: "http://mint.example", Direction: wallet.Incoming, Amount: 2, Unit: "sat", Ys: []string{"b"}, Timestamp: 100}
	if err := repo.Record(ctx, later); err != nil {
		t.Fatal(err)
	}
	if err := repo.Record(ctx, earlier); err != nil {
		t.Fatal(err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].Timestamp != 100 || list[1].Timestamp != 200 {
		t.Fatalf("expected ascending-timestamp order, got %+v", list)
	}
}
