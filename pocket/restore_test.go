package pocket_test

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/bitcr-wallet/pocket/cashu/nuts/nut13"
	"github.com/bitcr-wallet/pocket/crypto"
	"github.com/bitcr-wallet/pocket/pocket"
	"github.com/bitcr-wallet/pocket/pocket/store"
)

// S7. Restore convergence: a keyset with N deterministically-derived
// outputs the mint still recognizes is fully recovered within the gap
// limit, and the persisted counter ends up past the highest recovered
// index.
func TestRestoreConvergence(t *testing.T) {
	ctx := context.Background()
	mintMaster := testMaster(t, "restore mint mnemonic fixture stays fixed across every run")
	walletMaster := testMaster(t, "restore wallet mnemonic fixture stays fixed across every run")

	ks := testKeyset(t, mintMaster, 0, "sat", true)
	mint := newStubMint(ks)

	const n = 5
	keysetPath, err := nut13.DeriveKeysetPath(walletMaster, ks.Id)
	if err != nil {
		t.Fatal(err)
	}
	for i := uint32(0); i < n; i++ {
		secretHex, err := nut13.DeriveSecret(keysetPath, i)
		if err != nil {
			t.Fatal(err)
		}
		rKey, err := nut13.DeriveBlindingFactor(keysetPath, i)
		if err != nil {
			t.Fatal(err)
		}
		secretBytes, err := hex.DecodeString(secretHex)
		if err != nil {
			t.Fatal(err)
		}
		B_, _ := crypto.BlindMessage(secretBytes, rKey.Serialize())
		mint.knownB[hex.EncodeToString(B_.SerializeCompressed())] = true
	}

	repo := store.NewMemory()
	recovered, err := pocket.RestoreKeyset(ctx, discardLogger(), mint, repo, walletMaster, ks.Id)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if recovered != n {
		t.Fatalf("expected to recover %d proofs, got %d", n, recovered)
	}

	counter, err := repo.Counter(ctx, ks.Id)
	if err != nil {
		t.Fatal(err)
	}
	if counter <= n-1 {
		t.Fatalf("expected persisted counter past the highest recovered index (%d), got %d", n-1, counter)
	}

	unspent, err := repo.ListUnspent(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unspent) != n {
		t.Fatalf("expected %d unspent proofs stored, got %d", n, len(unspent))
	}
}
