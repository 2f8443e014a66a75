package wallet_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip39"

	"github.com/bitcr-wallet/pocket/cashu"
	"github.com/bitcr-wallet/pocket/crypto"
	"github.com/bitcr-wallet/pocket/pocket"
)

// stubMint is a minimal in-process pocket.MintClient: it signs with real
// keyset keys so a wallet-level round trip exercises the genuine BDHKE math
// instead of a canned response.
type stubMint struct {
	keysets map[string]*crypto.MintKeyset
	infos   []pocket.KeysetInfo
	states  map[string]pocket.MintProofState
}

func newStubMint(keysets ...*crypto.MintKeyset) *stubMint {
	m := &stubMint{
		keysets: make(map[string]*crypto.MintKeyset),
		states:  make(map[string]pocket.MintProofState),
	}
	for _, ks := range keysets {
		m.keysets[ks.Id] = ks
		m.infos = append(m.infos, pocket.KeysetInfo{
			Id: ks.Id, Unit: ks.Unit, Active: ks.Active, InputFeePpk: uint32(ks.InputFeePpk),
		})
	}
	return m
}

func (m *stubMint) GetKeysets(_ context.Context) ([]pocket.KeysetInfo, error) { return m.infos, nil }

func (m *stubMint) GetKeyset(_ context.Context, id string) (crypto.PublicKeys, error) {
	ks, ok := m.keysets[id]
	if !ok {
		return nil, &pocket.UnknownKeysetIdError{KeysetId: id}
	}
	pks := make(crypto.PublicKeys, len(ks.Keys))
	for amt, kp := range ks.Keys {
		pks[amt] = kp.PublicKey
	}
	return pks, nil
}

func (m *stubMint) Swap(_ context.Context, _ cashu.Proofs, outputs cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	sigs := make(cashu.BlindedSignatures, len(outputs))
	for i, out := range outputs {
		sig, err := m.sign(out)
		if err != nil {
			return nil, err
		}
		sigs[i] = sig
	}
	return sigs, nil
}

func (m *stubMint) sign(out cashu.BlindedMessage) (cashu.BlindedSignature, error) {
	ks, ok := m.keysets[out.Id]
	if !ok {
		return cashu.BlindedSignature{}, &pocket.UnknownKeysetIdError{KeysetId: out.Id}
	}
	kp, ok := ks.Keys[out.Amount]
	if !ok {
		return cashu.BlindedSignature{}, pocket.ErrInternalInvariant
	}
	bBytes, err := hex.DecodeString(out.B_)
	if err != nil {
		return cashu.BlindedSignature{}, err
	}
	B_, err := secp256k1.ParsePubKey(bBytes)
	if err != nil {
		return cashu.BlindedSignature{}, err
	}
	C_ := crypto.SignBlindedMessage(B_, kp.PrivateKey)
	return cashu.BlindedSignature{Amount: out.Amount, Id: out.Id, C_: hex.EncodeToString(C_.SerializeCompressed())}, nil
}

// CheckState answers MintUnspent for anything not explicitly set, which is
// enough for reclaim/clean tests that pre-seed specific ys as spent.
func (m *stubMint) CheckState(_ context.Context, ys []string) (map[string]pocket.MintProofState, error) {
	out := make(map[string]pocket.MintProofState, len(ys))
	for _, y := range ys {
		if s, ok := m.states[y]; ok {
			out[y] = s
		} else {
			out[y] = pocket.MintUnspent
		}
	}
	return out, nil
}

func (m *stubMint) markSpent(y string) { m.states[y] = pocket.MintSpent }

// setFinalExpiry stamps a keyset's reported final_expiry, as a mint does once
// it schedules a credit keyset's rotation.
func (m *stubMint) setFinalExpiry(kid string, expiry uint64) {
	for i := range m.infos {
		if m.infos[i].Id == kid {
			m.infos[i].FinalExpiry = &expiry
			return
		}
	}
}

// inactivate flips a keyset's reported Active bit, as a mint does once it
// rotates a keyset out.
func (m *stubMint) inactivate(kid string) {
	for i := range m.infos {
		if m.infos[i].Id == kid {
			m.infos[i].Active = false
			return
		}
	}
}

func (m *stubMint) Restore(_ context.Context, outputs cashu.BlindedMessages) (cashu.BlindedMessages, cashu.BlindedSignatures, error) {
	return nil, nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMaster(t *testing.T, mnemonic string) *hdkeychain.ExtendedKey {
	t.Helper()
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("could not build master key: %v", err)
	}
	return master
}

func testKeyset(t *testing.T, master *hdkeychain.ExtendedKey, index uint32, unit string, active bool) *crypto.MintKeyset {
	t.Helper()
	ks, err := crypto.GenerateKeyset(master, index, 0)
	if err != nil {
		t.Fatalf("could not generate keyset: %v", err)
	}
	ks.Unit = unit
	ks.Active = active
	return ks
}

// mintProofDirect builds one valid proof of the given amount against ks, as
// if it had been received from some other party.
func mintProofDirect(t *testing.T, ks *crypto.MintKeyset, amount uint64) cashu.Proof {
	t.Helper()
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 32)
	if _, err := rand.Read(r); err != nil {
		t.Fatal(err)
	}
	B_, rKey := crypto.BlindMessage(secret, r)
	kp, ok := ks.Keys[amount]
	if !ok {
		t.Fatalf("keyset has no key for amount %d", amount)
	}
	C_ := crypto.SignBlindedMessage(B_, kp.PrivateKey)
	C := crypto.UnblindSignature(C_, rKey, kp.PublicKey)
	return cashu.Proof{
		Amount: amount,
		Id:     ks.Id,
		Secret: hex.EncodeToString(secret),
		C:      hex.EncodeToString(C.SerializeCompressed()),
	}
}
