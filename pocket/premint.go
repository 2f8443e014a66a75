package pocket

import (
	"encoding/hex"
	"sort"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/bitcr-wallet/pocket/cashu"
	"github.com/bitcr-wallet/pocket/cashu/nuts/nut13"
	"github.com/bitcr-wallet/pocket/crypto"
)

// PreMintSecret is one not-yet-signed output: a deterministically derived
// secret and blinding factor, and the blinded message built from them.
type PreMintSecret struct {
	KeysetId       string
	Index          uint32
	Amount         uint64
	Secret         string
	BlindingFactor *secp256k1.PrivateKey
	BlindedMessage cashu.BlindedMessage
}

// PreMintBatch is a contiguous range of PreMintSecret derived under one
// keyset, covering one amount split.
type PreMintBatch []PreMintSecret

func (b PreMintBatch) Outputs() cashu.BlindedMessages {
	outputs := make(cashu.BlindedMessages, len(b))
	for i, pm := range b {
		outputs[i] = pm.BlindedMessage
	}
	return outputs
}

func (b PreMintBatch) Amount() uint64 {
	var total uint64
	for _, pm := range b {
		total += pm.Amount
	}
	return total
}

// DerivePreMintBatch derives len(amounts) secrets for keysetId, starting at
// startCounter, one per entry of amounts (already split into powers of two
// by cashu.AmountSplit). Derivation follows NUT-13: m/129372'/0'/keyset'/counter'/{0,1}.
func DerivePreMintBatch(master *hdkeychain.ExtendedKey, keysetId string, startCounter uint32, amounts []uint64) (PreMintBatch, error) {
	keysetPath, err := nut13.DeriveKeysetPath(master, keysetId)
	if err != nil {
		return nil, err
	}

	batch := make(PreMintBatch, len(amounts))
	for i, amount := range amounts {
		index := startCounter + uint32(i)

		secretHex, err := nut13.DeriveSecret(keysetPath, index)
		if err != nil {
			return nil, err
		}
		rKey, err := nut13.DeriveBlindingFactor(keysetPath, index)
		if err != nil {
			return nil, err
		}

		secretBytes, err := hex.DecodeString(secretHex)
		if err != nil {
			return nil, err
		}
		B_, r := crypto.BlindMessage(secretBytes, rKey.Serialize())

		batch[i] = PreMintSecret{
			KeysetId:       keysetId,
			Index:          index,
			Amount:         amount,
			Secret:         secretHex,
			BlindingFactor: r,
			BlindedMessage: cashu.NewBlindedMessage(keysetId, amount, B_),
		}
	}

	return batch, nil
}

// derivePreMintRange derives a contiguous [start, start+n) range with no
// target amount of its own — used by the restorer, where the mint tells us
// which of these indices it actually signed.
func derivePreMintRange(master *hdkeychain.ExtendedKey, keysetId string, start, n uint32) (PreMintBatch, error) {
	amounts := make([]uint64, n)
	for i := range amounts {
		amounts[i] = 0
	}
	return DerivePreMintBatch(master, keysetId, start, amounts)
}

// sortProofsDescending sorts a batch's resulting proofs descending by
// amount — used by swap_proof_to_target's greedy accumulation.
func sortProofsDescending(proofs cashu.Proofs) {
	sort.SliceStable(proofs, func(i, j int) bool {
		return proofs[i].Amount > proofs[j].Amount
	})
}
