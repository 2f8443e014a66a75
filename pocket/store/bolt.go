package store

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/bitcr-wallet/pocket/cashu"
	"github.com/bitcr-wallet/pocket/pocket"
)

// bucket names, one bbolt file per pocket (debit and credit each get their
// own Bolt instance).
const (
	unspentBucket = "unspent"
	pendingBucket = "pending"
	counterBucket = "counters"
)

// Bolt is a bbolt-durable pocket.ProofRepository, with IncrementCounter
// enforcing a true compare-and-swap instead of an unconditional add.
type Bolt struct {
	db *bolt.DB
}

func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("error opening bolt db: %v", err)
	}

	b := &Bolt{db: db}
	if err := b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{unspentBucket, pendingBucket, counterBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("error setting up bolt buckets: %v", err)
	}

	return b, nil
}

func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) StoreNew(_ context.Context, proof cashu.Proof) (string, error) {
	y, err := pocket.Y(proof.Secret)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(proof)
	if err != nil {
		return "", err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(unspentBucket)).Put([]byte(y), data)
	})
	return y, err
}

func (b *Bolt) StorePendingSpent(_ context.Context, proof cashu.Proof) (string, error) {
	y, err := pocket.Y(proof.Secret)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(proof)
	if err != nil {
		return "", err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(pendingBucket)).Put([]byte(y), data)
	})
	return y, err
}

func (b *Bolt) LoadProof(_ context.Context, y string) (pocket.StoredProof, error) {
	var sp pocket.StoredProof
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket([]byte(unspentBucket)).Get([]byte(y)); data != nil {
			found = true
			sp.State = pocket.Unspent
			return json.Unmarshal(data, &sp.Proof)
		}
		if data := tx.Bucket([]byte(pendingBucket)).Get([]byte(y)); data != nil {
			found = true
			sp.State = pocket.PendingSpent
			return json.Unmarshal(data, &sp.Proof)
		}
		return nil
	})
	if err != nil {
		return pocket.StoredProof{}, err
	}
	if !found {
		return pocket.StoredProof{}, &pocket.ProofNotFoundError{Y: y}
	}
	return sp, nil
}

func (b *Bolt) DeleteProof(_ context.Context, y string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(unspentBucket)).Delete([]byte(y)); err != nil {
			return err
		}
		return tx.Bucket([]byte(pendingBucket)).Delete([]byte(y))
	})
}

func (b *Bolt) listBucket(name string) (map[string]cashu.Proof, error) {
	out := make(map[string]cashu.Proof)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(name)).ForEach(func(k, v []byte) error {
			var proof cashu.Proof
			if err := json.Unmarshal(v, &proof); err != nil {
				return err
			}
			out[string(k)] = proof
			return nil
		})
	})
	return out, err
}

func (b *Bolt) ListUnspent(_ context.Context) (map[string]cashu.Proof, error) {
	return b.listBucket(unspentBucket)
}

func (b *Bolt) ListPending(_ context.Context) (map[string]cashu.Proof, error) {
	return b.listBucket(pendingBucket)
}

func (b *Bolt) ListReserved(_ context.Context) (map[string]cashu.Proof, error) {
	return map[string]cashu.Proof{}, nil
}

func (b *Bolt) ListAll(_ context.Context) ([]string, error) {
	var ys []string
	err := b.db.View(func(tx *bolt.Tx) error {
		for _, name := range []string{unspentBucket, pendingBucket} {
			if err := tx.Bucket([]byte(name)).ForEach(func(k, _ []byte) error {
				ys = append(ys, string(k))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return ys, err
}

func (b *Bolt) MarkAsPendingSpent(_ context.Context, y string) (cashu.Proof, error) {
	var proof cashu.Proof
	err := b.db.Update(func(tx *bolt.Tx) error {
		unspent := tx.Bucket([]byte(unspentBucket))
		data := unspent.Get([]byte(y))
		if data == nil {
			return &pocket.InvalidProofStateError{Y: y}
		}
		if err := json.Unmarshal(data, &proof); err != nil {
			return err
		}
		if err := unspent.Delete([]byte(y)); err != nil {
			return err
		}
		return tx.Bucket([]byte(pendingBucket)).Put([]byte(y), data)
	})
	return proof, err
}

func (b *Bolt) Counter(_ context.Context, keysetId string) (uint32, error) {
	var counter uint32
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(counterBucket)).Get([]byte(keysetId))
		if data == nil {
			counter = 0
			return nil
		}
		counter = bytesToUint32(data)
		return nil
	})
	return counter, err
}

// IncrementCounter is the CAS linearization point: the bucket update only
// commits if the stored value still equals old, mirroring the in-memory
// backend's contract exactly (store/memory.go).
func (b *Bolt) IncrementCounter(_ context.Context, keysetId string, old, delta uint32) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(counterBucket))
		var current uint32
		if data := bucket.Get([]byte(keysetId)); data != nil {
			current = bytesToUint32(data)
		}
		if current != old {
			return pocket.ErrCounterConflict
		}
		return bucket.Put([]byte(keysetId), uint32ToBytes(current+delta))
	})
}

func uint32ToBytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func bytesToUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

var _ pocket.ProofRepository = (*Bolt)(nil)
