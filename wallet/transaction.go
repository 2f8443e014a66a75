package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
)

// Direction marks whether a Transaction credited or debited the wallet.
type Direction int

const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	if d == Outgoing {
		return "outgoing"
	}
	return "incoming"
}

// Transaction is one entry in the wallet's log: a record of a completed
// send or receive, independent of the proofs it moved. Its Id is a content
// hash of the recorded tuple, so two transactions with identical fields are
// indistinguishable and collapse to the same Id — the log is a set, not a
// sequence with synthetic keys.
type Transaction struct {
	MintURL   string
	Direction Direction
	Amount    uint64
	Fee       int64
	Unit      string
	Ys        []string
	Timestamp uint64
	Memo      string
	Metadata  map[string]string
}

// Id computes the content-hash identifier: sha256 over the tuple fields in
// a fixed order, Ys sorted first so the hash does not depend on collection
// order.
func (t Transaction) Id() string {
	ys := append([]string(nil), t.Ys...)
	sort.Strings(ys)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%d|%s|%d|%s", t.MintURL, t.Direction, t.Amount, t.Fee, t.Unit, t.Timestamp, t.Memo)
	for _, y := range ys {
		fmt.Fprintf(h, "|%s", y)
	}
	keys := make([]string, 0, len(t.Metadata))
	for k := range t.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%s", k, t.Metadata[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TransactionRepository is the wallet's append-only transaction log.
type TransactionRepository interface {
	Record(ctx context.Context, tx Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context) ([]Transaction, error)
}

// MemoryTransactions is an in-memory TransactionRepository: a single map
// keyed by transaction id, guarded by a mutex.
type MemoryTransactions struct {
	mu  sync.Mutex
	log map[string]Transaction
}

func NewMemoryTransactions() *MemoryTransactions {
	return &MemoryTransactions{log: make(map[string]Transaction)}
}

func (m *MemoryTransactions) Record(_ context.Context, tx Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log[tx.Id()] = tx
	return nil
}

func (m *MemoryTransactions) Get(_ context.Context, id string) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.log[id]
	if !ok {
		return Transaction{}, &TransactionNotFoundError{Id: id}
	}
	return tx, nil
}

func (m *MemoryTransactions) List(_ context.Context) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transaction, 0, len(m.log))
	for _, tx := range m.log {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

var _ TransactionRepository = (*MemoryTransactions)(nil)
