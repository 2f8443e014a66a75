// Package store contains ProofRepository implementations. Only the
// repository contract (pocket.ProofRepository) is part of the pocket
// engine's scope; these are reference backends — one in-memory, one
// bbolt-durable — exercising that contract.
package store

import (
	"context"
	"sync"

	"github.com/bitcr-wallet/pocket/cashu"
	"github.com/bitcr-wallet/pocket/pocket"
)

// Memory is an in-memory pocket.ProofRepository. Grounded on the reference
// shape of a two-map (unspent/pending) repository with a mutex-guarded
// counter map: no disk durability, but the CAS contract on counters holds
// exactly as a durable backend's would.
type Memory struct {
	mu      sync.Mutex
	unspent map[string]cashu.Proof
	pending map[string]cashu.Proof // covers both Pending and PendingSpent

	cmu     sync.Mutex
	counter map[string]uint32
}

func NewMemory() *Memory {
	return &Memory{
		unspent: make(map[string]cashu.Proof),
		pending: make(map[string]cashu.Proof),
		counter: make(map[string]uint32),
	}
}

func (m *Memory) StoreNew(_ context.Context, proof cashu.Proof) (string, error) {
	y, err := pocket.Y(proof.Secret)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unspent[y] = proof
	return y, nil
}

func (m *Memory) StorePendingSpent(_ context.Context, proof cashu.Proof) (string, error) {
	y, err := pocket.Y(proof.Secret)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[y] = proof
	return y, nil
}

func (m *Memory) LoadProof(_ context.Context, y string) (pocket.StoredProof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.unspent[y]; ok {
		return pocket.StoredProof{Proof: p, State: pocket.Unspent}, nil
	}
	if p, ok := m.pending[y]; ok {
		return pocket.StoredProof{Proof: p, State: pocket.PendingSpent}, nil
	}
	return pocket.StoredProof{}, &pocket.ProofNotFoundError{Y: y}
}

func (m *Memory) DeleteProof(_ context.Context, y string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.unspent, y)
	delete(m.pending, y)
	return nil
}

func (m *Memory) ListUnspent(_ context.Context) (map[string]cashu.Proof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]cashu.Proof, len(m.unspent))
	for k, v := range m.unspent {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) ListPending(_ context.Context) (map[string]cashu.Proof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]cashu.Proof, len(m.pending))
	for k, v := range m.pending {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) ListReserved(_ context.Context) (map[string]cashu.Proof, error) {
	return map[string]cashu.Proof{}, nil
}

func (m *Memory) ListAll(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ys := make([]string, 0, len(m.unspent)+len(m.pending))
	for y := range m.unspent {
		ys = append(ys, y)
	}
	for y := range m.pending {
		ys = append(ys, y)
	}
	return ys, nil
}

func (m *Memory) MarkAsPendingSpent(_ context.Context, y string) (cashu.Proof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.unspent[y]
	if !ok {
		return cashu.Proof{}, &pocket.InvalidProofStateError{Y: y}
	}
	delete(m.unspent, y)
	m.pending[y] = p
	return p, nil
}

func (m *Memory) Counter(_ context.Context, keysetId string) (uint32, error) {
	m.cmu.Lock()
	defer m.cmu.Unlock()
	return m.counter[keysetId], nil
}

func (m *Memory) IncrementCounter(_ context.Context, keysetId string, old, delta uint32) error {
	m.cmu.Lock()
	defer m.cmu.Unlock()
	current := m.counter[keysetId]
	if current != old {
		return pocket.ErrCounterConflict
	}
	m.counter[keysetId] = current + delta
	return nil
}

var _ pocket.ProofRepository = (*Memory)(nil)
