// Package memory is the in-process ledger: exclusively owned maps mutated in place,
// with snapshot/restore standing in for transaction rollback.
package memory

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"collateral-lending/internal/domain/event"
	"collateral-lending/internal/domain/loan"
	"collateral-lending/internal/domain/vault"
)

type state struct {
	loans     map[uint64]*loan.Loan
	nextID    uint64
	balances  map[common.Address]uint256.Int
	transfers []*vault.Transfer
	events    []*event.Event
	nextSeq   uint64
}

func newState() *state {
	return &state{
		loans:    map[uint64]*loan.Loan{},
		balances: map[common.Address]uint256.Int{},
		nextSeq:  1,
	}
}

// clone copies the containers only. Stored loans and events are replaced, never mutated,
// and the transfer journal is append-only, so the records themselves are shared.
func (s *state) clone() *state {
	out := &state{
		loans:     make(map[uint64]*loan.Loan, len(s.loans)),
		nextID:    s.nextID,
		balances:  make(map[common.Address]uint256.Int, len(s.balances)),
		transfers: s.transfers[:len(s.transfers):len(s.transfers)],
		events:    make([]*event.Event, len(s.events)),
		nextSeq:   s.nextSeq,
	}
	for id, l := range s.loans {
		out.loans[id] = l
	}
	for a, b := range s.balances {
		out.balances[a] = b
	}
	copy(out.events, s.events)
	return out
}

// Store owns the ledger state. Use it through its UnitOfWork, or through the
// repositories directly when no rollback is needed (reads, seeding).
type Store struct{ st *state }

func NewStore() *Store { return &Store{st: newState()} }

func (s *Store) Loans() *LoanRepository   { return &LoanRepository{s: s} }
func (s *Store) Vault() *VaultRepository  { return &VaultRepository{s: s} }
func (s *Store) Events() *EventRepository { return &EventRepository{s: s} }

// ---- loans ----

type LoanRepository struct{ s *Store }

func (r *LoanRepository) Create(_ context.Context, l *loan.Loan) (uint64, error) {
	st := r.s.st
	l.ID = st.nextID
	st.loans[l.ID] = l.Clone()
	st.nextID++
	return l.ID, nil
}

func (r *LoanRepository) GetByID(_ context.Context, id uint64) (*loan.Loan, error) {
	l, ok := r.s.st.loans[id]
	if !ok {
		return nil, loan.ErrNotFound
	}
	return l.Clone(), nil
}

func (r *LoanRepository) Update(_ context.Context, id uint64, mutate func(l *loan.Loan) error) (*loan.Loan, error) {
	cur, ok := r.s.st.loans[id]
	if !ok {
		return nil, loan.ErrNotFound
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = id
	r.s.st.loans[id] = next
	return next.Clone(), nil
}

func (r *LoanRepository) List(_ context.Context, offset, limit int) ([]*loan.Loan, error) {
	st := r.s.st
	out := make([]*loan.Loan, 0, limit)
	for id := uint64(offset); id < st.nextID && len(out) < limit; id++ {
		if l, ok := st.loans[id]; ok {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

// ---- vault ----

type VaultRepository struct{ s *Store }

func (r *VaultRepository) BalanceOf(_ context.Context, addr common.Address) (*uint256.Int, error) {
	b := r.s.st.balances[addr]
	return new(uint256.Int).Set(&b), nil
}

func (r *VaultRepository) SetBalance(_ context.Context, addr common.Address, amount *uint256.Int) error {
	r.s.st.balances[addr] = *amount
	return nil
}

func (r *VaultRepository) Record(_ context.Context, t *vault.Transfer) error {
	cp := *t
	r.s.st.transfers = append(r.s.st.transfers, &cp)
	return nil
}

func (r *VaultRepository) ListByLoan(_ context.Context, loanID uint64) ([]*vault.Transfer, error) {
	var out []*vault.Transfer
	for _, t := range r.s.st.transfers {
		if t.LoanID == loanID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- events ----

type EventRepository struct{ s *Store }

func (r *EventRepository) Append(_ context.Context, e *event.Event) error {
	st := r.s.st
	e.Seq = st.nextSeq
	st.nextSeq++
	cp := *e
	st.events = append(st.events, &cp)
	return nil
}

func (r *EventRepository) ListByLoan(_ context.Context, loanID uint64) ([]*event.Event, error) {
	var out []*event.Event
	for _, e := range r.s.st.events {
		if e.LoanID == loanID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *EventRepository) ListUnpublished(_ context.Context, limit int) ([]*event.Event, error) {
	var out []*event.Event
	for _, e := range r.s.st.events {
		if len(out) == limit {
			break
		}
		if !e.Published {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *EventRepository) MarkPublished(_ context.Context, seqs []uint64) error {
	want := make(map[uint64]struct{}, len(seqs))
	for _, s := range seqs {
		want[s] = struct{}{}
	}
	for i, e := range r.s.st.events {
		if _, ok := want[e.Seq]; ok {
			cp := *e
			cp.Published = true
			r.s.st.events[i] = &cp
		}
	}
	return nil
}
