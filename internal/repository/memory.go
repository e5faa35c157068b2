package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tradeloop/escrowgate/internal/domain"
)

// MemoryStore is an in-process Store used for local development
// (STORAGE_DRIVER=memory) and tests. A unit of work holds a per-escrow lock
// from LockEscrow until it ends and stages its writes, which are applied
// together on success and discarded on error.
type MemoryStore struct {
	mu       sync.RWMutex
	escrows  map[uuid.UUID]*domain.Escrow
	order    []uuid.UUID
	payments []*domain.PaymentTransaction
	checks   []*domain.AMLCheck

	locksMu sync.Mutex
	locks   map[uuid.UUID]chan struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		escrows: make(map[uuid.UUID]*domain.Escrow),
		locks:   make(map[uuid.UUID]chan struct{}),
	}
}

func (s *MemoryStore) CreateEscrow(ctx context.Context, e *domain.Escrow) error {
	if err := ctxErr(ctx, "memory.CreateEscrow"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.escrows[e.ID]; exists {
		return fmt.Errorf("memory.CreateEscrow: %w: duplicate id %s", domain.ErrStorage, e.ID)
	}
	cp := *e
	s.escrows[e.ID] = &cp
	s.order = append(s.order, e.ID)
	return nil
}

func (s *MemoryStore) GetEscrow(ctx context.Context, id uuid.UUID) (*domain.Escrow, error) {
	if err := ctxErr(ctx, "memory.GetEscrow"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escrows[id]
	if !ok {
		return nil, domain.ErrEscrowNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) ListEscrows(ctx context.Context, limit, offset int) ([]*domain.Escrow, error) {
	if err := ctxErr(ctx, "memory.ListEscrows"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	all := make([]*domain.Escrow, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		cp := *s.escrows[s.order[i]]
		all = append(all, &cp)
	}
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (s *MemoryStore) ListPayments(ctx context.Context, limit, offset int) ([]*domain.PaymentTransaction, error) {
	if err := ctxErr(ctx, "memory.ListPayments"); err != nil {
		return nil, err
	}
	return page(s.paymentsWhere(func(*domain.PaymentTransaction) bool { return true }), limit, offset), nil
}

func (s *MemoryStore) ListPaymentsByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*domain.PaymentTransaction, error) {
	if err := ctxErr(ctx, "memory.ListPaymentsByEscrow"); err != nil {
		return nil, err
	}
	return s.paymentsWhere(func(p *domain.PaymentTransaction) bool {
		return p.EscrowID != nil && *p.EscrowID == escrowID
	}), nil
}

func (s *MemoryStore) paymentsWhere(keep func(*domain.PaymentTransaction) bool) []*domain.PaymentTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*domain.PaymentTransaction{}
	for i := len(s.payments) - 1; i >= 0; i-- {
		if keep(s.payments[i]) {
			cp := *s.payments[i]
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) InsertAMLCheck(ctx context.Context, c *domain.AMLCheck) error {
	if err := ctxErr(ctx, "memory.InsertAMLCheck"); err != nil {
		return err
	}
	cp := *c
	s.mu.Lock()
	s.checks = append(s.checks, &cp)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListAMLChecks(ctx context.Context, f domain.AMLFilter) ([]*domain.AMLCheck, error) {
	if err := ctxErr(ctx, "memory.ListAMLChecks"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := []*domain.AMLCheck{}
	for i := len(s.checks) - 1; i >= 0; i-- {
		c := s.checks[i]
		if f.Decision != "" && c.Decision != f.Decision {
			continue
		}
		if f.EscrowID != nil && (c.EscrowID == nil || *c.EscrowID != *f.EscrowID) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

// RunInTx runs fn against a staging transaction and applies its writes only
// when fn returns nil.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memoryTx{store: s, held: make(map[uuid.UUID]bool)}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctxErr(ctx, "memory.RunInTx commit"); err != nil {
		return err
	}
	return tx.commit()
}

// lockFor returns the channel used as the per-escrow mutex.
func (s *MemoryStore) lockFor(id uuid.UUID) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

// ──────────────────────────────────────────────────────────────────────────────
// memoryTx
// ──────────────────────────────────────────────────────────────────────────────

type statusChange struct {
	id       uuid.UUID
	from, to domain.EscrowStatus
	at       time.Time
}

type memoryTx struct {
	store    *MemoryStore
	held     map[uuid.UUID]bool
	changes  []statusChange
	payments []*domain.PaymentTransaction
	checks   []*domain.AMLCheck
}

func (t *memoryTx) LockEscrow(ctx context.Context, id uuid.UUID) (*domain.Escrow, error) {
	if _, err := t.store.GetEscrow(ctx, id); err != nil {
		return nil, err
	}
	if !t.held[id] {
		select {
		case t.store.lockFor(id) <- struct{}{}:
			t.held[id] = true
		case <-ctx.Done():
			return nil, ctxErr(ctx, "memory.LockEscrow")
		}
	}
	// Re-read under the lock so the caller sees the latest committed status.
	return t.store.GetEscrow(ctx, id)
}

func (t *memoryTx) UpdateEscrowStatus(ctx context.Context, id uuid.UUID, from, to domain.EscrowStatus, at time.Time) error {
	if err := ctxErr(ctx, "memory.UpdateEscrowStatus"); err != nil {
		return err
	}
	current, err := t.store.GetEscrow(ctx, id)
	if err != nil {
		return err
	}
	for _, c := range t.changes {
		if c.id == id {
			current.Status = c.to
		}
	}
	if current.Status != from {
		return fmt.Errorf("memory.UpdateEscrowStatus: %w: %s is no longer %s", domain.ErrInvalidTransition, id, from)
	}
	t.changes = append(t.changes, statusChange{id: id, from: from, to: to, at: at})
	return nil
}

func (t *memoryTx) AppendPayment(ctx context.Context, p *domain.PaymentTransaction) error {
	if err := ctxErr(ctx, "memory.AppendPayment"); err != nil {
		return err
	}
	cp := *p
	t.payments = append(t.payments, &cp)
	return nil
}

func (t *memoryTx) InsertAMLCheck(ctx context.Context, c *domain.AMLCheck) error {
	if err := ctxErr(ctx, "memory.InsertAMLCheck"); err != nil {
		return err
	}
	cp := *c
	t.checks = append(t.checks, &cp)
	return nil
}

func (t *memoryTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make(map[uuid.UUID]domain.EscrowStatus, len(t.changes))
	for _, c := range t.changes {
		e, ok := s.escrows[c.id]
		if !ok {
			return domain.ErrEscrowNotFound
		}
		cur, seen := status[c.id]
		if !seen {
			cur = e.Status
		}
		if cur != c.from {
			return fmt.Errorf("memory.commit: %w: %s is no longer %s", domain.ErrInvalidTransition, c.id, c.from)
		}
		status[c.id] = c.to
	}
	for _, c := range t.changes {
		e := s.escrows[c.id]
		e.Status = c.to
		e.UpdatedAt = c.at
	}
	s.payments = append(s.payments, t.payments...)
	s.checks = append(s.checks, t.checks...)
	return nil
}

func (t *memoryTx) release() {
	for id := range t.held {
		<-t.store.lockFor(id)
	}
	t.held = nil
}

// ──────────────────────────────────────────────────────────────────────────────
// helpers
// ──────────────────────────────────────────────────────────────────────────────

// ctxErr maps a finished context to domain.ErrTimeout (deadline) or
// domain.ErrStorage (cancellation).
func ctxErr(ctx context.Context, op string) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
	}
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
