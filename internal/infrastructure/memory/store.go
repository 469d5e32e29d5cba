// Package memory implementa el libro de stock en memoria (LEDGER_STORE=memory y tests).
// Replica la semántica de PostgreSQL que usa el motor: bloqueo de fila por par con timeout,
// escrituras visibles solo al hacer commit y lecturas con vista consistente por par.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ inventory.TxRunner = (*Store)(nil)

// DefaultLockTimeout espera máxima por el bloqueo de un par.
const DefaultLockTimeout = 5 * time.Second

// pairState datos de un par. rowLock hace de SELECT FOR UPDATE; mu protege a los lectores.
type pairState struct {
	rowLock   chan struct{}
	mu        sync.RWMutex
	snapshot  *entity.StockSnapshot
	movements []*entity.StockMovement // orden de seq
}

// Store almacén en memoria, seguro para uso concurrente.
type Store struct {
	mu          sync.RWMutex
	pairs       map[string]*pairState
	seq         atomic.Int64
	lockTimeout time.Duration

	masterMu   sync.RWMutex
	products   map[string]*entity.Product
	warehouses map[string]*entity.Warehouse
	categories map[string]*entity.Category
}

// NewStore construye el almacén. lockTimeout <= 0 usa DefaultLockTimeout.
func NewStore(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{
		pairs:       make(map[string]*pairState),
		lockTimeout: lockTimeout,
		products:    make(map[string]*entity.Product),
		warehouses:  make(map[string]*entity.Warehouse),
		categories:  make(map[string]*entity.Category),
	}
}

func (s *Store) state(pair entity.Pair, create bool) *pairState {
	key := pair.Key()
	s.mu.RLock()
	p := s.pairs[key]
	s.mu.RUnlock()
	if p != nil || !create {
		return p
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p = s.pairs[key]; p == nil {
		p = &pairState{rowLock: make(chan struct{}, 1)}
		s.pairs[key] = p
	}
	return p
}

func (s *Store) allPairs() []entity.Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Pair, 0, len(s.pairs))
	for _, p := range s.pairs {
		p.mu.RLock()
		if len(p.movements) > 0 {
			out = append(out, p.movements[0].Pair())
		}
		p.mu.RUnlock()
	}
	sortPairs(out)
	return out
}

// Run ejecuta fn en una transacción de escritura. Los cambios se publican al final, por par,
// bajo el mutex del par: un lector nunca ve el movimiento sin su snapshot.
func (s *Store) Run(ctx context.Context, fn func(repository.StockMovementRepository, repository.StockSnapshotRepository) error) error {
	tx := newTx(s, false)
	defer tx.release()
	if err := fn(&movementRepo{tx: tx}, &snapshotRepo{tx: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// View ejecuta fn con una vista consistente de cada par que toque.
func (s *Store) View(ctx context.Context, fn func(repository.StockMovementRepository, repository.StockSnapshotRepository) error) error {
	tx := newTx(s, true)
	defer tx.release()
	return fn(&movementRepo{tx: tx}, &snapshotRepo{tx: tx})
}

// pairView copia estable de un par tomada la primera vez que la transacción lo lee.
type pairView struct {
	snapshot  *entity.StockSnapshot
	movements []*entity.StockMovement
}

type tx struct {
	store    *Store
	readOnly bool
	views    map[string]*pairView
	locked   map[string]*pairState
	pending  map[string][]*entity.StockMovement
	staged   map[string]*entity.StockSnapshot
}

func newTx(s *Store, readOnly bool) *tx {
	return &tx{
		store:    s,
		readOnly: readOnly,
		views:    make(map[string]*pairView),
		locked:   make(map[string]*pairState),
		pending:  make(map[string][]*entity.StockMovement),
		staged:   make(map[string]*entity.StockSnapshot),
	}
}

func (t *tx) view(pair entity.Pair) *pairView {
	key := pair.Key()
	if v, ok := t.views[key]; ok {
		return v
	}
	v := &pairView{}
	if p := t.store.state(pair, false); p != nil {
		p.mu.RLock()
		if p.snapshot != nil {
			cp := *p.snapshot
			v.snapshot = &cp
		}
		v.movements = p.movements[:len(p.movements):len(p.movements)]
		p.mu.RUnlock()
	}
	t.views[key] = v
	return v
}

// movements vista del par más lo escrito en esta transacción.
func (t *tx) movements(pair entity.Pair) []*entity.StockMovement {
	key := pair.Key()
	v := t.view(pair)
	if len(t.pending[key]) == 0 {
		return v.movements
	}
	out := make([]*entity.StockMovement, 0, len(v.movements)+len(t.pending[key]))
	out = append(out, v.movements...)
	return append(out, t.pending[key]...)
}

func (t *tx) snapshot(pair entity.Pair) *entity.StockSnapshot {
	if s, ok := t.staged[pair.Key()]; ok {
		cp := *s
		return &cp
	}
	if s := t.view(pair).snapshot; s != nil {
		cp := *s
		return &cp
	}
	return entity.NewEmptySnapshot(pair.ProductID, pair.WarehouseID)
}

func (t *tx) lock(ctx context.Context, pair entity.Pair) error {
	key := pair.Key()
	if _, ok := t.locked[key]; ok {
		return nil
	}
	p := t.store.state(pair, true)
	timer := time.NewTimer(t.store.lockTimeout)
	defer timer.Stop()
	select {
	case p.rowLock <- struct{}{}:
	case <-timer.C:
		return &domain.ConcurrencyConflictError{ProductID: pair.ProductID, WarehouseID: pair.WarehouseID, Cause: errLockTimeout}
	case <-ctx.Done():
		return &domain.ConcurrencyConflictError{ProductID: pair.ProductID, WarehouseID: pair.WarehouseID, Cause: ctx.Err()}
	}
	t.locked[key] = p
	// Con el bloqueo tomado, la vista debe ser la última versión confirmada
	delete(t.views, key)
	return nil
}

func (t *tx) commit() {
	keys := make(map[string]struct{}, len(t.pending)+len(t.staged))
	for k := range t.pending {
		keys[k] = struct{}{}
	}
	for k := range t.staged {
		keys[k] = struct{}{}
	}
	for key := range keys {
		var pair entity.Pair
		if movs := t.pending[key]; len(movs) > 0 {
			pair = movs[0].Pair()
		} else {
			pair = t.staged[key].Pair()
		}
		p := t.store.state(pair, true)
		p.mu.Lock()
		p.movements = append(p.movements, t.pending[key]...)
		if s, ok := t.staged[key]; ok {
			cp := *s
			p.snapshot = &cp
		}
		p.mu.Unlock()
	}
}

func (t *tx) release() {
	for key, p := range t.locked {
		<-p.rowLock
		delete(t.locked, key)
	}
}

type lockTimeoutError struct{}

func (lockTimeoutError) Error() string { return "tiempo de espera del bloqueo agotado" }

var errLockTimeout error = lockTimeoutError{}

func sortPairs(pairs []entity.Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ProductID != pairs[j].ProductID {
			return pairs[i].ProductID < pairs[j].ProductID
		}
		return pairs[i].WarehouseID < pairs[j].WarehouseID
	})
}
