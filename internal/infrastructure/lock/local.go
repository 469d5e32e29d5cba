// Package lock implementa el bloqueo por par (producto, bodega) que serializa las escrituras.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

var _ inventory.PairLocker = (*LocalLocker)(nil)

// ErrLockTimeout no se obtuvo el bloqueo dentro del timeout configurado.
var ErrLockTimeout = errors.New("tiempo de espera del bloqueo agotado")

type entry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker bloqueo por clave dentro del proceso. Las entradas se liberan cuando nadie las usa.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

// NewLocalLocker construye el bloqueador con el timeout de espera.
func NewLocalLocker(timeout time.Duration) *LocalLocker {
	return &LocalLocker{entries: make(map[string]*entry), timeout: timeout}
}

// Lock espera hasta timeout o hasta que ctx se cancele.
func (l *LocalLocker) Lock(ctx context.Context, pair entity.Pair) (func(), error) {
	key := pair.Key()
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				l.deref(key, e)
			})
		}, nil
	case <-timer.C:
		l.deref(key, e)
		return nil, conflict(pair, ErrLockTimeout)
	case <-ctx.Done():
		l.deref(key, e)
		return nil, conflict(pair, ctx.Err())
	}
}

func (l *LocalLocker) deref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size cantidad de claves vivas (tests).
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func conflict(pair entity.Pair, cause error) error {
	return &domain.ConcurrencyConflictError{ProductID: pair.ProductID, WarehouseID: pair.WarehouseID, Cause: cause}
}
