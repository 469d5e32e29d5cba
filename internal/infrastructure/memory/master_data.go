package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.ProductRepository   = (*ProductRepo)(nil)
	_ repository.WarehouseRepository = (*WarehouseRepo)(nil)
	_ repository.CategoryRepository  = (*CategoryRepo)(nil)
)

// PutProduct registra un producto de datos maestros.
func (s *Store) PutProduct(p entity.Product) {
	s.masterMu.Lock()
	defer s.masterMu.Unlock()
	s.products[p.ID] = &p
}

// PutWarehouse registra una bodega.
func (s *Store) PutWarehouse(w entity.Warehouse) {
	s.masterMu.Lock()
	defer s.masterMu.Unlock()
	s.warehouses[w.ID] = &w
}

// PutCategory registra una categoría.
func (s *Store) PutCategory(c entity.Category) {
	s.masterMu.Lock()
	defer s.masterMu.Unlock()
	s.categories[c.ID] = &c
}

func (s *Store) product(id string) *entity.Product {
	s.masterMu.RLock()
	defer s.masterMu.RUnlock()
	if p, ok := s.products[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// Products repositorio de productos respaldado por el almacén.
func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

// Warehouses repositorio de bodegas.
func (s *Store) Warehouses() *WarehouseRepo { return &WarehouseRepo{s: s} }

// Categories repositorio de categorías.
func (s *Store) Categories() *CategoryRepo { return &CategoryRepo{s: s} }

// ProductRepo lectura de productos en memoria.
type ProductRepo struct{ s *Store }

func (r *ProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	return r.s.product(id), nil
}

// WarehouseRepo lectura de bodegas en memoria.
type WarehouseRepo struct{ s *Store }

func (r *WarehouseRepo) GetByID(_ context.Context, id string) (*entity.Warehouse, error) {
	r.s.masterMu.RLock()
	defer r.s.masterMu.RUnlock()
	if w, ok := r.s.warehouses[id]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, nil
}

// ListByIDs omite los que no existen; orden por nombre e ID.
func (r *WarehouseRepo) ListByIDs(_ context.Context, ids []string) ([]*entity.Warehouse, error) {
	r.s.masterMu.RLock()
	defer r.s.masterMu.RUnlock()
	out := make([]*entity.Warehouse, 0, len(ids))
	for _, id := range ids {
		if w, ok := r.s.warehouses[id]; ok {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CategoryRepo lectura de categorías en memoria.
type CategoryRepo struct{ s *Store }

func (r *CategoryRepo) GetByID(_ context.Context, id string) (*entity.Category, error) {
	r.s.masterMu.RLock()
	defer r.s.masterMu.RUnlock()
	if c, ok := r.s.categories[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}
