package entity

import "time"

// Warehouse bodega o sucursal donde se almacena inventario.
type Warehouse struct {
	ID        string
	Name      string
	Location  string
	CreatedAt time.Time
}
