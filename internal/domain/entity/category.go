package entity

// Category categoría de productos (filtro del listado de inventario).
type Category struct {
	ID   string
	Name string
}
