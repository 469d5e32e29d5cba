package entity

import "time"

// Product datos maestros de un producto. El motor solo lo lee.
type Product struct {
	ID          string
	CategoryID  string
	Name        string
	UnitMeasure string
	HSNCode     string // código arancelario/tributario
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
