package memory

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// masterDataFile formato del archivo de datos maestros (yaml, json o toml, según la extensión).
type masterDataFile struct {
	Categories []struct {
		ID   string `mapstructure:"id"`
		Name string `mapstructure:"name"`
	} `mapstructure:"categories"`
	Products []struct {
		ID          string `mapstructure:"id"`
		CategoryID  string `mapstructure:"category_id"`
		Name        string `mapstructure:"name"`
		UnitMeasure string `mapstructure:"unit_measure"`
		HSNCode     string `mapstructure:"hsn_code"`
	} `mapstructure:"products"`
	Warehouses []struct {
		ID       string `mapstructure:"id"`
		Name     string `mapstructure:"name"`
		Location string `mapstructure:"location"`
	} `mapstructure:"warehouses"`
}

// MasterDataCounts cantidades cargadas por LoadMasterData.
type MasterDataCounts struct {
	Categories int
	Products   int
	Warehouses int
}

// LoadMasterData registra categorías, productos y bodegas desde un archivo
// (LEDGER_MASTER_DATA_FILE). Sin esto el almacén en memoria rechaza todo movimiento
// con referencia desconocida.
func (s *Store) LoadMasterData(path string) (MasterDataCounts, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return MasterDataCounts{}, fmt.Errorf("leer datos maestros: %w", err)
	}
	var f masterDataFile
	if err := v.Unmarshal(&f); err != nil {
		return MasterDataCounts{}, fmt.Errorf("decodificar datos maestros: %w", err)
	}

	for i, c := range f.Categories {
		if strings.TrimSpace(c.ID) == "" {
			return MasterDataCounts{}, fmt.Errorf("categoría %d sin id", i)
		}
	}
	for i, p := range f.Products {
		if strings.TrimSpace(p.ID) == "" {
			return MasterDataCounts{}, fmt.Errorf("producto %d sin id", i)
		}
	}
	for i, w := range f.Warehouses {
		if strings.TrimSpace(w.ID) == "" {
			return MasterDataCounts{}, fmt.Errorf("bodega %d sin id", i)
		}
	}

	for _, c := range f.Categories {
		s.PutCategory(entity.Category{ID: c.ID, Name: c.Name})
	}
	for _, p := range f.Products {
		s.PutProduct(entity.Product{
			ID:          p.ID,
			CategoryID:  p.CategoryID,
			Name:        p.Name,
			UnitMeasure: p.UnitMeasure,
			HSNCode:     p.HSNCode,
		})
	}
	for _, w := range f.Warehouses {
		s.PutWarehouse(entity.Warehouse{ID: w.ID, Name: w.Name, Location: w.Location})
	}
	return MasterDataCounts{
		Categories: len(f.Categories),
		Products:   len(f.Products),
		Warehouses: len(f.Warehouses),
	}, nil
}
