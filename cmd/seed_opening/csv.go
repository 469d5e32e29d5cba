package main

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

const referenceOpening = "OPENING"

var requiredColumns = []string{"product_id", "warehouse_id", "quantity", "unit_cost"}

// openingLine saldo inicial de un par.
type openingLine struct {
	Line        int
	ProductID   string
	WarehouseID string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	OccurredAt  time.Time
	ReferenceID string
}

func (l openingLine) input() inventory.RecordInput {
	cost := l.UnitCost
	ref := l.ReferenceID
	if ref == "" {
		ref = fmt.Sprintf("linea-%d", l.Line)
	}
	return inventory.RecordInput{
		ProductID:     l.ProductID,
		WarehouseID:   l.WarehouseID,
		Kind:          entity.KindPurchase,
		Quantity:      l.Quantity,
		UnitCost:      &cost,
		ReferenceType: referenceOpening,
		ReferenceID:   ref,
		Reason:        "saldo inicial",
		OccurredAt:    l.OccurredAt,
		CreatedBy:     "seed_opening",
	}
}

// parseOpening lee el archivo completo y falla en la primera línea inválida, antes de escribir nada.
func parseOpening(r io.Reader, delimiter rune) ([]openingLine, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		// Exportaciones de Excel en Windows suelen venir en Latin-1
		src = transform.NewReader(src, charmap.ISO8859_1.NewDecoder())
	}

	cr := csv.NewReader(bufio.NewReader(src))
	cr.Comma = delimiter
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("archivo vacío")
	}
	if err != nil {
		return nil, fmt.Errorf("encabezado: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("falta la columna %q", c)
		}
	}

	var out []openingLine
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("leer: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		l := openingLine{
			Line:        line,
			ProductID:   get("product_id"),
			WarehouseID: get("warehouse_id"),
			ReferenceID: get("reference_id"),
		}
		if l.ProductID == "" || l.WarehouseID == "" {
			return nil, fmt.Errorf("línea %d: product_id y warehouse_id son requeridos", line)
		}
		if l.Quantity, err = parseAmount(get("quantity")); err != nil {
			return nil, fmt.Errorf("línea %d: quantity: %w", line, err)
		}
		if !l.Quantity.IsPositive() {
			return nil, fmt.Errorf("línea %d: quantity debe ser mayor que cero", line)
		}
		if l.UnitCost, err = parseAmount(get("unit_cost")); err != nil {
			return nil, fmt.Errorf("línea %d: unit_cost: %w", line, err)
		}
		if l.UnitCost.IsNegative() {
			return nil, fmt.Errorf("línea %d: unit_cost no puede ser negativo", line)
		}
		if raw := get("occurred_at"); raw != "" {
			if l.OccurredAt, err = parseDate(raw); err != nil {
				return nil, fmt.Errorf("línea %d: occurred_at: %w", line, err)
			}
		}
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, errors.New("sin líneas de saldo")
	}
	return out, nil
}

// parseAmount acepta punto o coma decimal ("12.5", "12,5", "1.234,50").
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.New("vacío")
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("formato inválido %q (YYYY-MM-DD o RFC3339)", s)
	}
	return t.UTC(), nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
