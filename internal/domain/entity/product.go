package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del menú de una unidad de negocio.
type Product struct {
	ID             string          `json:"id" yaml:"id"`
	BusinessUnitID string          `json:"businessUnitId" yaml:"businessUnitId"`
	CategoryID     string          `json:"categoryId,omitempty" yaml:"categoryId"`
	Name           string          `json:"name" yaml:"name"`
	Price          decimal.Decimal `json:"price" yaml:"price"`
	Unit           string          `json:"unit,omitempty" yaml:"unit"` // ly, phần, kg...
	UpdatedAt      time.Time       `json:"updatedAt" yaml:"updatedAt"`
}

func (p Product) Collection() Collection { return CollectionProducts }
func (p Product) RecordID() string       { return p.ID }
func (p Product) OwnerID() string        { return p.BusinessUnitID }
func (p Product) Version() time.Time     { return p.UpdatedAt }
