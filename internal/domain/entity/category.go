package entity

import "time"

// Category agrupa productos de una unidad de negocio.
type Category struct {
	ID             string    `json:"id" yaml:"id"`
	BusinessUnitID string    `json:"businessUnitId" yaml:"businessUnitId"`
	Name           string    `json:"name" yaml:"name"`
	UpdatedAt      time.Time `json:"updatedAt" yaml:"updatedAt"`
}

func (c Category) Collection() Collection { return CollectionCategories }
func (c Category) RecordID() string       { return c.ID }
func (c Category) OwnerID() string        { return c.BusinessUnitID }
func (c Category) Version() time.Time     { return c.UpdatedAt }
