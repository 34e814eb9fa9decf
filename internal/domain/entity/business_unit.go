package entity

import "time"

// Roles válidos para BusinessUnit.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// BusinessUnit representa un hộ kinh doanh (HKD): el tenant dueño de productos, categorías y facturas.
// Phone es la clave secundaria de login; es única entre las unidades con rol operator.
// Secret se guarda en claro: limitación conocida del sistema de origen.
type BusinessUnit struct {
	ID          string    `json:"id" yaml:"id"`
	Phone       string    `json:"phone" yaml:"phone"`
	Name        string    `json:"name" yaml:"name"`
	Address     string    `json:"address,omitempty" yaml:"address"`
	Role        string    `json:"role" yaml:"role"`
	Secret      string    `json:"secret" yaml:"secret"`
	LastUpdated time.Time `json:"lastUpdated" yaml:"lastUpdated"`
}

func (u BusinessUnit) Collection() Collection { return CollectionUnits }
func (u BusinessUnit) RecordID() string       { return u.ID }
func (u BusinessUnit) OwnerID() string        { return u.ID }
func (u BusinessUnit) Version() time.Time     { return u.LastUpdated }

// IsOperator indica si la unidad puede autenticarse contra el remoto.
func (u BusinessUnit) IsOperator() bool { return u.Role == RoleOperator }
