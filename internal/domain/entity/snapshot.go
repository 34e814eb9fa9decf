package entity

import "strings"

// UnitSnapshot subárbol completo de una unidad leído del remoto.
type UnitSnapshot struct {
	Info       BusinessUnit
	Products   []Product
	Categories []Category
	Invoices   []Invoice
}

// Records devuelve todas las entidades del snapshot, info primero.
func (s UnitSnapshot) Records() []Record {
	out := make([]Record, 0, 1+len(s.Products)+len(s.Categories)+len(s.Invoices))
	out = append(out, s.Info)
	for _, c := range s.Categories {
		out = append(out, c)
	}
	for _, p := range s.Products {
		out = append(out, p)
	}
	for _, i := range s.Invoices {
		out = append(out, i)
	}
	return out
}

const (
	unitsRoot = "units"
	infoLeaf  = "info"
)

// UnitPath raíz del subárbol de una unidad: units/{unitId}.
func UnitPath(unitID string) string {
	return unitsRoot + "/" + unitID
}

// PathFor ruta remota de una entidad:
//
//	units/{unitId}/info
//	units/{unitId}/{products|categories|invoices}/{id}
func PathFor(c Collection, unitID, id string) string {
	if c == CollectionUnits {
		return UnitPath(unitID) + "/" + infoLeaf
	}
	return UnitPath(unitID) + "/" + string(c) + "/" + id
}

// ParsePath inverso de PathFor. ok=false si path no es una hoja de entidad.
func ParsePath(path string) (c Collection, unitID, id string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != unitsRoot || parts[1] == "" {
		return "", "", "", false
	}
	switch len(parts) {
	case 3:
		if parts[2] == infoLeaf {
			return CollectionUnits, parts[1], parts[1], true
		}
	case 4:
		col := Collection(parts[2])
		if col != CollectionUnits && col.Valid() && parts[3] != "" {
			return col, parts[1], parts[3], true
		}
	}
	return "", "", "", false
}

// IsLeafPath indica si path direcciona un documento de entidad.
func IsLeafPath(path string) bool {
	_, _, _, ok := ParsePath(path)
	return ok
}
