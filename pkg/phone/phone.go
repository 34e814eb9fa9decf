// Package phone normaliza identificadores telefónicos a E.164 para comparar
// credenciales locales y remotas escritas de forma distinta (0900..., +84900...).
package phone

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// DefaultRegion región usada cuando el número no trae prefijo internacional.
const DefaultRegion = "VN"

// Normalizer normaliza números según una región por defecto.
type Normalizer struct {
	region string
}

// NewNormalizer crea un normalizador; region vacía usa DefaultRegion.
func NewNormalizer(region string) Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	return Normalizer{region: region}
}

// Normalize devuelve el número en formato E.164. Si raw no parece un teléfono
// (p.ej. el identificador reservado del administrador) lo devuelve recortado.
func (n Normalizer) Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	p, err := libphonenumber.Parse(s, n.regionOrDefault())
	if err != nil {
		return s
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}

// Equal compara dos identificadores ya normalizados. Vacío nunca coincide.
func (n Normalizer) Equal(a, b string) bool {
	na := n.Normalize(a)
	return na != "" && na == n.Normalize(b)
}

// Valid indica si raw es un número válido para la región.
func (n Normalizer) Valid(raw string) bool {
	p, err := libphonenumber.Parse(strings.TrimSpace(raw), n.regionOrDefault())
	if err != nil {
		return false
	}
	return libphonenumber.IsValidNumber(p)
}

func (n Normalizer) regionOrDefault() string {
	if n.region == "" {
		return DefaultRegion
	}
	return n.region
}
