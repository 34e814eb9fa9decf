package dto

// PageRequest paginación y búsqueda para listados locales.
type PageRequest struct {
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
	Query  string `query:"q"`
	UnitID string `query:"unit_id"` // solo admin; vacío = unidad de la sesión
}

// Normalize aplica los límites: Limit en [1,100] (20 por defecto), Offset >= 0.
func (p *PageRequest) Normalize() {
	switch {
	case p.Limit <= 0:
		p.Limit = 20
	case p.Limit > 100:
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// Window devuelve los índices [from, to) de la página sobre total elementos.
func (p PageRequest) Window(total int) (from, to int) {
	from = min(p.Offset, total)
	to = min(from+p.Limit, total)
	return from, to
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
