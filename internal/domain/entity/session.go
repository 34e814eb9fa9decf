package entity

import "time"

// Session sesión activa del proceso. Vence pasado el TTL desde LoginTimestamp.
type Session struct {
	UserID         string    `json:"userId"`
	BusinessUnitID string    `json:"businessUnitId"`
	Role           string    `json:"role"`
	LoginTimestamp time.Time `json:"loginTimestamp"`
	Token          string    `json:"token,omitempty"`
}

// ExpiredAt indica si la sesión ya no es válida en now.
func (s Session) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LoginTimestamp) >= ttl
}
