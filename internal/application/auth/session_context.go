package auth

import (
	"sync"

	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
)

// SessionContext sesión vigente del proceso. Se construye una vez en el arranque
// y se inyecta en el resolver y en los casos de uso.
type SessionContext struct {
	mu  sync.RWMutex
	cur *entity.Session
}

// NewSessionContext crea un contexto sin sesión.
func NewSessionContext() *SessionContext {
	return &SessionContext{}
}

func (s *SessionContext) Set(sess entity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = &sess
}

// Get devuelve la sesión actual; ok=false si no hay.
func (s *SessionContext) Get() (entity.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return entity.Session{}, false
	}
	return *s.cur, true
}

func (s *SessionContext) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = nil
}

// Unit resuelve la unidad sobre la que opera la sesión. Un operador solo accede a la suya;
// el admin puede indicar cualquiera. requested vacío usa la de la sesión.
func (s *SessionContext) Unit(requested string) (string, error) {
	sess, ok := s.Get()
	if !ok {
		return "", domain.ErrUnauthorized
	}
	if requested == "" || requested == sess.BusinessUnitID {
		return sess.BusinessUnitID, nil
	}
	if sess.Role != entity.RoleAdmin {
		return "", domain.ErrForbidden
	}
	return requested, nil
}
