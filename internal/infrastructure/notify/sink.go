// Package notify implementaciones de ports.NotificationSink.
package notify

import (
	"sort"

	"github.com/jhoicas/hkd-sync/internal/application/ports"
	"github.com/jhoicas/hkd-sync/pkg/logger"
)

// LogSink publica cada evento como una línea estructurada del logger.
type LogSink struct {
	log *logger.Logger
}

var _ ports.NotificationSink = (*LogSink)(nil)

// NewLogSink construye el sink principal.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.Component("notify")}
}

func (s *LogSink) Notify(event string, fields map[string]string) {
	ev := s.log.Info().Str("event", event)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev = ev.Str(k, fields[k])
	}
	ev.Msg("notificación")
}

// NopSink descarta las notificaciones (modo degradado o tests).
type NopSink struct{}

var _ ports.NotificationSink = NopSink{}

func (NopSink) Notify(string, map[string]string) {}

// New elige el sink según configuración: "none" descarta, cualquier otro valor registra en el log.
func New(kind string, log *logger.Logger) ports.NotificationSink {
	if kind == "none" || log == nil {
		return NopSink{}
	}
	return NewLogSink(log)
}
