package ports

// Eventos publicados hacia colaboradores externos.
const (
	EventRemoteConnected      = "remote-connected"
	EventRemoteDisconnected   = "remote-disconnected"
	EventPullFailed           = "pull-failed"
	EventMutationDeadLettered = "mutation-dead-lettered"
)

// NotificationSink destino de notificaciones hacia la UI u operadores.
// La implementación se elige explícitamente al construir la aplicación.
type NotificationSink interface {
	Notify(event string, fields map[string]string)
}
