package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jhoicas/hkd-sync/internal/domain"
)

// Códigos de salida.
const (
	ExitSuccess     = 0
	ExitFailure     = 1 // error genérico
	ExitUnavailable = 2 // remoto o almacén local no disponibles
	ExitAuth        = 3 // sin sesión, sesión vencida o credenciales inválidas
)

// ExitCode traduce el error de un comando a código de salida.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, domain.ErrRemoteUnavailable), errors.Is(err, domain.ErrStorageUnavailable):
		return ExitUnavailable
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrInvalidCredential), errors.Is(err, domain.ErrForbidden):
		return ExitAuth
	}
	return ExitFailure
}

// OutputFormatter salida json o texto de los comandos.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Response sobre JSON de la salida.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// Success en json escribe data; en texto escribe las líneas dadas.
func (f *OutputFormatter) Success(data any, lines ...string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(f.Writer, l); err != nil {
			return err
		}
	}
	return nil
}
