package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/hkd-sync/internal/application/dto"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
)

func toSessionDTO(s entity.Session, ttl time.Duration) dto.SessionResponse {
	return dto.SessionResponse{
		UserID:         s.UserID,
		BusinessUnitID: s.BusinessUnitID,
		Role:           s.Role,
		LoginTimestamp: s.LoginTimestamp,
		ExpiresAt:      s.LoginTimestamp.Add(ttl),
	}
}

func sessionLines(s dto.SessionResponse) []string {
	return []string{
		fmt.Sprintf("unidad:  %s", s.BusinessUnitID),
		fmt.Sprintf("rol:     %s", s.Role),
		fmt.Sprintf("login:   %s", s.LoginTimestamp.Local().Format(time.DateTime)),
		fmt.Sprintf("vence:   %s", s.ExpiresAt.Local().Format(time.DateTime)),
	}
}

// NewLoginCommand crea el comando login.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login <teléfono> <secreto>",
		Short: "Inicia sesión; resuelve primero contra la copia local",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			sess, err := a.Resolver.Login(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			// La descarga inicial corre en segundo plano; el proceso la espera antes de salir.
			if err := a.Sync.WaitReady(ctx, sess.BusinessUnitID); err != nil {
				a.Log.Warn().Err(err).Str("unit_id", sess.BusinessUnitID).Msg("descarga inicial incompleta, se usan los datos locales")
			}
			out := toSessionDTO(sess, a.Config.Auth.SessionTTL)
			return rootOpts.output(cmd).Success(dto.LoginResponse{Token: sess.Token, Session: out}, sessionLines(out)...)
		},
	}
}

// NewLogoutCommand crea el comando logout.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Cierra la sesión del terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Resolver.Logout(cmd.Context()); err != nil {
				return err
			}
			return rootOpts.output(cmd).Success(nil, "sesión cerrada")
		},
	}
}

// NewWhoamiCommand crea el comando whoami.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Muestra la sesión vigente",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			sess, err := a.Resolver.Current(cmd.Context())
			if err != nil {
				return err
			}
			out := toSessionDTO(sess, a.Config.Auth.SessionTTL)
			return rootOpts.output(cmd).Success(out, sessionLines(out)...)
		},
	}
}
