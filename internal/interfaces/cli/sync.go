package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// sessionUnit exige sesión vigente y resuelve la unidad pedida (vacía = la propia).
func sessionUnit(cmd *cobra.Command, a *App, requested string) (string, error) {
	if _, err := a.Resolver.Current(cmd.Context()); err != nil {
		return "", err
	}
	return a.Resolver.SessionContext().Unit(requested)
}

func optionalArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// NewPullCommand crea el comando pull.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull [unidad]",
		Short: "Reemplaza la copia local de la unidad con el estado remoto",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			unitID, err := sessionUnit(cmd, a, optionalArg(args))
			if err != nil {
				return err
			}
			if err := a.Sync.Pull(cmd.Context(), unitID); err != nil {
				return err
			}
			return rootOpts.output(cmd).Success(map[string]string{"unit_id": unitID}, "descarga completa: "+unitID)
		},
	}
}

// NewDrainCommand crea el comando drain.
func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drain [unidad]",
		Short: "Envía al remoto las mutaciones pendientes de la unidad",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			unitID, err := sessionUnit(cmd, a, optionalArg(args))
			if err != nil {
				return err
			}
			res, err := a.Sync.Drain(cmd.Context(), unitID)
			if err != nil {
				return err
			}
			lines := []string{fmt.Sprintf("entregadas: %d  reintentos: %d  descartadas: %d", res.Delivered, res.Retried, res.DeadLettered)}
			if res.Interrupted {
				lines = append(lines, "interrumpido: sin conexión con el remoto")
			}
			return rootOpts.output(cmd).Success(res, lines...)
		},
	}
}

// NewStatusCommand crea el comando status.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var unit string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Estado de sincronización y mutaciones descartadas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			unitID, err := sessionUnit(cmd, a, unit)
			if err != nil {
				return err
			}
			st, err := a.Sync.Status(cmd.Context(), unitID)
			if err != nil {
				return err
			}
			dead, err := a.Sync.DeadLetters(cmd.Context(), unitID)
			if err != nil {
				return err
			}

			lines := []string{
				fmt.Sprintf("unidad:      %s", st.UnitID),
				fmt.Sprintf("conectado:   %t", st.Connected),
				fmt.Sprintf("pendientes:  %d", st.Pending),
				fmt.Sprintf("descartadas: %d", st.DeadLetters),
			}
			if st.LastPullError != "" {
				lines = append(lines, "último pull: "+st.LastPullError)
			}
			for _, d := range dead {
				lines = append(lines, fmt.Sprintf("  %s %s/%s intentos=%d: %s", d.Op, d.Collection, d.EntityID, d.Attempts, d.Reason))
			}
			return rootOpts.output(cmd).Success(st, lines...)
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "", "unidad a consultar (solo admin)")
	return cmd
}
