package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jhoicas/hkd-sync/pkg/config"
	"github.com/jhoicas/hkd-sync/pkg/logger"
)

// RootOptions flags globales.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DBPath  string
	Backend string
}

// ValidFormats formatos de salida permitidos.
var ValidFormats = []string{"text", "json"}

// NewRootCommand crea el comando raíz de hkdsync.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hkdsync",
		Short: "Terminal POS offline-first para hộ kinh doanh",
		Long: `hkdsync mantiene una copia local del menú y las ventas de cada unidad de negocio
y sincroniza los cambios con el almacén remoto cuando hay conexión.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("formato inválido %q: debe ser uno de %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "logs en nivel debug")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "formato de salida (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "archivo SQLite local (LOCAL_DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "remote", "", "backend remoto: memory|firebase|postgres|redis (REMOTE_BACKEND)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewPullCommand(opts))
	cmd.AddCommand(NewDrainCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

// loadConfig env y archivo vía viper; los flags explícitos tienen prioridad.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	v := viper.New()
	if o.DBPath != "" {
		v.Set("LOCAL_DB_PATH", o.DBPath)
	}
	if o.Backend != "" {
		v.Set("REMOTE_BACKEND", o.Backend)
	}
	if o.Verbose {
		v.Set("LOG_LEVEL", "debug")
	}
	return config.LoadFrom(v)
}

// open carga configuración, logger (a stderr del comando) y el contenedor App.
func (o *RootOptions) open(cmd *cobra.Command) (*App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Output: cmd.ErrOrStderr()})
	return Build(cmd.Context(), cfg, log)
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
