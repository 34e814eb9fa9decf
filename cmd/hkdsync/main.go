package main

import (
	"os"

	"github.com/jhoicas/hkd-sync/internal/interfaces/cli"
)

// @title                      HKD Sync API
// @version                    1.0
// @description                API local del terminal POS: catálogo, ventas y sincronización con el remoto.
// @BasePath                   /
// @securityDefinitions.apikey Bearer
// @in                         header
// @name                       Authorization
// @description                Token de la sesión activa: "Bearer {token}"
func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
