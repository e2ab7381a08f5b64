package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"go-migrate-pipeline/internal/api"
	"go-migrate-pipeline/pkg/router"
)

// ServeCmd serves the reporting API.
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Serve the migration reporting API",
	Long: `Serve migration status, source, process and destination reports and
id map messages as JSON, and start imports and rollbacks over HTTP.
API docs are served at /swagger/index.html.`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().String("addr", "", "Listen address (default :8080)")
	_ = settings.BindPFlag("server.addr", ServeCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	r := router.New(app.Log.Named("http"))
	h := api.RegisterRoutes(ctx, r, app.Catalog, app.Runs, app.Log)

	pterm.Info.Printf("Serving %d migrations on %s\n", len(app.Catalog.IDs()), app.Config.Server.Addr)
	err = r.Serve(ctx, router.ServerConfig{
		Addr:         app.Config.Server.Addr,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
	})
	// runs started over HTTP stop with ctx
	stop()
	h.Wait()
	if err != nil {
		return err
	}
	pterm.Success.Println("Server stopped cleanly")
	return nil
}
