package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/recordgate/bootstrap"
	"github.com/artpar/recordgate/config"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the recordgate HTTP server.

The server will:
  - Load configuration from recordgate.yaml (or --config)
  - Or load configuration from RECORDGATE_* environment variables
  - Open the schema document database
  - Resolve modules from the schema paths on first reference

Environment variables (for Docker deployments):
  RECORDGATE_SCHEMA_PATHS   - Schema directories, separated by the OS list separator
  RECORDGATE_DATABASE_DSN   - Database path (default: recordgate.db)
  RECORDGATE_SERVER_PORT    - Server port (default: 8080)
  RECORDGATE_LOG_LEVEL      - Log level: debug, info, warn, error

Examples:
  recordgate serve
  recordgate serve --config /etc/recordgate/config.yaml
  recordgate serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := bootstrap.Options{}

	if _, err := os.Stat(cfgFile); err == nil && hotReload {
		// Hot reload only works with a config file
		opts.ConfigPath = cfgFile
	} else {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return err
		}
		opts.Config = cfg
	}
	if len(schemaDirs) > 0 && opts.Config != nil {
		opts.Config.Schema.Paths = append(append([]string(nil), schemaDirs...), opts.Config.Schema.Paths...)
	}

	app, err := bootstrap.New(opts)
	if err != nil {
		return err
	}

	// Run (blocks until shutdown)
	return app.Run()
}
