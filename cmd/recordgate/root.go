package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/recordgate/adapters/sqlite"
	"github.com/artpar/recordgate/config"
	"github.com/artpar/recordgate/core/resolver"
)

var (
	// Global flags
	cfgFile    string
	schemaDirs []string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recordgate",
	Short: "Declarative record types from schema documents",
	Long: `recordgate builds validated record types from XML and YAML schema
documents and serves them over HTTP.

Quick start:
  recordgate check schemas/hosts.struct       # Validate a schema document
  recordgate resolve net.hosts                # Describe a module
  recordgate new net.hosts Host 10.0.0.1 80   # Construct a record
  recordgate serve                            # Start the HTTP server`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "recordgate.yaml", "config file path")
	rootCmd.PersistentFlags().StringSliceVarP(&schemaDirs, "schema-dir", "s", nil, "schema directories, searched before the configured paths")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level to stderr")
}

// Output symbols
const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

func cliLogger(w io.Writer) zerolog.Logger {
	if !verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// session is the state shared by commands that resolve modules.
type session struct {
	cfg      *config.Config
	logger   zerolog.Logger
	db       *sqlite.DB
	docs     *sqlite.DocumentStore
	resolver *resolver.Resolver
}

// openSession loads configuration and builds a resolver over the
// --schema-dir flags, the configured schema paths and, when the database
// exists, the document store.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	s := &session{cfg: cfg, logger: cliLogger(cmd.ErrOrStderr())}

	dirs := append(append([]string(nil), schemaDirs...), cfg.Schema.Paths...)
	opts := []resolver.Option{
		resolver.WithLogger(s.logger),
		resolver.WithDirs(dirs...),
	}

	if cfg.Database.Enabled {
		if _, err := os.Stat(cfg.Database.DSN); err == nil {
			db, err := openDatabase(cfg)
			if err != nil {
				return nil, err
			}
			s.db = db
			s.docs = sqlite.NewDocumentStore(db)
			opts = append(opts, resolver.WithLocators(s.docs))
		}
	}

	s.resolver = resolver.New(opts...)
	return s, nil
}

func (s *session) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func openDatabase(cfg *config.Config) (*sqlite.DB, error) {
	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}
