package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artpar/recordgate/adapters/sqlite"
	"github.com/artpar/recordgate/config"
	"github.com/artpar/recordgate/core/schema"
)

var importModule string

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Store a schema document in the database",
	Long: `Store a schema document so the server can resolve its module without
the file. The document is parsed before it is stored.

Examples:
  recordgate import schemas/hosts.struct --module net.hosts
  recordgate import points.yaml            # module name: points`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List stored schema documents",
	Args:  cobra.NoArgs,
	RunE:  runDocuments,
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(documentsCmd)

	importCmd.Flags().StringVarP(&importModule, "module", "m", "", "module name (default: file name without extension)")
}

func openStore() (*sqlite.DB, *sqlite.DocumentStore, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}
	if !cfg.Database.Enabled {
		return nil, nil, fmt.Errorf("the document database is disabled in %s", cfgFile)
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, sqlite.NewDocumentStore(db), nil
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, ok := schema.FormatFromPath(path)
	if !ok {
		return fmt.Errorf("%s: unknown schema file extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	module := importModule
	if module == "" {
		module = moduleFromPath(path)
	}

	db, docs, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := docs.Put(context.Background(), module, format, data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  %s Stored %s as module %s\n", checkMark, path, module)
	return nil
}

func runDocuments(cmd *cobra.Command, args []string) error {
	db, docs, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	list, err := docs.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No documents stored.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Store one with: recordgate import schemas/hosts.struct --module net.hosts")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tFORMAT\tUPDATED")
	fmt.Fprintln(w, "------\t------\t-------")
	for _, d := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Module, d.Format, d.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
