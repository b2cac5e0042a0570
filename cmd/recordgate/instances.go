package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/recordgate/adapters/sqlite"
	"github.com/artpar/recordgate/core/formatter"
)

var (
	instancesOutput  string
	instancesPage    int
	instancesPerPage int
)

var instancesCmd = &cobra.Command{
	Use:   "instances MODULE RECORD",
	Short: "List record instances stored by the server",
	Long: `List the instances the HTTP server accepted for one record type.

Examples:
  recordgate instances net.hosts Host
  recordgate instances net.hosts Host -o yaml --page 2 --per-page 50`,
	Args: cobra.ExactArgs(2),
	RunE: runInstances,
}

func init() {
	rootCmd.AddCommand(instancesCmd)

	instancesCmd.Flags().StringVarP(&instancesOutput, "output", "o", "table", "output format: table, json or yaml")
	instancesCmd.Flags().IntVar(&instancesPage, "page", 1, "page number")
	instancesCmd.Flags().IntVar(&instancesPerPage, "per-page", 20, "instances per page")
}

func runInstances(cmd *cobra.Command, args []string) error {
	f, err := lookupFormatter(instancesOutput)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	if s.db == nil {
		return fmt.Errorf("database %s does not exist", s.cfg.Database.DSN)
	}

	mod, err := s.resolver.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	typ, ok := mod.Type(args[1])
	if !ok {
		return fmt.Errorf("module %s has no record %q", mod.Name, args[1])
	}

	page, perPage := max(instancesPage, 1), max(instancesPerPage, 1)
	store := sqlite.NewInstanceStore(s.db)
	list, err := store.List(context.Background(), mod.Name, typ.Name(), (page-1)*perPage, perPage)
	if err != nil {
		return fmt.Errorf("failed to list instances: %w", err)
	}

	rows := make([]map[string]any, len(list))
	for i, inst := range list {
		rows[i] = inst.Fields
	}
	return f.FormatList(cmd.OutOrStdout(), typ, rows, formatter.FormatOptions{})
}
