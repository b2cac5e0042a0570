package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/recordgate/core/registry"
	"github.com/artpar/recordgate/core/resolver"
	"github.com/artpar/recordgate/core/rule"
	"github.com/artpar/recordgate/core/schema"
)

var checkCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Validate schema documents",
	Long: `Parse each schema document and build its record types without
registering them.

Examples:
  recordgate check schemas/hosts.struct
  recordgate check schemas/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	catalog := rule.Default()

	failed := 0
	for _, path := range args {
		mod, err := loadFile(catalog, path)
		if err != nil {
			failed++
			fmt.Fprintf(out, "  %s %s\n", crossMark, path)
			fmt.Fprintf(out, "      Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "  %s %s\n", checkMark, path)
		for _, t := range mod.Types() {
			fmt.Fprintf(out, "      %s\n", t)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}

// loadFile builds the module a schema file declares, named after the file.
func loadFile(catalog *rule.Catalog, path string) (*registry.Module, error) {
	format, ok := schema.FormatFromPath(path)
	if !ok {
		return nil, fmt.Errorf("%s: unknown schema file extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return resolver.Load(resolver.Source{
		Module: moduleFromPath(path),
		Origin: path,
		Format: format,
		Data:   data,
	}, catalog)
}

func moduleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
