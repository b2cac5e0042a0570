package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve MODULE",
	Short: "Resolve a module and describe its records",
	Long: `Look up a module the way the server does: each schema directory in
order, then the document database.

Examples:
  recordgate resolve net.hosts
  recordgate resolve net.hosts --schema-dir ./schemas`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	mod, err := s.resolver.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Module %s (%s)\n\n", mod.Name, mod.Source)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RECORD\tFIELD\tKIND\tCHECKS")
	fmt.Fprintln(w, "------\t-----\t----\t------")
	for _, t := range mod.Types() {
		for _, f := range t.Describe() {
			checks := make([]string, len(f.Checks))
			for i, c := range f.Checks {
				checks[i] = string(c)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name(), f.Name, f.Kind, strings.Join(checks, ","))
		}
	}
	return w.Flush()
}
