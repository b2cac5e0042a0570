package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/artpar/recordgate/core/formatter"
	"github.com/artpar/recordgate/core/instrument"
)

var (
	newLogAccess bool
	outputFormat string
)

var newCmd = &cobra.Command{
	Use:   "new MODULE RECORD [VALUE...] [FIELD=VALUE...]",
	Short: "Construct a record instance",
	Long: `Construct one record and print it. Plain values bind by position;
FIELD=VALUE pairs bind by name. Values are read as YAML scalars, so 80 is
an integer, 1.5 a float and true a boolean; quote them to force a string.

Examples:
  recordgate new net.hosts Host 10.0.0.1 8080
  recordgate new net.hosts Host address=10.0.0.1 port=8080
  recordgate new net.hosts Host 10.0.0.1 port=8080 -o json`,
	Args: cobra.MinimumNArgs(2),
	RunE: runNew,
}

func init() {
	rootCmd.AddCommand(newCmd)

	newCmd.Flags().BoolVar(&newLogAccess, "log-access", false, "log construction and field reads (with --verbose)")
	newCmd.Flags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json or yaml (default: the instance on one line)")
}

func runNew(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	mod, err := s.resolver.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	typ, ok := mod.Type(args[1])
	if !ok {
		return fmt.Errorf("module %s has no record %q (have %s)", mod.Name, args[1], strings.Join(mod.Names(), ", "))
	}

	positional, named, err := parseValues(args[2:], typ.Fields())
	if err != nil {
		return err
	}

	construct := instrument.ConstructorFunc(typ.New)
	if newLogAccess {
		construct = instrument.Constructor(s.logger, typ)
	}
	inst, err := construct(positional, named)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == "" {
		fmt.Fprintln(out, inst)
		return nil
	}
	f, err := lookupFormatter(outputFormat)
	if err != nil {
		return err
	}

	values := inst.Values()
	if newLogAccess {
		values = instrument.Observe(s.logger, inst).Values()
	}
	return f.FormatRecord(out, typ, values, formatter.FormatOptions{})
}

func lookupFormatter(name string) (formatter.Formatter, error) {
	f, ok := formatter.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (have %s)", name, strings.Join(formatter.List(), ", "))
	}
	return f, nil
}

// parseValues splits command line values into positional and named
// arguments. An argument is named when the text before its first = is one
// of fields, so positional values may themselves contain =.
func parseValues(args []string, fields []string) ([]any, map[string]any, error) {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f] = true
	}

	var positional []any
	named := make(map[string]any)
	for _, arg := range args {
		if name, raw, ok := strings.Cut(arg, "="); ok && known[name] {
			if _, dup := named[name]; dup {
				return nil, nil, fmt.Errorf("field %q given twice", name)
			}
			named[name] = parseScalar(raw)
			continue
		}
		if len(named) > 0 {
			return nil, nil, fmt.Errorf("positional value %q after named values", arg)
		}
		positional = append(positional, parseScalar(arg))
	}
	return positional, named, nil
}

// parseScalar reads s as a YAML scalar. Anything that is not a plain
// scalar stays a string.
func parseScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	switch v.(type) {
	case int, float64, bool, string:
		return v
	default:
		return s
	}
}
