package main

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SEARCHC"

func newRootCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "searchc",
		Short: "searchc - compile retail search payloads offline",
		Long: `searchc compiles a search payload against the entity schema and prints the
query descriptor together with the SQL it renders to. It can also print the
rule set compiled from a permission matrix.

Every flag can also be given as an environment variable prefixed with
"SEARCHC_", e.g. SEARCHC_DIALECT=mysql. Flags take precedence.`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}
	cmd.SetOut(out)
	cmd.AddCommand(newCompileCmd(), newRulesCmd())
	return cmd
}

// bindViper binds the command's flags and SEARCHC_* env vars to a fresh
// viper instance.
func bindViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
