package main

import (
	"encoding/json"
	"fmt"

	"retail-backoffice/internal/ability"

	"github.com/spf13/cobra"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Short:   "Print the rules compiled from a permission matrix",
		Example: `  searchc rules --permissions '{"Product":{"read":true,"edit":true}}' --fields '{"Product":{"read":["name","price"]}}'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := bindViper(cmd)
			if err != nil {
				return err
			}
			var perms ability.PermissionMatrix
			if raw := v.GetString("permissions"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &perms); err != nil {
					return fmt.Errorf("invalid --permissions: %w", err)
				}
			}
			var fields ability.FieldPermissionMatrix
			if raw := v.GetString("fields"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &fields); err != nil {
					return fmt.Errorf("invalid --fields: %w", err)
				}
			}
			rules := ability.BuildRules(perms, fields, v.GetBool("admin"))
			if rules == nil {
				rules = []ability.Rule{}
			}
			return printJSON(cmd, rules)
		},
	}
	cmd.Flags().String("permissions", "", "permission matrix JSON: {subject: true | {action: bool}}")
	cmd.Flags().String("fields", "", "field permission matrix JSON: {subject: {read: [...], edit: [...]}}")
	cmd.Flags().Bool("admin", false, "append the manage-all admin rule")
	return cmd
}
