package main

import (
	"fmt"

	"retail-backoffice/internal/domain"
	"retail-backoffice/internal/filter"
	"retail-backoffice/internal/repository"

	"github.com/spf13/cobra"
)

type compileOutput struct {
	Entity     string                  `json:"entity"`
	Dialect    string                  `json:"dialect"`
	Descriptor *filter.QueryDescriptor `json:"descriptor"`
	SQL        string                  `json:"sql"`
	Args       []any                   `json:"args"`
	CountSQL   string                  `json:"count_sql"`
}

func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a search payload and print the descriptor and SQL",
		Example: `  searchc compile --entity Product --params '{"page":1,"where":[{"attribute":"price","type":"greaterThan","value":10}]}'
  SEARCHC_DIALECT=mysql searchc compile --entity Order --params '{"where":[{"attribute":"deliveryDate","type":"lastXDays","value":7}]}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := bindViper(cmd)
			if err != nil {
				return err
			}
			entityName := v.GetString("entity")
			if entityName == "" {
				return fmt.Errorf("--entity is required")
			}

			registry, err := domain.LoadSchema(v.GetString("schema"))
			if err != nil {
				return err
			}
			e, ok := registry.Entity(entityName)
			if !ok || e.Abstract {
				return fmt.Errorf("unknown entity: %s", entityName)
			}

			params := &filter.SearchParams{}
			if raw := v.GetString("params"); raw != "" {
				if params, err = filter.ParseSearchParams([]byte(raw)); err != nil {
					return err
				}
			}

			renderer := repository.NewRenderer(v.GetString("dialect"))
			q, err := filter.Compile(e, params, filter.Options{
				TextFilterFields: e.TextFilterFields,
				MappedFields:     e.MappedFields,
				PerPage:          v.GetInt("per-page"),
				Dialect:          v.GetString("dialect"),
			})
			if err != nil {
				return err
			}

			stmt, err := renderer.Select(e, q)
			if err != nil {
				return err
			}
			count, err := renderer.Count(e, q)
			if err != nil {
				return err
			}
			args := stmt.Args
			if args == nil {
				args = []any{}
			}
			return printJSON(cmd, compileOutput{
				Entity:     e.Name,
				Dialect:    renderer.Dialect(),
				Descriptor: q,
				SQL:        stmt.SQL,
				Args:       args,
				CountSQL:   count.SQL,
			})
		},
	}
	cmd.Flags().String("entity", "", "entity name or table")
	cmd.Flags().String("params", "", "search params JSON")
	cmd.Flags().String("schema", "", "entity schema YAML (default: embedded retail schema)")
	cmd.Flags().String("dialect", repository.DialectPostgres, "target dialect: postgres, sqlite, mysql, mariadb")
	cmd.Flags().Int("per-page", filter.DefaultPerPage, "default page size")
	return cmd
}
