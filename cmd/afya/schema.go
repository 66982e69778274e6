package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"afyafamilia/pkg/domain"
)

type categoryInfo struct {
	Name      domain.Category   `json:"name"`
	Mutable   bool              `json:"mutable,omitempty"`
	Audit     bool              `json:"audit,omitempty"`
	Singleton bool              `json:"singleton,omitempty"`
	DateField string            `json:"date_field,omitempty"`
	TypeField string            `json:"type_field,omitempty"`
	Indices   []domain.IndexKey `json:"indices"`
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the category registry and schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cats []categoryInfo
			for _, c := range domain.Categories() {
				spec, _ := domain.Spec(c)
				cats = append(cats, categoryInfo{
					Name:      c,
					Mutable:   spec.Mutable,
					Audit:     spec.Audit,
					Singleton: spec.Singleton,
					DateField: spec.DateField,
					TypeField: spec.TypeField,
					Indices:   spec.Indices,
				})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Version    int            `json:"version"`
				Categories []categoryInfo `json:"categories"`
			}{domain.SchemaVersion, cats})
		},
	}
}
