package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/coreman2200/branchlight/internal/config"
	"github.com/coreman2200/branchlight/internal/schema"
)

func newSchemaCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Export the parameter registry or the config file schema",
	}
	registry := &cobra.Command{
		Use:   "registry",
		Short: "Print the parameter and animation tables as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := json.MarshalIndent(schema.Export(), "", "  ")
			if err != nil {
				return err
			}
			return emit(out, append(b, '\n'))
		},
	}
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Print the JSON Schema of config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := config.SchemaJSON()
			if err != nil {
				return err
			}
			return emit(out, b)
		},
	}
	cmd.PersistentFlags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	cmd.AddCommand(registry, cfg)
	return cmd
}

// emit writes b to stdout, or atomically to path.
func emit(path string, b []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(b)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
