package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/artpar/restschema/core/codegen"
	"github.com/artpar/restschema/core/schema"
)

var (
	genPackage string
	genOutFile string
)

var genCmd = &cobra.Command{
	Use:   "gen [resource...]",
	Short: "Generate typed Go wrappers from schemas",
	Long: `Generate a Go file with, per schema, a record type carrying one
typed accessor per property and an API type whose methods call the
dispatcher.

If no resource is given, every registered schema is generated.

Examples:
  # Generate to stdout
  restschema gen meeting

  # Write a file for all schemas
  restschema gen --package webex --out ./webex/resources_gen.go`,
	RunE: runGen,
}

func init() {
	rootCmd.AddCommand(genCmd)

	genCmd.Flags().StringVarP(&genPackage, "package", "p", codegen.DefaultPackage, "package name of the generated file")
	genCmd.Flags().StringVar(&genOutFile, "out", "", "output file (default: stdout)")
}

func runGen(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	var targets []*schema.ObjectSchema
	if len(args) == 0 {
		targets = reg.List()
	}
	for _, name := range args {
		s, ok := reg.Resolve(name)
		if !ok {
			return fmt.Errorf("schema %q not found; run 'restschema schemas list'", name)
		}
		targets = append(targets, s)
	}

	code, err := codegen.Generate(genPackage, targets)
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}

	if genOutFile == "" {
		_, err := cmd.OutOrStdout().Write(code)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(genOutFile), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(genOutFile, code, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", genOutFile, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Generated %d type(s) in %s\n", len(targets), genOutFile)
	return nil
}
