package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/artpar/restschema/bootstrap"
	"github.com/artpar/restschema/core/registry"
	"github.com/artpar/restschema/core/schema"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Inspect and validate object schemas",
	Long: `Inspect the registered object schemas.

Built-in schemas are always available. Definitions in schemas.dir
(or RESTSCHEMA_SCHEMAS_DIR) are added, replacing built-ins of the same name.`,
}

var schemasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered schemas",
	RunE:  runSchemasList,
}

var schemasShowCmd = &cobra.Command{
	Use:   "show <resource>",
	Short: "Show a schema's operations, parameters and properties",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemasShow,
}

var schemasValidateCmd = &cobra.Command{
	Use:   "validate <file-or-dir>...",
	Short: "Validate schema definition files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSchemasValidate,
}

func init() {
	rootCmd.AddCommand(schemasCmd)
	schemasCmd.AddCommand(schemasListCmd, schemasShowCmd, schemasValidateCmd)
}

func loadRegistry() (*registry.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return bootstrap.LoadSchemas(cfg.Schemas.Dir, zerolog.Nop())
}

func runSchemasList(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	if !noHeader {
		fmt.Fprintln(w, "NAME\tENDPOINT\tMETHODS\tACTIONS")
	}
	for _, s := range reg.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, s.Endpoint, joinOrDash(methodNames(s)), joinOrDash(actionNames(s)))
	}
	return w.Flush()
}

// schemaSummary is the printable form of an ObjectSchema.
type schemaSummary struct {
	Name            string                   `json:"name" yaml:"name"`
	Endpoint        string                   `json:"endpoint" yaml:"endpoint"`
	ObjectType      string                   `json:"objectType" yaml:"objectType"`
	Description     string                   `json:"description,omitempty" yaml:"description,omitempty"`
	Methods         []string                 `json:"methods" yaml:"methods"`
	QueryParameters []paramSummary           `json:"queryParameters,omitempty" yaml:"queryParameters,omitempty"`
	Create          []paramSummary           `json:"create,omitempty" yaml:"create,omitempty"`
	Update          []paramSummary           `json:"update,omitempty" yaml:"update,omitempty"`
	Actions         map[string]actionSummary `json:"actions,omitempty" yaml:"actions,omitempty"`
	Properties      []propertySummary        `json:"properties,omitempty" yaml:"properties,omitempty"`
}

type propertySummary struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type paramSummary struct {
	Name     string `json:"name" yaml:"name"`
	WireName string `json:"wireName,omitempty" yaml:"wireName,omitempty"`
	Type     string `json:"type" yaml:"type"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Default  any    `json:"default,omitempty" yaml:"default,omitempty"`
}

type actionSummary struct {
	Kind       string         `json:"kind" yaml:"kind"`
	Path       string         `json:"path" yaml:"path"`
	Parameters []paramSummary `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

func summarize(s *schema.ObjectSchema) schemaSummary {
	sum := schemaSummary{
		Name:            s.Name,
		Endpoint:        s.Endpoint,
		ObjectType:      s.ObjectType,
		Description:     s.Description,
		Methods:         methodNames(s),
		QueryParameters: summarizeParams(s.QueryParameters),
		Create:          summarizeParams(s.Create.Fields()),
		Update:          summarizeParams(s.Update.Fields()),
	}
	for _, p := range s.Properties {
		typ := string(p.Type)
		if typ == "" {
			typ = string(schema.TypeString)
		}
		sum.Properties = append(sum.Properties, propertySummary{Name: p.Name, Type: typ, Description: p.Description})
	}
	if len(s.Actions) > 0 {
		sum.Actions = make(map[string]actionSummary, len(s.Actions))
		for name, a := range s.Actions {
			sum.Actions[name] = actionSummary{
				Kind:       string(a.Kind),
				Path:       a.Path,
				Parameters: summarizeParams(a.Parameters),
			}
		}
	}
	return sum
}

func summarizeParams(params []schema.ParamSpec) []paramSummary {
	var out []paramSummary
	for _, p := range params {
		ps := paramSummary{
			Name:     p.Name,
			Type:     string(p.Type),
			Required: !p.Optional,
			Default:  p.Default,
		}
		if p.Renamed() {
			ps.WireName = p.WireName
		}
		out = append(out, ps)
	}
	return out
}

func runSchemasShow(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	s, ok := reg.Resolve(args[0])
	if !ok {
		return fmt.Errorf("schema %q not found; run 'restschema schemas list'", args[0])
	}

	sum := summarize(s)
	out := cmd.OutOrStdout()
	if outputFmt == "json" {
		enc := json.NewEncoder(out)
		if !compact {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(sum)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(sum)
}

func runSchemasValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	var result *multierror.Error
	valid := 0

	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}

		var objs []*schema.ObjectSchema
		if info.IsDir() {
			objs, err = schema.ParseDir(path)
		} else {
			var obj *schema.ObjectSchema
			obj, err = schema.ParseFile(path)
			objs = []*schema.ObjectSchema{obj}
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
			continue
		}

		// Endpoints must stay unique within what was given together.
		if _, err := registry.NewWith(objs...); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
			continue
		}
		for _, obj := range objs {
			fmt.Fprintf(out, "ok  %s (%s)\n", obj.Name, path)
			valid++
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d schema(s) valid\n", valid)
	return nil
}

func methodNames(s *schema.ObjectSchema) []string {
	var names []string
	for _, m := range s.SupportedMethods() {
		names = append(names, string(m))
	}
	return names
}

func actionNames(s *schema.ObjectSchema) []string {
	names := make([]string, 0, len(s.Actions))
	for name := range s.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ",")
}
