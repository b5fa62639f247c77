package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/restschema/core/decode"
	"github.com/artpar/restschema/core/schema"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list <resource> [key=value...]",
	Short: "List records, following every page",
	Long: `List records of a resource. Arguments become query parameters;
names the schema does not declare are passed through unchanged.

Examples:
  restschema list meetings
  restschema list meetings meetingType=scheduledMeeting from_=2024-01-01T00:00:00Z
  restschema list recordings --limit 20 -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runList,
}

var getCmd = &cobra.Command{
	Use:   "get <resource> <id>",
	Short: "Get one record",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var createCmd = &cobra.Command{
	Use:   "create <resource> key=value...",
	Short: "Create a record",
	Long: `Create a record. List and dict fields take JSON values.

Example:
  restschema create meeting title=Standup start=2024-01-01T09:00:00Z end=2024-01-01T09:15:00Z \
    'invitees=[{"email":"jo@example.com"}]'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

var updateCmd = &cobra.Command{
	Use:   "update <resource> <id> key=value...",
	Short: "Replace a record",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <resource> <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

var actionCmd = &cobra.Command{
	Use:   "action <resource> <action> [key=value...]",
	Short: "Run a custom action of a resource",
	Long: `Run a custom sub-endpoint action. List actions follow every page.

Examples:
  restschema action recordingReport accessSummary from_=2024-01-01T00:00:00Z
  restschema action recordingReport accessDetail recordingId=abc`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAction,
}

func init() {
	rootCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd, actionCmd)

	listCmd.Flags().IntVar(&listLimit, "limit", 0, "stop after this many records (0 = all)")
	actionCmd.Flags().IntVar(&listLimit, "limit", 0, "stop after this many records of a list action (0 = all)")
}

func runList(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	s, err := app.Dispatcher.Schema(args[0])
	if err != nil {
		return err
	}
	params, err := parseKeyValues(args[1:])
	if err != nil {
		return err
	}

	pager, err := app.Dispatcher.List(cmd.Context(), s.Name, params)
	if err != nil {
		return err
	}
	defer pager.Close()

	records, err := pager.Collect(cmd.Context(), listLimit)
	if err != nil {
		return err
	}
	return printList(cmd, s, records)
}

func runGet(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	s, err := app.Dispatcher.Schema(args[0])
	if err != nil {
		return err
	}
	rec, err := app.Dispatcher.Get(cmd.Context(), s.Name, args[1])
	if err != nil {
		return err
	}
	return printRecord(cmd, s, rec)
}

func runCreate(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	s, err := app.Dispatcher.Schema(args[0])
	if err != nil {
		return err
	}
	fields, err := parseKeyValues(args[1:])
	if err != nil {
		return err
	}
	rec, err := app.Dispatcher.Create(cmd.Context(), s.Name, fields)
	if err != nil {
		return err
	}
	return printRecord(cmd, s, rec)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	s, err := app.Dispatcher.Schema(args[0])
	if err != nil {
		return err
	}
	fields, err := parseKeyValues(args[2:])
	if err != nil {
		return err
	}
	rec, err := app.Dispatcher.Update(cmd.Context(), s.Name, args[1], fields)
	if err != nil {
		return err
	}
	return printRecord(cmd, s, rec)
}

func runDelete(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	if err := app.Dispatcher.Delete(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", args[0], args[1])
	return nil
}

func runAction(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	s, err := app.Dispatcher.Schema(args[0])
	if err != nil {
		return err
	}
	params, err := parseKeyValues(args[2:])
	if err != nil {
		return err
	}

	a, ok := s.Action(args[1])
	if !ok || a.Kind == schema.MethodGet {
		// GetAction reports unknown actions.
		rec, err := app.Dispatcher.GetAction(cmd.Context(), s.Name, args[1], params)
		if err != nil {
			return err
		}
		return printRecord(cmd, s, rec)
	}

	pager, err := app.Dispatcher.ListAction(cmd.Context(), s.Name, a.Name, params)
	if err != nil {
		return err
	}
	defer pager.Close()
	records, err := pager.Collect(cmd.Context(), listLimit)
	if err != nil {
		return err
	}
	return printList(cmd, s, records)
}

func printList(cmd *cobra.Command, s *schema.ObjectSchema, records []decode.Record) error {
	f, opts, err := printer()
	if err != nil {
		return err
	}
	return f.FormatList(cmd.OutOrStdout(), s, records, opts)
}

func printRecord(cmd *cobra.Command, s *schema.ObjectSchema, rec decode.Record) error {
	f, opts, err := printer()
	if err != nil {
		return err
	}
	return f.FormatRecord(cmd.OutOrStdout(), s, rec, opts)
}
