package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kunesj/fsdb"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Manage tables in the currently open database",
}

var tableSchemaFile string

var tableCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a table, reading its field schema as JSON from --schema or stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw []map[string]any

		var data []byte
		var err error
		if tableSchemaFile != "" {
			data, err = os.ReadFile(tableSchemaFile)
		} else {
			data, err = readAllStdin()
		}
		if err != nil {
			return fmt.Errorf("reading schema: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("parsing schema JSON: %w", err)
			}
		}

		defs := make([]fsdb.FieldDef, 0, len(raw))
		for _, m := range raw {
			def, err := fsdb.FieldDefFromDict(m)
			if err != nil {
				return err
			}
			defs = append(defs, def)
		}

		if _, err := mgr.CreateTable(args[0], defs); err != nil {
			return err
		}
		fmt.Printf("table %q created\n", args[0])
		return nil
	},
}

var tableDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mgr.DeleteTable(args[0]); err != nil {
			return err
		}
		fmt.Printf("table %q deleted\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tableCmd)
	tableCreateCmd.Flags().StringVar(&tableSchemaFile, "schema", "", "path to a JSON file describing the table's fields (default: read from stdin)")
	tableCmd.AddCommand(tableCreateCmd, tableDeleteCmd)
}

func readAllStdin() ([]byte, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return nil, err
	}
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		// no piped input
		return nil, nil
	}
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return buf, nil
}
