package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage databases",
}

var dbCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mgr.CreateDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("database %q created\n", args[0])
		return nil
	},
}

var dbOpenCmd = &cobra.Command{
	Use:   "open <name>",
	Short: "Open a database (closing any currently open one)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mgr.OpenDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("database %q opened\n", args[0])
		return nil
	},
}

var dbCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the currently open database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mgr.CloseDatabase(); err != nil {
			return err
		}
		fmt.Println("database closed")
		return nil
	},
}

var dbDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a database from disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mgr.DeleteDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("database %q deleted\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbCreateCmd, dbOpenCmd, dbCloseCmd, dbDeleteCmd)
}
