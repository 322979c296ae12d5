package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kunesj/fsdb/internal/manager"
)

var (
	cfgFile string
	verbose bool
	rootDir string

	mgr *manager.Manager
)

// rootCmd is the base command when fsdb is invoked without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "fsdb",
	Short: "fsdb - an embedded, filesystem-backed record store",
	Long: `fsdb stores databases, tables, and records as plain directories and
JSON files on disk. This CLI exercises the same database/table/record
lifecycle a Go program driving the fsdb package would.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mgr = manager.New(afero.NewOsFs(), viper.GetString("root"))
		return nil
	},
}

// Execute adds all child commands to rootCmd and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fsdb.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".fsdb-data", "storage root directory for databases")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads $HOME/.fsdb.yaml (or --config) plus FSDB_-prefixed
// environment overrides, the same pattern as the teacher's
// internal/cli/root.go.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".fsdb")
	}

	viper.SetEnvPrefix("FSDB")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
