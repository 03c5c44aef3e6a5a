package cmd

import (
	"github.com/jtoivane/retkikartta/cmd/cleanup"
	"github.com/jtoivane/retkikartta/cmd/refresh"
	"github.com/jtoivane/retkikartta/cmd/serve"
	"github.com/jtoivane/retkikartta/internal/conf"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "retkikartta",
		Short: "Retkikartta tourism location server",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		serve.Command(settings),
		refresh.Command(settings),
		cleanup.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines the global flags for the root command and binds them to
// viper so command-line arguments take precedence over the config file.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	rootCmd.PersistentFlags().StringVarP(&settings.WebServer.Port, "port", "p", settings.WebServer.Port, "Port for the web server")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		cobra.CheckErr(err)
	}
	if err := viper.BindPFlag("webserver.port", rootCmd.PersistentFlags().Lookup("port")); err != nil {
		cobra.CheckErr(err)
	}
}
