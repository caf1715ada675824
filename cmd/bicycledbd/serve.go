package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bicycledb/bicycledb/bootstrap"
	"github.com/bicycledb/bicycledb/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the BicycleDB gRPC server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfgFile) > 0 {
			config.SetConfigFile(cfgFile)
		}
		if debug {
			os.Setenv(config.LOGGER_LEVEL_ENV, "debug")
		}

		if err := bootstrap.Bootstrap(); err != nil {
			return err
		}
		return bootstrap.Run()
	},
}
