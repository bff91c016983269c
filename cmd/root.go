package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/metal-toolbox/sumflash/internal/model"
)

var rootCmd = &cobra.Command{
	Use:   model.AppName,
	Short: "sumflash updates server firmware from an SPP ISO attached over BMC virtual media",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var (
	cfgFile  string
	logLevel int
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file")
	rootCmd.PersistentFlags().IntVar(&logLevel, "log-level", 0, "set logging level - 0: info, 1: debug, 2: trace")
}
