package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/config"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/log"
)

// app holds state shared by the subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
}

func newRootCmd(version string) *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:               "events",
		Short:             "Event seat reservation and registration approval service",
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.loadConfig,
		RunE:              a.runServe,
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default: ./config.yaml if present)")
	root.PersistentFlags().String("port", "", "HTTP listen port")
	root.PersistentFlags().String("store", "", "store driver: postgres, mongo, memory or fixture")

	// Bind flags to viper
	_ = a.v.BindPFlag("server.port", root.PersistentFlags().Lookup("port"))
	_ = a.v.BindPFlag("store.driver", root.PersistentFlags().Lookup("store"))

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			Args:  cobra.NoArgs,
			RunE:  a.runServe,
		},
		newMigrateCmd(a),
		&cobra.Command{
			Use:               "version",
			Short:             "Print the version",
			Args:              cobra.NoArgs,
			PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
			Run: func(cmd *cobra.Command, _ []string) {
				cmd.Println(version)
			},
		},
	)
	return root
}

func (a *app) loadConfig(cmd *cobra.Command, _ []string) error {
	config.LoadDotEnv(".env")

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log, os.Stderr); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}
