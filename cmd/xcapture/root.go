package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"x-post-capture/internal/config"
	"x-post-capture/internal/logger"
)

var version = "dev"

// app carries what every subcommand shares once the root has loaded it.
type app struct {
	v       *viper.Viper
	cfgFile string
	debug   bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New(), log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "xcapture",
		Short: "Capture X posts into a local archive",
		Long: `xcapture opens an X post in Chrome, reconstructs the author's own
reply thread, follows linked long-form articles and writes the result
as <status_id>.json and <status_id>.md.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
		PersistentPostRun: func(*cobra.Command, []string) { _ = a.log.Sync() },
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"config file (default is ./xcapture.yaml or ~/.config/xcapture/xcapture.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(newCaptureCommand(a), newHistoryCommand(a))
	return root
}

// load reads .env, the config file, the environment and bound flags, then
// builds the process logger.
func (a *app) load(*cobra.Command, []string) error {
	config.LoadEnvFile()
	if err := config.Setup(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.cfgFile != "")
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(log)
	a.cfg, a.log = cfg, log
	return nil
}

// bindFlags maps command flags onto config keys. A flag only overrides the
// config when it was set on the command line.
func (a *app) bindFlags(cmd *cobra.Command, keys map[string]string) {
	for name, key := range keys {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}
