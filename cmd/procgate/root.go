package main

import (
	"github.com/spf13/cobra"

	"github.com/seantiz/procgate/internal/config"
)

// flags holds command-line overrides. Only flags the user set are applied.
type flags struct {
	configPath string
	host       string
	port       int
	logLevel   string
	rootPath   string
}

func newRootCommand() *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:           "procgate",
		Short:         "Process lifecycle gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, &f)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "TOML configuration file (default $PROCGATE_CONFIG)")
	pf.StringVar(&f.host, "host", "", "Bind host")
	pf.IntVarP(&f.port, "port", "P", 0, "Bind port")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&f.rootPath, "root-path", "", "Prefix for every route, e.g. /api")

	rootCmd.AddCommand(newServeCommand(&f))
	rootCmd.AddCommand(newConfigCommand(&f))
	rootCmd.AddCommand(newPluginsCommand(&f))

	return rootCmd
}

// loadConfig resolves configuration and applies the flags the user set.
func loadConfig(cmd *cobra.Command, f *flags) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}

	fs := cmd.Flags()
	if fs.Changed("host") {
		cfg.App.Host = f.host
	}
	if fs.Changed("port") {
		cfg.App.Port = f.port
	}
	if fs.Changed("log-level") {
		cfg.App.LogLevel = f.logLevel
	}
	if fs.Changed("root-path") {
		cfg.App.RootPath = f.rootPath
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newConfigCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return cfg.WriteTOML(cmd.OutOrStdout())
		},
	}
}
