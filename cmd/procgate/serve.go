package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/seantiz/procgate/internal/api"
	"github.com/seantiz/procgate/internal/config"
	"github.com/seantiz/procgate/internal/lifecycle"
	"github.com/seantiz/procgate/internal/metastore"
	"github.com/seantiz/procgate/internal/objectstore"
	"github.com/seantiz/procgate/internal/plugin"
	"github.com/seantiz/procgate/internal/queue"
)

func newServeCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}
}

func runServe(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	logger := config.NewLogger(os.Stdout, cfg.Level())

	logger.Info("procgate: starting",
		"listen_addr", cfg.ListenAddr(),
		"metadata_driver", cfg.Metadata.Driver,
		"queue_driver", cfg.Queue.Driver,
		"object_driver", cfg.Objects.Driver,
		"bucket", cfg.Objects.Bucket,
	)

	srv, cleanup, err := buildServer(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return srv.Run()
}

// adapters are the three backing stores behind the lifecycle service.
type adapters struct {
	meta    metastore.Store
	objects objectstore.Store
	queue   queue.Queue
}

func (a *adapters) close() error {
	var errs []error
	if a.queue != nil {
		errs = append(errs, a.queue.Close())
	}
	if a.meta != nil {
		errs = append(errs, a.meta.Close())
	}
	return errors.Join(errs...)
}

func openAdapters(cfg config.Config) (*adapters, error) {
	a := &adapters{}

	meta, err := metastore.Open(metastore.Options{
		Driver:     cfg.Metadata.Driver,
		RedisURL:   cfg.Metadata.RedisURL,
		SQLitePath: cfg.Metadata.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	a.meta = meta

	objects, err := objectstore.Open(objectstore.Options{
		Driver:          cfg.Objects.Driver,
		Endpoint:        cfg.Objects.EndpointURL,
		Region:          cfg.Objects.Region,
		AccessKeyID:     cfg.Objects.AccessKeyID,
		SecretAccessKey: cfg.Objects.SecretAccessKey,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open object store: %w", err)
	}
	a.objects = objects

	q, err := queue.Open(queue.Options{
		Driver:   cfg.Queue.Driver,
		RedisURL: cfg.Metadata.RedisURL,
		NATSURL:  cfg.Queue.NATSURL,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open queue: %w", err)
	}
	a.queue = q

	return a, nil
}

// newRegistry returns the plugin registry with the built-in components.
func newRegistry(cfg config.Config) *plugin.Registry {
	reg := plugin.NewRegistry()
	api.RegisterBuiltins(reg, cfg.App.Title, cfg.App.Version)
	return reg
}

// buildServer wires adapters, the lifecycle service and the HTTP server. The
// returned cleanup closes the adapters.
func buildServer(cfg config.Config, logger *slog.Logger) (*api.Server, func(), error) {
	a, err := openAdapters(cfg)
	if err != nil {
		return nil, nil, err
	}

	svc := lifecycle.NewService(a.meta, a.objects, a.queue, lifecycle.Options{
		Bucket:   cfg.Objects.Bucket,
		QueueKey: cfg.Queue.Key,
	}, logger)

	srv, err := api.NewServer(cfg.ListenAddr(), svc, newRegistry(cfg), api.Options{
		Title:           cfg.App.Title,
		Version:         cfg.App.Version,
		RootPath:        cfg.App.RootPath,
		ExternalRouters: cfg.App.ExternalRouters,
	}, logger)
	if err != nil {
		a.close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := a.close(); err != nil {
			logger.Error("close adapters", "error", err)
		}
	}
	return srv, cleanup, nil
}

func newPluginsCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the router locators available to external_routers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			var rows [][]string
			for _, info := range newRegistry(cfg).List() {
				rows = append(rows, []string{info.Locator, string(info.Kind)})
			}
			return writeRows(cmd.OutOrStdout(), []string{"LOCATOR", "KIND"}, rows)
		},
	}
}
