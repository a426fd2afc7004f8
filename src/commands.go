package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/contre95/mdlive/src/assets"
	"github.com/contre95/mdlive/src/features/config"
	"github.com/contre95/mdlive/src/features/hosting"
	"github.com/contre95/mdlive/src/features/logging"
	"github.com/contre95/mdlive/src/features/metrics"
	"github.com/contre95/mdlive/src/features/pages"
	"github.com/contre95/mdlive/src/features/reload"
	"github.com/contre95/mdlive/src/features/rendering"
	"github.com/contre95/mdlive/src/infra/digest"
	"github.com/contre95/mdlive/src/infra/watcher"
	"github.com/spf13/cobra"
)

const (
	defaultConfigPath = "config.yaml"
	shutdownTimeout   = 5 * time.Second
)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "mdlive",
		Short:        "Serve Markdown as HTML with live reload",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to the YAML configuration file")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newRenderCmd(),
		newConfigCmd(&configPath),
	)
	return rootCmd
}

func newServeCmd(configPath *string) *cobra.Command {
	var port uint32
	var host string
	var prefix string

	cmd := &cobra.Command{
		Use:   "serve [root]",
		Short: "Serve a directory tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgManager, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			cfg := *cfgManager.Get()
			if len(args) == 1 {
				cfg.Root = args[0]
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("interface") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("prefix") {
				cfg.Server.Prefix = prefix
			}
			if err := config.Validate(&cfg); err != nil {
				return err
			}
			cfgManager.Update(&cfg)

			slog.SetDefault(logging.SetupLogger(cfgManager))

			if _, err := cfgManager.ResolveRoot(); err != nil {
				return err
			}
			defer slog.Info("Bye!")
			return serve(cmd.Context(), cfgManager)
		},
	}

	cmd.Flags().Uint32VarP(&port, "port", "p", 5000, "Port to listen on")
	cmd.Flags().StringVarP(&host, "interface", "i", "127.0.0.1", "Interface to bind")
	cmd.Flags().StringVar(&prefix, "prefix", "", "URL prefix the tree is mounted under")
	return cmd
}

// serve wires the application together and blocks until ctx is done or the
// HTTP server fails.
func serve(ctx context.Context, cfgManager *config.Manager) error {
	cfg := cfgManager.Get()

	m := metrics.New()
	views, err := rendering.NewViews(cfg.Logger.Level == "debug")
	if err != nil {
		return fmt.Errorf("failed to load views: %w", err)
	}
	table := assets.NewTable(assets.Static(), assets.Served)
	graphviz := rendering.NewGraphviz(cfg.Render.DotPath, cfg.Render.Graphviz)
	extensions, err := rendering.ParseExtensions(cfg.Render.Extensions)
	if err != nil {
		return err
	}

	manager := reload.NewManager(reload.Options{
		Buffer:   cfg.Watch.Buffer,
		Observer: m,
	})
	defer manager.Stop()
	if cfg.Reload.Enabled {
		backend, err := newBackend(cfg.Watch, manager.Sink())
		if err != nil {
			return err
		}
		if err := manager.Start(ctx, backend, cfg.Root); err != nil {
			slog.Error("Failed to start file watcher, reload polls will only time out", "error", err)
		}
	}

	handler := pages.NewHandler(pages.Options{
		Root:          cfg.Root,
		Prefix:        cfg.Server.Prefix,
		ReloadEnabled: cfg.Reload.Enabled,
		ReloadTimeout: cfg.Reload.Timeout,
		Digests:       digest.NewCache(m),
		Subscriptions: manager,
		Renderer:      rendering.NewMarkdown(views, table, cfg.Server.Prefix, cfg.Reload.Enabled).WithExtensions(extensions),
		Graphviz:      graphviz,
		Assets:        table,
		Views:         views,
		Metrics:       m,
	})
	server := hosting.NewServer(cfgManager, views, handler, m)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	slog.Info("Server started. Press Ctrl+C to shut down.", "root", cfg.Root, "address", cfg.Server.Address(), "prefix", cfg.Server.Prefix)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	// Release waiting long polls first so the server has no busy connections.
	manager.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newBackend(cfg config.Watch, sink chan<- reload.FileEvent) (reload.Backend, error) {
	switch cfg.Backend {
	case "notify":
		return watcher.NewNotifyWatcher(sink, cfg.Patterns, cfg.Ignore), nil
	default:
		w, err := watcher.NewWatcher(sink, cfg.Patterns, cfg.Ignore)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

func newRenderCmd() *cobra.Command {
	var output string
	var raw bool
	var extensions []string

	cmd := &cobra.Command{
		Use:   "render <file.md>",
		Short: "Convert a Markdown file to HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ext, err := rendering.ParseExtensions(extensions)
			if err != nil {
				return err
			}
			var out io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}
			return renderFile(out, args[0], raw, ext)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the result to this file instead of stdout")
	cmd.Flags().BoolVarP(&raw, "raw", "r", false, "Emit only the HTML fragment, without the page template")
	cmd.Flags().StringSliceVarP(&extensions, "extensions", "e", rendering.DefaultExtensions, "Markdown extensions to enable")
	return cmd
}

func renderFile(out io.Writer, source string, raw bool, ext rendering.Extensions) error {
	views, err := rendering.NewViews(false)
	if err != nil {
		return fmt.Errorf("failed to load views: %w", err)
	}
	renderer := rendering.NewMarkdown(views, assets.NewTable(assets.Static(), assets.Served), "", false).WithExtensions(ext)
	body, err := renderer.Render(source, rendering.Options{Raw: raw, URLPath: "/" + filepath.Base(source)})
	if err != nil {
		return err
	}
	_, err = out.Write(body)
	return err
}

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [file]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration, after environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgManager, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cfgManager.GetYAML())
			return nil
		},
	})
	return cmd
}
