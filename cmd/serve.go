package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/rgeissen/uderia-sub003/config"
	"github.com/rgeissen/uderia-sub003/remote"
	"github.com/rgeissen/uderia-sub003/router"
	"github.com/rgeissen/uderia-sub003/store"
	"github.com/rgeissen/uderia-sub003/wsbridge"
)

var serveConfigPath string
var gatewayURL string
var instanceName string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to a gateway and serve turn requests",
	Long: `Serve connects this engine instance to a gateway over WebSocket,
registers it, and executes incoming turn requests, streaming execution
events back as they happen.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cfg, err := config.LoadAndValidate(serveConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		stores, err := store.NewBundle(ctx, &store.StorageConfig{
			Backend: cfg.Storage.Backend,
			Path:    cfg.Storage.Path,
			DSN:     cfg.Storage.DSN,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer stores.Close()

		logger := hclog.New(&hclog.LoggerOptions{Name: "uderia", Level: hclog.Info})

		var remoteClient *remote.Client
		if cfg.Remote != nil {
			remoteClient = remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token,
				remote.WithLogger(logger.Named("remote")),
				remote.WithTimeouts(
					time.Duration(cfg.Remote.CreateTimeoutSeconds)*time.Second,
					time.Duration(cfg.Remote.SubmitTimeoutSeconds)*time.Second,
					time.Duration(cfg.Remote.StatusTimeoutSeconds)*time.Second,
				))
		}

		// The bridge is built in two steps: the router streams through a
		// sink that is bound to the client after both exist.
		var client *wsbridge.Client

		r := router.New(router.Options{
			Config: cfg,
			Stores: stores,
			Remote: remoteClient,
			Plans:  router.NewLLMOnlyExecutor(cfg, nil),
			Sink:   wsbridge.DeferredSink(func() *wsbridge.Client { return client }, logger.Named("events")),
			Logger: logger,
		})

		client = wsbridge.NewClient(wsbridge.Options{
			URL:          gatewayURL,
			InstanceName: instanceName,
			Version:      Version,
			Router:       r,
			Logger:       logger.Named("wsbridge"),
		})

		if err := client.Connect(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer client.Close()

		if err := client.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", ".", "Path to config file or directory")
	serveCmd.Flags().StringVarP(&gatewayURL, "gateway", "g", "ws://localhost:8700/ws", "Gateway WebSocket URL")
	serveCmd.Flags().StringVarP(&instanceName, "name", "n", "uderia", "Instance name to register as")
}
