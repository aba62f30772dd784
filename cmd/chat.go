package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/rgeissen/uderia-sub003/config"
	"github.com/rgeissen/uderia-sub003/remote"
	"github.com/rgeissen/uderia-sub003/router"
	"github.com/rgeissen/uderia-sub003/store"
	"github.com/rgeissen/uderia-sub003/streamers/cli"
)

var configPath string
var sessionID string

var chatCmd = &cobra.Command{
	Use:   "chat [profile_tag]",
	Short: "Chat with a given profile",
	Long:  `Start an interactive chat session with the specified profile.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		profileTag := args[0]
		ctx := context.Background()

		cfg, err := config.LoadAndValidate(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		profile, ok := cfg.ProfileByTag(profileTag)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown profile '%s'\n", profileTag)
			os.Exit(1)
		}
		_, modelName, err := config.ResolveModelKey(cfg.Models, profile.Model)
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

		logger := hclog.New(&hclog.LoggerOptions{Name: "uderia", Level: hclog.Warn})

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

		presenter := cli.NewChatPresenter()

		r := router.New(router.Options{
			Config: cfg,
			Stores: stores,
			Remote: remoteClient,
			Plans:  router.NewLLMOnlyExecutor(cfg, nil),
			Sink:   presenter,
			Logger: logger,
		})

		if sessionID == "" {
			sessionID, err = stores.Sessions.CreateSession("local", profileTag)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		presenter.Welcome(profileTag, modelName)

		for {
			input, err := presenter.AwaitInput()
			if err != nil {
				if err == io.EOF {
					presenter.Goodbye()
					break
				}
				presenter.Error(err)
				break
			}

			if input == "" {
				continue
			}
			if input == "exit" || input == "quit" {
				presenter.Goodbye()
				break
			}

			result, err := r.RunTurn(ctx, router.TurnParams{
				SessionID: sessionID,
				Query:     input,
			})
			if err != nil {
				presenter.Error(err)
				continue
			}
			presenter.RenderAnswer(result.Response)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&configPath, "config", "c", ".", "Path to config file or directory")
	chatCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Resume an existing session id")
}
