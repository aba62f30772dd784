package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rgeissen/uderia-sub003/config"
	"github.com/rgeissen/uderia-sub003/store"
)

var replayConfigPath string
var replayLimit int
var replayOffset int

var replayCmd = &cobra.Command{
	Use:   "replay [session_id]",
	Short: "Replay a session's execution events",
	Long: `Replay prints the stored execution events of a session in emission
order, for auditing what a coordinator did during past turns.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cfg, err := config.LoadAndValidate(replayConfigPath)
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

		evs, err := stores.Events.GetEventsBySession(args[0], replayLimit, replayOffset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(evs) == 0 {
			fmt.Println("No events recorded for this session.")
			return
		}

		for _, ev := range evs {
			data := ev.DataJSON
			var compact map[string]any
			if err := json.Unmarshal([]byte(ev.DataJSON), &compact); err == nil {
				if pretty, err := json.Marshal(compact); err == nil {
					data = string(pretty)
				}
			}
			fmt.Printf("%s  %-24s %s\n", ev.CreatedAt.Format("15:04:05.000"), ev.EventType, data)
		}
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&replayConfigPath, "config", "c", ".", "Path to config file or directory")
	replayCmd.Flags().IntVar(&replayLimit, "limit", 200, "Maximum number of events to print")
	replayCmd.Flags().IntVar(&replayOffset, "offset", 0, "Number of events to skip")
}
