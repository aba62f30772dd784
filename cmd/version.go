package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Long = fmt.Sprintf(`Uderia %s

HCL-configured engine for coordinating specialized AI expert profiles.

Define models, profiles and a remote session service in HCL, then chat
with a coordinator profile that routes your questions to the right
experts.

Get started:
  uderia verify <path>    Validate your configuration
  uderia chat <profile>   Chat with a profile
  uderia serve            Connect to a gateway and serve turns
  uderia replay <session> Replay a session's execution events`, Version)
}
