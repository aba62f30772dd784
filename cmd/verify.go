package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rgeissen/uderia-sub003/config"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify that the configuration is valid",
	Long:  `Verify parses and validates the HCL configuration files. Path can be a file or directory.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadAndValidate(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var warnings []string
		for _, v := range cfg.Variables {
			resolved, _ := config.ResolveVariableValue(&v)
			if resolved == "" && v.Default == "" {
				warnings = append(warnings, fmt.Sprintf("variable '%s' has no default and no value set", v.Name))
			}
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Found %d model(s)\n", len(cfg.Models))
		for _, m := range cfg.Models {
			fmt.Printf("  - %s (provider: %s, models: %v)\n", m.Name, m.Provider, m.AllowedModels)
		}
		fmt.Printf("Found %d variable(s)\n", len(cfg.Variables))
		for _, v := range cfg.Variables {
			resolved, _ := config.ResolveVariableValue(&v)
			if v.Secret {
				if resolved != "" {
					fmt.Printf("  - %s (secret, set)\n", v.Name)
				} else {
					fmt.Printf("  - %s (secret, not set)\n", v.Name)
				}
			} else {
				fmt.Printf("  - %s = %q\n", v.Name, resolved)
			}
		}
		fmt.Printf("Found %d profile(s)\n", len(cfg.Profiles))
		for _, p := range cfg.Profiles {
			extra := ""
			if p.Type == config.TypeGenie {
				extra = fmt.Sprintf(", slaves: %v", p.Slaves)
			}
			fmt.Printf("  - %s (tag: %s, type: %s, model: %s%s)\n", p.Name, p.Tag, p.Type, p.Model, extra)
		}
		fmt.Printf("Found %d plugin(s)\n", len(cfg.Plugins))
		for _, p := range cfg.Plugins {
			fmt.Printf("  - %s (source: %s, version: %s)\n", p.Name, p.Source, p.Version)
		}
		if cfg.Remote != nil {
			fmt.Printf("Remote session service: %s\n", cfg.Remote.BaseURL)
		}
		fmt.Printf("Storage backend: %s\n", cfg.Storage.Backend)
		if cfg.DefaultProfile != "" {
			fmt.Printf("Default profile: %s\n", cfg.DefaultProfile)
		}

		if len(warnings) > 0 {
			fmt.Printf("\nWarnings:\n")
			for _, w := range warnings {
				fmt.Printf("  - %s\n", w)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
