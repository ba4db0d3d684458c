package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/existflow/quizdesk/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show the effective configuration, or change common settings.

Examples:
  quizdesk config
  quizdesk config --server https://api.school.example
  quizdesk config --auto-submit=true`,
	RunE: runConfig,
}

var (
	configServer     string
	configAutoSubmit bool
	configEncrypt    bool
)

func init() {
	configCmd.Flags().StringVar(&configServer, "server", "", "API base URL")
	configCmd.Flags().BoolVar(&configAutoSubmit, "auto-submit", false, "Submit tests automatically when time runs out")
	configCmd.Flags().BoolVar(&configEncrypt, "encrypt", false, "Encrypt tokens at rest")
}

func runConfig(cmd *cobra.Command, args []string) error {
	changed := false
	if cmd.Flags().Changed("server") {
		cfg.API.BaseURL = strings.TrimRight(configServer, "/")
		changed = true
	}
	if cmd.Flags().Changed("auto-submit") {
		cfg.Tests.AutoSubmit = configAutoSubmit
		changed = true
	}
	if cmd.Flags().Changed("encrypt") {
		cfg.Storage.Encrypt = configEncrypt
		changed = true
	}

	if changed {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		path, _ := config.Path()
		fmt.Printf("✅ Saved %s\n", path)
		if cmd.Flags().Changed("encrypt") {
			fmt.Println("Log in again for the change to apply to stored tokens.")
		}
		return nil
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
