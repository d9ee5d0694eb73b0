package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iXty9/relaybot/internal/bot"
	"github.com/iXty9/relaybot/internal/config"
)

var healthURL string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the control endpoint of a running instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := healthURL
		if url == "" {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			url = cfg.HealthURL()
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		status := bot.Probe(ctx, &http.Client{Timeout: 3 * time.Second}, url)
		if status != bot.Running {
			fmt.Println(color.RedString("✗ %s (%s)", status, url))
			return fmt.Errorf("relaybot is not running")
		}
		fmt.Println(color.GreenString("✓ %s (%s)", status, url))
		return nil
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthURL, "url", "", "health endpoint (defaults to API_HOST/API_PORT)")
}
