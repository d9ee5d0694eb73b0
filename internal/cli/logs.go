package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iXty9/relaybot/internal/activity"
	"github.com/iXty9/relaybot/internal/config"
)

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the persisted activity trail, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		entries, err := readTrail(cfg, logsLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No activity recorded.")
			return nil
		}
		for _, e := range entries {
			ts := "invalid time"
			if !e.Timestamp.IsZero() {
				ts = e.Timestamp.Local().Format(time.DateTime)
			}
			fmt.Printf("%s  %s\n", color.HiBlackString(ts), e.Text)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", activity.TrailCapacity, "number of entries to print")
}

func readTrail(cfg *config.Config, n int) ([]activity.Entry, error) {
	switch cfg.LogStore {
	case "sqlite":
		m, err := activity.OpenSQLiteMirror(cfg.LogDB)
		if err != nil {
			return nil, err
		}
		defer m.Close()
		return m.Recent(n)
	case "none":
		return nil, fmt.Errorf("LOG_STORE=none keeps no persisted trail")
	default:
		return activity.ReadRecent(cfg.LogFile, n)
	}
}
