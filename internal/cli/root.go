package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/iXty9/relaybot/internal/cli.version=1.2.3"
	version = "1.0.0"
	logo    = "\n" +
		"           _             _           _\n" +
		"  _ __ ___| | __ _ _   _| |__   ___ | |_\n" +
		" | '__/ _ \\ |/ _` | | | | '_ \\ / _ \\| __|\n" +
		" | | |  __/ | (_| | |_| | |_) | (_) | |_\n" +
		" |_|  \\___|_|\\__,_|\\__, |_.__/ \\___/ \\__|\n" +
		"                   |___/\n"
)

var rootCmd = &cobra.Command{
	Use:          "relaybot",
	Short:        "relaybot - chat-to-webhook relay with a console",
	Long:         color.CyanString(logo) + "\nRelays chat messages to webhooks and drives the bot from a terminal, REST or WebSocket.",
	SilenceUsage: true,
	RunE:         runBot,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	addRunFlags(rootCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("relaybot version")
		fmt.Printf("Version: %s\n", version)
	},
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
