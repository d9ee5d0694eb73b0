package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iXty9/relaybot/internal/activity"
	"github.com/iXty9/relaybot/internal/api"
	"github.com/iXty9/relaybot/internal/bot"
	"github.com/iXty9/relaybot/internal/bus"
	"github.com/iXty9/relaybot/internal/chat"
	"github.com/iXty9/relaybot/internal/config"
	"github.com/iXty9/relaybot/internal/console"
	"github.com/iXty9/relaybot/internal/dispatch"
	"github.com/iXty9/relaybot/internal/facts"
	"github.com/iXty9/relaybot/internal/relay"
)

var runHeadless bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect the bot and start the console and API server",
	RunE:  runBot,
}

func init() {
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&runHeadless, "headless", false, "run without the interactive console")
}

var runSignalNotify = signal.Notify

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println(color.RedString("Configuration error:"))
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Println("  " + line)
		}
		return fmt.Errorf("invalid configuration")
	}
	setupLogging(os.Stderr, cfg.Debug)

	mirror, err := openMirror(cfg)
	if err != nil {
		return fmt.Errorf("open activity store: %w", err)
	}
	journal := activity.NewJournal(mirror)

	msgBus := bus.NewMessageBus()
	journal.Subscribe(func(e activity.Entry) {
		msgBus.PublishEvent(bus.EventLog, e)
	})

	var publishers []relay.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publishers = append(publishers, relay.NewKafkaPublisher(strings.Join(cfg.KafkaBrokers, ","), cfg.KafkaTopic))
		slog.Info("Relay fan-out enabled", "topic", cfg.KafkaTopic)
	}
	rel := relay.New(relay.Config{
		URL:           cfg.WebhookURL,
		DMURL:         cfg.DMWebhookURL,
		Timeout:       cfg.WebhookTimeout,
		RetryAttempts: cfg.WebhookRetryAttempts,
		RetryBackoff:  cfg.WebhookRetryBackoff,
	}, journal, publishers...)

	gw, err := newGateway(cfg)
	if err != nil {
		_ = rel.Close()
		_ = journal.Close()
		return fmt.Errorf("create %s client: %w", cfg.Platform, err)
	}

	controller := bot.New(gw, journal, bot.Config{
		HealthURL: cfg.HealthURL(),
		Relay:     rel,
		Events:    msgBus,
	})

	hub := api.NewHub()
	msgBus.Subscribe(hub.Broadcast)
	server := api.NewServer(api.Config{
		Addr:   cfg.APIAddr(),
		Secret: cfg.APISecret,
		DebugInfo: func(context.Context) map[string]any {
			return map[string]any{
				"platform":      gw.Name(),
				"user":          gw.Self(),
				"inboundQueue":  msgBus.InboundSize(),
				"eventQueue":    msgBus.EventSize(),
				"webhookURLSet": cfg.WebhookURL != "",
				"dmWebhookSet":  cfg.DMWebhookURL != "",
				"inputMode":     cfg.InputMode,
				"logStore":      cfg.LogStore,
			}
		},
	}, controller, journal, hub)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	dispatcher := dispatch.New(controller, journal, dispatch.Options{
		Mode:           dispatch.InputMode(cfg.InputMode),
		DefaultChannel: cfg.DefaultChannel,
		Server:         server,
		Facts:          facts.NewClient(cfg.FactsURL, 5*time.Second),
		Quit:           cancel,
	})
	server.SetCommands(dispatcher)

	go func() { _ = msgBus.DispatchEvents(ctx) }()
	go func() { _ = controller.ServeInbound(ctx, msgBus) }()

	err = gw.Open(ctx, chat.Handlers{
		OnMessage: msgBus.PublishInbound,
		OnInteraction: func(in chat.Interaction) {
			go dispatcher.HandleInteraction(ctx, in)
		},
	})
	if err != nil {
		cancel()
		_ = rel.Close()
		_ = journal.Close()
		fmt.Println(color.RedString("Failed to connect to %s. Please check your bot token.", cfg.Platform))
		return fmt.Errorf("connect: %w", err)
	}

	journal.Addf("Logged in as %s!", gw.Self())
	journal.Add(`Type "/help" for a list of commands.`)
	if err := server.Start(); err != nil {
		journal.Add("Error starting API server: " + err.Error())
	} else {
		journal.Addf("API server running on http://%s", cfg.APIAddr())
	}
	go checkWebhooks(ctx, rel, journal, cfg)

	interrupts := make(chan os.Signal, 1)
	terminate := make(chan os.Signal, 1)
	runSignalNotify(terminate, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		select {
		case sig := <-terminate:
			slog.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if runHeadless {
		runSignalNotify(terminate, os.Interrupt)
		<-ctx.Done()
	} else {
		runSignalNotify(interrupts, os.Interrupt)
		con := console.New(console.Config{
			Status: func() (string, string) { return gw.Self(), controller.Presence() },
		}, journal, dispatcher)
		if err := con.Run(ctx, interrupts); err != nil && ctx.Err() == nil {
			slog.Error("Console stopped", "error", err)
		}
	}
	signal.Stop(interrupts)
	signal.Stop(terminate)
	cancel()

	shutdown(server, gw, rel, journal)
	fmt.Println("Goodbye.")
	return nil
}

// shutdown releases resources in order. Every step is best-effort.
func shutdown(server *api.Server, gw chat.Gateway, rel *relay.Relay, journal *activity.Journal) {
	if server.Running() {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Stop(stopCtx); err != nil {
			slog.Warn("API server shutdown failed", "error", err)
		}
		stop()
	}
	if err := gw.Close(); err != nil {
		slog.Warn("Chat client close failed", "error", err)
	}
	if err := rel.Close(); err != nil {
		slog.Warn("Relay publisher close failed", "error", err)
	}
	if err := journal.Close(); err != nil {
		slog.Warn("Activity store close failed", "error", err)
	}
	slog.Info("Shutdown complete")
}

func newGateway(cfg *config.Config) (chat.Gateway, error) {
	if cfg.Platform == config.PlatformSlack {
		gw, err := chat.NewSlackGateway(cfg.SlackBotToken, cfg.SlackAppToken)
		if err != nil {
			return nil, err
		}
		return gw, nil
	}
	gw, err := chat.NewDiscordGateway(cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	return gw, nil
}

func openMirror(cfg *config.Config) (activity.Mirror, error) {
	switch cfg.LogStore {
	case "none":
		return nil, nil
	case "sqlite":
		return activity.OpenSQLiteMirror(cfg.LogDB)
	default:
		return activity.OpenFileMirror(cfg.LogFile)
	}
}

func checkWebhooks(ctx context.Context, rel *relay.Relay, journal *activity.Journal, cfg *config.Config) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	status := rel.CheckTargets(probeCtx)
	offline := false
	if cfg.WebhookURL != "" && !status["regular"] {
		journal.Add("WARNING: Regular webhook is OFFLINE! Messages will not be processed correctly.")
		offline = true
	}
	if cfg.DMWebhookURL != "" && !status["dm"] {
		journal.Add("WARNING: DM webhook is OFFLINE! Direct messages will not be processed correctly.")
		offline = true
	}
	switch {
	case cfg.WebhookURL == "" && cfg.DMWebhookURL == "":
		journal.Add("No webhook configured; inbound messages are logged only.")
	case offline:
		journal.Add("Please check your webhook configurations and ensure they are accessible.")
	default:
		journal.Add("All webhooks are online and responding.")
	}
}
