package cli

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iXty9/relaybot/internal/activity"
	"github.com/iXty9/relaybot/internal/config"
	"github.com/iXty9/relaybot/internal/relay"
)

func TestOpenMirrorAndReadTrail(t *testing.T) {
	dir := t.TempDir()
	for _, store := range []string{"file", "sqlite"} {
		t.Run(store, func(t *testing.T) {
			cfg := &config.Config{
				LogStore: store,
				LogFile:  filepath.Join(dir, "relaybot.log"),
				LogDB:    filepath.Join(dir, "relaybot.db"),
			}
			m, err := openMirror(cfg)
			if err != nil {
				t.Fatalf("open mirror: %v", err)
			}
			j := activity.NewJournal(m)
			j.Add("first")
			j.Add("second")
			if err := j.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			entries, err := readTrail(cfg, 10)
			if err != nil {
				t.Fatalf("read trail: %v", err)
			}
			if len(entries) != 2 || entries[0].Text != "second" {
				t.Fatalf("expected newest first, got %+v", entries)
			}
		})
	}

	m, err := openMirror(&config.Config{LogStore: "none"})
	if err != nil || m != nil {
		t.Fatalf("expected no mirror for LOG_STORE=none, got %v %v", m, err)
	}
	if _, err := readTrail(&config.Config{LogStore: "none"}, 10); err == nil {
		t.Fatal("expected error reading a trail that is not persisted")
	}
}

func TestNewGatewaySelectsPlatform(t *testing.T) {
	gw, err := newGateway(&config.Config{Platform: config.PlatformDiscord, DiscordToken: "token"})
	if err != nil {
		t.Fatalf("discord: %v", err)
	}
	if gw.Name() != "discord" {
		t.Fatalf("expected discord gateway, got %s", gw.Name())
	}
	gw, err = newGateway(&config.Config{Platform: config.PlatformSlack, SlackBotToken: "xoxb-test"})
	if err != nil {
		t.Fatalf("slack: %v", err)
	}
	if gw.Name() != "slack" {
		t.Fatalf("expected slack gateway, got %s", gw.Name())
	}
}

func TestCheckWebhooks(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"none", config.Config{}, "No webhook configured"},
		{"online", config.Config{WebhookURL: up.URL}, "All webhooks are online"},
		{"dm offline", config.Config{WebhookURL: up.URL, DMWebhookURL: down.URL}, "DM webhook is OFFLINE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := activity.NewJournal(nil)
			rel := relay.New(relay.Config{URL: tt.cfg.WebhookURL, DMURL: tt.cfg.DMWebhookURL}, j)
			checkWebhooks(t.Context(), rel, j, &tt.cfg)

			var all []string
			for _, e := range j.Trail().List() {
				all = append(all, e.Text)
			}
			if !strings.Contains(strings.Join(all, "\n"), tt.want) {
				t.Fatalf("expected %q in %v", tt.want, all)
			}
		})
	}
}
