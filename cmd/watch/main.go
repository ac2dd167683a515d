package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/acme/outreach-monitor/internal/config"
	"github.com/acme/outreach-monitor/internal/events"
	"github.com/acme/outreach-monitor/internal/monitor"
	"github.com/acme/outreach-monitor/internal/session"
	"github.com/acme/outreach-monitor/internal/tui"
	"github.com/acme/outreach-monitor/internal/upstream"
	"github.com/acme/outreach-monitor/pkg/logger"
)

var (
	configPath string
	campaignID string
	token      string
	password   string
	noRefresh  bool
)

var rootCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch one outreach campaign from the terminal",
	Long: `Mounts a live view of a campaign: status, next-send and finish countdowns,
statistics and recipients. Pause or resume the campaign with [p].

Authenticate with --token, or with --password (also read from OUTREACH_PASSWORD).`,
	SilenceUsage: true,
	RunE:         runWatch,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	rootCmd.Flags().StringVar(&campaignID, "campaign", "", "campaign id to watch")
	rootCmd.Flags().StringVar(&token, "token", os.Getenv("OUTREACH_TOKEN"), "backend access token")
	rootCmd.Flags().StringVar(&password, "password", os.Getenv("OUTREACH_PASSWORD"), "operator password, used when no token is given")
	rootCmd.Flags().BoolVar(&noRefresh, "no-auto-refresh", false, "start with auto-refresh off")
	_ = rootCmd.MarkFlagRequired("campaign")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// the terminal belongs to the dashboard, so logs are discarded
	lg := logger.Nop()
	client := upstream.New(cfg.Upstream, lg)

	publisher, closePublisher, err := newPublisher(cfg.Kafka)
	if err != nil {
		return err
	}
	defer closePublisher()

	if token == "" {
		token, err = login(ctx, client, cfg, publisher, lg)
		if err != nil {
			return err
		}
	}

	var program *tea.Program
	view := monitor.NewView(campaignID, client.ForToken(token), monitor.Options{
		PollInterval: cfg.Monitor.PollInterval,
		TickInterval: cfg.Monitor.TickInterval,
		AutoRefresh:  cfg.Monitor.AutoRefresh && !noRefresh,
		Publisher:    publisher,
		Logger:       lg,
		OnUnauthorized: func(error) {
			// Send blocks until the program loop runs
			go program.Send(tui.SessionExpiredMsg{})
		},
	})
	program = tea.NewProgram(tui.New(ctx, view), tea.WithAltScreen(), tea.WithContext(ctx))

	if err := view.Mount(ctx); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer view.Unmount()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}

// login exchanges the password for a token through an in-memory session.
func login(ctx context.Context, client *upstream.Client, cfg *config.Config, pub events.Publisher, lg *logger.Logger) (string, error) {
	if password == "" {
		return "", errors.New("watch: --token or --password is required")
	}
	manager := session.NewManager(client, session.NewMemoryStore(), cfg.Session.TTL, pub, lg)
	sess, err := manager.Init(ctx, password)
	if err != nil {
		return "", fmt.Errorf("watch: login: %w", err)
	}
	return sess.Token, nil
}

func newPublisher(cfg config.KafkaConfig) (events.Publisher, func(), error) {
	if !cfg.Enabled {
		return events.Noop{}, func() {}, nil
	}
	k, err := events.NewKafka(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("watch: kafka: %w", err)
	}
	pub := events.NewKafkaPublisher(k, cfg.EventsTopic)
	return pub, func() { _ = pub.Close() }, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
