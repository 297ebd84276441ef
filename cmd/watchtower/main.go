package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"watchtower/config"
	"watchtower/internal/channel"
	"watchtower/internal/classify"
	inputredis "watchtower/internal/input/redis"
	"watchtower/internal/logger"
	"watchtower/internal/metrics"
	"watchtower/internal/monitor"
	"watchtower/internal/pipeline"
	"watchtower/pkg/models"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		if _, err := os.Stat(configArg); err == nil {
			return configArg
		}
		log.Printf("Warning: config file not found at %s, trying default locations", configArg)
	}

	if _, err := os.Stat("watchtower.yml"); err == nil {
		return "watchtower.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(exePath), "watchtower.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "watchtower.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.Watchtower.Input.Redis.Addr == "" {
		cfg.Watchtower.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Watchtower.Input.Redis.Key == "" {
		cfg.Watchtower.Input.Redis.Key = "security_events"
	}
	if cfg.Watchtower.Input.Redis.BlockTimeout == 0 {
		cfg.Watchtower.Input.Redis.BlockTimeout = 5 * time.Second
	}
	if cfg.Watchtower.Input.Workers <= 0 {
		cfg.Watchtower.Input.Workers = 4
	}

	if cfg.Watchtower.Monitor.MaxEventsPerKey <= 0 {
		cfg.Watchtower.Monitor.MaxEventsPerKey = 256
	}
	if cfg.Watchtower.Monitor.DedupCapacity <= 0 {
		cfg.Watchtower.Monitor.DedupCapacity = 4096
	}

	if cfg.Watchtower.Metrics.Addr == "" {
		cfg.Watchtower.Metrics.Addr = ":9477"
	}
	if cfg.Watchtower.Logging.Level == "" {
		cfg.Watchtower.Logging.Level = "info"
	}
}

func buildPatterns(cfg *config.Config) ([]*models.ThreatPattern, error) {
	patterns := make([]*models.ThreatPattern, 0, len(cfg.Watchtower.Monitor.Patterns))
	for _, pc := range cfg.Watchtower.Monitor.Patterns {
		sev, err := models.ParseSeverity(pc.Severity)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, &models.ThreatPattern{
			Name:      pc.Name,
			EventType: models.EventType(pc.EventType),
			Window:    pc.Window,
			Threshold: pc.Threshold,
			Severity:  sev,
			GroupBy:   pc.GroupBy,
			Cooldown:  pc.Cooldown,
		})
	}
	return patterns, nil
}

func buildCooldowns(raw map[string]time.Duration) (map[models.Severity]time.Duration, error) {
	out := make(map[models.Severity]time.Duration, len(raw))
	for name, cd := range raw {
		sev, err := models.ParseSeverity(name)
		if err != nil {
			return nil, err
		}
		out[sev] = cd
	}
	return out, nil
}

func buildChannel(cc config.ChannelConfig, redactFields []string) (channel.Channel, error) {
	switch cc.Type {
	case "webhook":
		return channel.NewWebhook(cc.Name, channel.WebhookConfig{
			URL:     cc.Webhook.URL,
			Headers: cc.Webhook.Headers,
		})
	case "telegram":
		return channel.NewTelegram(cc.Name, channel.TelegramConfig{
			BotToken: cc.Telegram.BotToken,
			ChatID:   cc.Telegram.ChatID,
			APIBase:  cc.Telegram.APIBase,
		})
	case "pagerduty":
		return channel.NewPagerDuty(cc.Name, channel.PagerDutyConfig{
			RoutingKey: cc.PagerDuty.RoutingKey,
			URL:        cc.PagerDuty.URL,
		})
	case "email":
		return channel.NewEmail(cc.Name, channel.EmailConfig{
			Host:     cc.Email.Host,
			Port:     cc.Email.Port,
			Username: cc.Email.Username,
			Password: cc.Email.Password,
			From:     cc.Email.From,
			To:       cc.Email.To,
		})
	case "nats":
		return channel.NewNATSPublisher(cc.Name, channel.NATSConfig{
			URL:     cc.NATS.URL,
			Subject: cc.NATS.Subject,
		})
	case "file":
		return channel.NewFile(cc.Name, channel.FileConfig{
			Path:         cc.File.Path,
			RedactFields: redactFields,
		})
	default:
		log.Fatalf("Unknown channel type: %s", cc.Type)
		return nil, nil
	}
}

func main() {
	configArg := ""
	if len(os.Args) > 1 {
		configArg = os.Args[1]
	}
	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	if err := logger.Init(cfg.Watchtower.Logging.Enabled, cfg.Watchtower.Logging.Level, cfg.Watchtower.Logging.File, cfg.Watchtower.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Infof("Watchtower starting")
	logger.Infof("Config loaded from: %s", configPath)

	var redactFields []string
	if cfg.Watchtower.Redaction.Enabled {
		redactFields = cfg.Watchtower.Redaction.Fields
		logger.Infof("Metadata redaction enabled for fields: %s", strings.Join(redactFields, ", "))
	}

	var mets *metrics.Metrics
	if cfg.Watchtower.Metrics.Enabled {
		mets = metrics.New(prometheus.DefaultRegisterer)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Infof("Metrics listening on %s", cfg.Watchtower.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Watchtower.Metrics.Addr, mux); err != nil {
				logger.Errorf("Metrics server stopped: %v", err)
			}
		}()
	}

	cooldowns, err := buildCooldowns(cfg.Watchtower.Monitor.Cooldowns)
	if err != nil {
		log.Fatalf("Invalid cooldown config: %v", err)
	}

	mon := monitor.New(monitor.Config{
		MaxEventsPerKey: cfg.Watchtower.Monitor.MaxEventsPerKey,
		DedupCapacity:   cfg.Watchtower.Monitor.DedupCapacity,
		Cooldowns:       cooldowns,
		Metrics:         mets,
	})

	patterns, err := buildPatterns(cfg)
	if err != nil {
		log.Fatalf("Invalid pattern config: %v", err)
	}
	for _, p := range patterns {
		if err := mon.RegisterPattern(p); err != nil {
			log.Fatalf("Failed to register pattern %s: %v", p.Name, err)
		}
		logger.Infof("Pattern registered: %s type=%s window=%s threshold=%d severity=%s",
			p.Name, p.EventType, p.Window, p.Threshold, p.Severity)
	}
	if len(patterns) == 0 {
		logger.Warnf("No patterns configured; nothing will ever alert")
	}

	for _, cc := range cfg.Watchtower.Channels {
		minSev, err := models.ParseSeverity(cc.MinSeverity)
		if err != nil {
			log.Fatalf("Channel %s: %v", cc.Name, err)
		}
		ch, err := buildChannel(cc, redactFields)
		if err != nil {
			log.Fatalf("Failed to create channel %s: %v", cc.Name, err)
		}
		mon.RegisterChannel(ch, minSev, cc.Timeout)
		logger.Infof("Channel registered: %s type=%s min_severity=%s", cc.Name, cc.Type, minSev)
	}

	var classifier *classify.Classifier
	if cfg.Watchtower.Classifier.Enabled {
		c, stats, err := classify.NewClassifier(cfg.Watchtower.Classifier.Path)
		if err != nil {
			log.Fatalf("Failed to load classifier rules: %v", err)
		}
		classifier = c
		logger.Infof("Classifier rules loaded: loaded=%d skipped_complex=%d skipped_invalid=%d files=%d",
			stats.Loaded, stats.SkippedComplex, stats.SkippedInvalid, stats.TotalFiles)
	}

	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:         cfg.Watchtower.Input.Redis.Addr,
		Password:     cfg.Watchtower.Input.Redis.Password,
		DB:           cfg.Watchtower.Input.Redis.DB,
		Key:          cfg.Watchtower.Input.Redis.Key,
		BlockTimeout: cfg.Watchtower.Input.Redis.BlockTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create Redis consumer: %v", err)
	}

	pipe := pipeline.NewIngest(consumer, mon, classifier, redactFields, cfg.Watchtower.Input.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	time.Sleep(1 * time.Second)

	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}
	if err := mon.Close(); err != nil {
		logger.Errorf("Error closing channels: %v", err)
	}
	logger.Infof("Watchtower stopped")
	logger.Close()
}
