package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikey-austin/mtogo/internal/adapters/mqttserver"
	embeddedmqtt "github.com/mikey-austin/mtogo/internal/modules/embedded_mqtt"
	"github.com/mikey-austin/mtogo/internal/mtogod"
	"github.com/mikey-austin/mtogo/pkg/spark"
	"go.uber.org/zap"
)

type overrides struct {
	broker    string
	identity  string
	topicBase string
	logLevel  string
	logFormat string
	logOutput string
	logSource bool
	logUTC    bool
	logColor  bool
}

func main() {
	var (
		configPath  string
		envFile     string
		flags       overrides
		printConfig bool
		dryRun      bool
	)

	defaultConfig, err := mtogod.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file with secrets")
	flag.StringVar(&flags.broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&flags.identity, "identity", "", "device identity override")
	flag.StringVar(&flags.topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&flags.logLevel, "log-level", "", "log level override")
	flag.StringVar(&flags.logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&flags.logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.BoolVar(&flags.logSource, "log-source", false, "include source file in logs")
	flag.BoolVar(&flags.logUTC, "log-utc", false, "use UTC timestamps in logs")
	flag.BoolVar(&flags.logColor, "log-color", false, "enable colored log output (text only)")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	if err := mtogod.LoadEnv(envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := mtogod.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	mtogod.ApplyEnv(&cfg)
	applyOverrides(&cfg, flags)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if printConfig {
		if err := cfg.WriteTOML(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if dryRun {
		return
	}

	logger, err := mtogod.NewLogger(mtogod.LogConfig{
		Level:     cfg.Server.LogLevel,
		Format:    cfg.Server.LogFormat,
		Output:    cfg.Server.LogOutput,
		AddSource: cfg.Server.LogSource,
		UTC:       cfg.Server.LogUTC,
		Color:     cfg.Server.LogColor,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("mtogod failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg mtogod.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Modules.EmbeddedMQTT.Enabled {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			return fmt.Errorf("embedded mqtt: %w", err)
		}
	}
	if cfg.Server.Broker == "" {
		return errors.New("broker is required")
	}
	logger.Info("mtogod starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.String("driver", cfg.Player.Driver),
		zap.String("cache", cfg.Cache.Mode),
		zap.Int("feeds", len(cfg.Catalog.Feeds)),
	)

	client, err := mqttserver.NewClient(mqttserver.Options{
		BrokerURL: cfg.Server.Broker,
		ClientID:  fmt.Sprintf("mtogod-%s-%d", cfg.Server.Identity, time.Now().UnixNano()),
		Username:  cfg.Server.Auth.User,
		Password:  cfg.Server.Auth.Pass,
		TLSCA:     cfg.Server.TLS.CA,
		TLSCert:   cfg.Server.TLS.Cert,
		TLSKey:    cfg.Server.TLS.Key,
		Timeout:   2 * time.Second,
		Will:      &mqttserver.Will{Topic: spark.TopicPresence(cfg.Server.TopicBase, cfg.Server.Identity), Retained: true},
		Logger:    logger.With(zap.String("module", "mqtt")),
	})
	if err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	defer client.Close(250 * time.Millisecond)

	driver, err := newDriver(cfg, logger)
	if err != nil {
		return err
	}
	d, err := buildDaemon(ctx, cfg, client, driver, logger)
	if err != nil {
		return fmt.Errorf("build modules: %w", err)
	}
	defer d.close(logger)

	supervisor := mtogod.Supervisor{Logger: logger}
	return supervisor.Run(ctx, d.modules)
}

func applyOverrides(cfg *mtogod.Config, o overrides) {
	if o.broker != "" {
		cfg.Server.Broker = o.broker
	}
	if o.identity != "" {
		cfg.Server.Identity = o.identity
	}
	if o.topicBase != "" {
		cfg.Server.TopicBase = o.topicBase
	}
	if o.logLevel != "" {
		cfg.Server.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Server.LogFormat = o.logFormat
	}
	if o.logOutput != "" {
		cfg.Server.LogOutput = o.logOutput
	}
	if o.logSource {
		cfg.Server.LogSource = true
	}
	if o.logUTC {
		cfg.Server.LogUTC = true
	}
	if o.logColor {
		cfg.Server.LogColor = true
	}
	cfg.ApplyDefaults()
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedConfig(*cfg).URL()
	}
}

func embeddedConfig(cfg mtogod.Config) embeddedmqtt.Config {
	e := cfg.Modules.EmbeddedMQTT
	return embeddedmqtt.Config{
		Listen:         e.Listen,
		AllowAnonymous: e.AllowAnonymous,
		Username:       e.Username,
		Password:       e.Password,
		TopicBase:      cfg.Server.TopicBase,
		TLSCA:          e.TLSCA,
		TLSCert:        e.TLSCert,
		TLSKey:         e.TLSKey,
	}
}

// startEmbeddedBroker runs the broker outside the supervisor so it is
// accepting connections before the MQTT client dials it.
func startEmbeddedBroker(ctx context.Context, cfg mtogod.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	ecfg := embeddedConfig(cfg)
	mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), ecfg)
	if err != nil {
		return err
	}
	go func() {
		if err := mod.Run(ctx); err != nil {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()

	listen := ecfg.Listen
	if listen == "" {
		listen = embeddedmqtt.DefaultListen
	}
	return embeddedmqtt.WaitReady(ctx, listen, 3*time.Second)
}
