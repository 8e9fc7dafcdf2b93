package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mikey-austin/mtogo/internal/adapters/clock"
	"github.com/mikey-austin/mtogo/internal/adapters/config"
	"github.com/mikey-austin/mtogo/internal/adapters/idgen"
	"github.com/mikey-austin/mtogo/internal/adapters/mqtt"
	"github.com/mikey-austin/mtogo/internal/adapters/output"
	"github.com/mikey-austin/mtogo/internal/core"
	"github.com/mikey-austin/mtogo/pkg/spark"
)

type app struct {
	service core.Service
	printer output.Printer
	quiet   bool
	timeout time.Duration
	close   func()
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(core.ExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mtogo",
		Short:         "Control mtogo music players over MQTT",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var (
		broker    string
		topicBase string
		identity  string
		device    string
		timeout   time.Duration
		quiet     bool
		jsonOut   bool
		noColor   bool
		tlsCA     string
		tlsCert   string
		tlsKey    string
		userOpt   string
		passOpt   string
	)

	root.PersistentFlags().StringVarP(&broker, "broker", "b", "", "MQTT broker URL")
	root.PersistentFlags().StringVar(&topicBase, "topic-base", spark.BaseTopic, "MQTT topic base")
	root.PersistentFlags().StringVarP(&identity, "identity", "i", "", "controller identity")
	root.PersistentFlags().StringVarP(&device, "device", "d", "", "device id, name or alias")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color")
	root.PersistentFlags().StringVar(&tlsCA, "tls-ca", "", "TLS CA path")
	root.PersistentFlags().StringVar(&tlsCert, "tls-cert", "", "TLS cert path")
	root.PersistentFlags().StringVar(&tlsKey, "tls-key", "", "TLS key path")
	root.PersistentFlags().StringVar(&userOpt, "user", "", "MQTT username")
	root.PersistentFlags().StringVar(&passOpt, "pass", "", "MQTT password")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if noColor {
			pterm.DisableColor()
		}

		cfg, err := config.Load()
		if err != nil {
			return core.WrapError(core.ExitUsage, "load config", err)
		}
		identity = defaultIdentity(identity, cfg.Identity)
		if broker == "" {
			broker = cfg.Broker
		}
		if topicBase == spark.BaseTopic && cfg.TopicBase != "" {
			topicBase = cfg.TopicBase
		}
		if broker == "" {
			return &core.CLIError{Code: core.ExitUsage, Msg: "broker is required (set --broker or config)"}
		}
		if !cmd.Flags().Changed("timeout") && cfg.Timeout() > 0 {
			timeout = cfg.Timeout()
		}
		userOpt = firstNonEmpty(userOpt, cfg.Auth.User)
		passOpt = firstNonEmpty(passOpt, os.Getenv(envMQTTPass), cfg.Auth.Pass)
		tlsCA = firstNonEmpty(tlsCA, cfg.TLS.CA)
		tlsCert = firstNonEmpty(tlsCert, cfg.TLS.Cert)
		tlsKey = firstNonEmpty(tlsKey, cfg.TLS.Key)

		ids := idgen.Generator{}
		mqttClient, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: broker,
			ClientID:  ids.NewControllerID("mtogo"),
			Username:  userOpt,
			Password:  passOpt,
			TLSCA:     tlsCA,
			TLSCert:   tlsCert,
			TLSKey:    tlsKey,
			TopicBase: topicBase,
			Timeout:   timeout,
		})
		if err != nil {
			return core.WrapError(core.ExitRuntime, "connect", err)
		}

		coreCfg := core.Config{
			Broker:        broker,
			Identity:      identity,
			TopicBase:     topicBase,
			Aliases:       cfg.Aliases,
			DefaultDevice: cfg.Defaults.Device,
		}

		var printer output.Printer = output.HumanPrinter{}
		if jsonOut {
			printer = output.JSONPrinter{}
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			service: core.Service{
				Broker:   mqttClient,
				Resolver: core.Resolver{Presence: mqttClient, Config: coreCfg},
				Clock:    clock.Clock{},
				IDGen:    ids,
				Config:   coreCfg,
			},
			printer: printer,
			quiet:   quiet,
			timeout: timeout,
			close:   mqttClient.Close,
		}))
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if app := fromContext(cmd); app != nil && app.close != nil {
			app.close()
		}
	}

	selector := func() string { return device }
	root.AddCommand(lsCommand())
	root.AddCommand(nextCommand(selector))
	root.AddCommand(prevCommand(selector))
	root.AddCommand(toggleCommand(selector))
	root.AddCommand(volumeCommand(selector))
	root.AddCommand(currentCommand(selector))
	root.AddCommand(queueCommand(selector))
	root.AddCommand(queueCategoryCommand(selector))
	root.AddCommand(nowCommand(selector))
	root.AddCommand(resetCursorCommand(selector))
	root.AddCommand(pingCommand(selector))
	root.AddCommand(versionCommand(selector))
	root.AddCommand(rawCommand(selector))
	return root
}

// envMQTTPass supplies the broker password without putting it on the
// command line.
const envMQTTPass = "MTOGO_MQTT_PASS"

type appKey struct{}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func fromContext(cmd *cobra.Command) *app {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	val, _ := ctx.Value(appKey{}).(*app)
	return val
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

// print renders v unless quiet output was asked for.
func (a *app) print(v any) error {
	if a.quiet {
		return nil
	}
	return a.printer.Print(v)
}

func defaultIdentity(flagVal string, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if cfgVal != "" {
		return cfgVal
	}
	usr, _ := user.Current()
	host, _ := os.Hostname()
	if usr != nil && host != "" {
		return fmt.Sprintf("%s@%s", usr.Username, host)
	}
	if host != "" {
		return host
	}
	return "mtogo-unknown"
}

func readFileOrStdin(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

var errNoApp = errors.New("command context not initialised")
