// Command axon-bridge serves a message bus backend over HTTP.
//
// Every flag can also be set through the environment with the SERVER_ prefix,
// e.g. SERVER_NUCLEUS=nats://localhost:4222 or SERVER_AUTHORIZED_APPS="a:1 b:2".
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/drblury/axonbridge"
)

const envPrefix = "SERVER"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "axon-bridge",
		Short:         "Expose a message bus over HTTP",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(v.GetBool("debug"))
			err := run(cmd.Context(), v, logger)
			if err != nil {
				logger.Error("Bridge failed", err, nil)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.String("hostname", axonbridge.DefaultHostname, "Host interface to listen on")
	flags.Int("port", axonbridge.DefaultPort, "Port to listen on")
	flags.String("nucleus", "", "Backend bus URL, e.g. nats://localhost:4222 (required)")
	flags.StringSlice("authorized-apps", nil, `Authorized application keys as name:key, space separated pairs allowed`)
	flags.String("name", "", "Server name reported by /_server/details (default derived from the host name)")
	flags.String("prefix", "", "Path prefix for the forwarding routes")
	flags.Duration("connect-timeout", axonbridge.DefaultConnectTimeout, "Timeout for the initial backend connection")
	flags.StringSlice("cors-origins", nil, `Allowed CORS origins (default "*")`)
	flags.Bool("metrics", false, "Expose Prometheus metrics at /_server/metrics")
	flags.Bool("debug", false, "Enable debug logging")

	return cmd
}

func run(ctx context.Context, v *viper.Viper, logger axonbridge.ServiceLogger) error {
	apps, err := axonbridge.ParseAuthorizedApps(v.GetStringSlice("authorized-apps"))
	if err != nil {
		return err
	}

	name := v.GetString("name")
	if name == "" {
		name = generateName()
	}

	cfg := &axonbridge.Config{
		Hostname:           v.GetString("hostname"),
		Port:               v.GetInt("port"),
		BackendURL:         v.GetString("nucleus"),
		AuthorizedApps:     apps,
		ServerName:         name,
		ServerVersion:      version(),
		RouterPrefix:       v.GetString("prefix"),
		ConnectTimeout:     v.GetDuration("connect-timeout"),
		CORSAllowedOrigins: v.GetStringSlice("cors-origins"),
		MetricsEnabled:     v.GetBool("metrics"),
	}

	logger.Info("Initializing server", nil)
	connectCtx, cancel := context.WithTimeout(ctx, cfg.WithDefaults().ConnectTimeout+time.Second)
	defer cancel()
	b, err := axonbridge.NewBridge(connectCtx, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("Starting server", nil)
	if err := b.Run(ctx); err != nil {
		return err
	}
	logger.Info("Done", nil)
	return nil
}

func newLogger(debugEnabled bool) axonbridge.ServiceLogger {
	level := slog.LevelInfo
	if debugEnabled {
		level = slog.LevelDebug
	}
	return axonbridge.NewSlogServiceLogger(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// generateName returns the host name with a short random suffix so several
// bridges on one host stay distinguishable.
func generateName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "axon-bridge"
	}
	host, _, _ = strings.Cut(host, ".")
	id := strings.ToLower(axonbridge.CreateULID())
	return fmt.Sprintf("%s-%s", host, id[len(id)-6:])
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return strings.TrimPrefix(info.Main.Version, "v")
}
