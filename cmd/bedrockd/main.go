// Command bedrockd runs the dedicated server: a cobra root command
// binds flags into viper, which is unmarshalled into
// internal/config.Config, replacing the teacher's core/main.go
// hard-coded loadConfig() call.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/voidworks/bedrockd/internal/config"
	"github.com/voidworks/bedrockd/internal/server"
	"github.com/voidworks/bedrockd/internal/world"
	"github.com/voidworks/bedrockd/pkg/logger"
)

var (
	version = "dev"
	v       = viper.New()
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bedrockd",
		Short: "Minecraft Bedrock Edition dedicated server",
		RunE:  run,
	}

	flags := cmd.Flags()
	flags.String("bind-address", "", "UDP address to listen on (default 0.0.0.0:19132)")
	flags.String("compression", "", "batch compression algorithm: deflate, snappy, none")
	flags.Int("compression-threshold", 0, "minimum batch size before compression applies")
	flags.String("world-path", "", "path to the read-only bbolt world database")
	flags.String("log-level", "", "logrus level: debug, info, warn, error")

	_ = v.BindPFlag("bind_address", flags.Lookup("bind-address"))
	_ = v.BindPFlag("compression", flags.Lookup("compression"))
	_ = v.BindPFlag("compression_threshold", flags.Lookup("compression-threshold"))
	_ = v.BindPFlag("world_path", flags.Lookup("world-path"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	v.SetEnvPrefix("BEDROCKD")
	v.AutomaticEnv()

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel)
	logger.Banner("bedrockd", version)

	var reader world.WorldReader
	if cfg.WorldPath != "" {
		reader, err = world.OpenWorldReader(cfg.WorldPath)
		if err != nil {
			return err
		}
	}

	logger.Section("starting listener")
	srv, err := server.New(cfg, log, nil, reader, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return srv.Close()
	case err := <-errCh:
		return err
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
