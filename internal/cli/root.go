// Package cli wires configuration, logging and the photo client into the
// gallery's cobra commands.
package cli

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/picsum-gallery/internal/config"
	"github.com/Sternrassler/picsum-gallery/pkg/client"
	"github.com/Sternrassler/picsum-gallery/pkg/logging"
)

// app is the state shared by the subcommands once the root has loaded it.
type app struct {
	configPath string
	viper      *viper.Viper
	config     *config.Config
}

// NewRootCmd builds the gallery command tree.
func NewRootCmd() *cobra.Command {
	a := &app{viper: config.New()}

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "Browse the Lorem Picsum photo catalog",
		Long: `Gallery pages through the Lorem Picsum photo catalog.

It runs as a terminal browser with infinite scrolling, as an HTTP service
exposing server-side galleries, or as one-shot list and show commands.

Settings come from an optional YAML file (--config), a .env file in the
working directory and GALLERY_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return a.load()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.String("log-level", "", "log level (debug, info, warn, error, disabled)")
	flags.String("base-url", "", "photo service base URL")
	flags.Bool("redis", false, "cache responses in Redis")
	_ = a.viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.viper.BindPFlag("api.base_url", flags.Lookup("base-url"))
	_ = a.viper.BindPFlag("redis.enabled", flags.Lookup("redis"))

	cmd.AddCommand(
		newServeCmd(a),
		newBrowseCmd(a),
		newListCmd(a),
		newShowCmd(a),
	)

	return cmd
}

func (a *app) load() error {
	if a.configPath != "" {
		a.viper.SetConfigFile(a.configPath)
		if err := a.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", a.configPath, err)
		}
	}
	cfg, err := config.FromViper(a.viper)
	if err != nil {
		return err
	}
	a.config = cfg
	logging.Setup(cfg.LogConfig())
	return nil
}

// newClient opens Redis when enabled and builds the photo client. The
// returned func releases both.
func (a *app) newClient(ctx context.Context) (*client.Client, func(), error) {
	var redisClient *redis.Client
	if rc := a.config.RedisClient(); rc != nil {
		if err := rc.Ping(ctx).Err(); err != nil {
			_ = rc.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", a.config.Redis.Addr, err)
		}
		redisClient = rc
	}

	c, err := client.New(a.config.ClientConfig(redisClient))
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, nil, fmt.Errorf("create photo client: %w", err)
	}

	closeAll := func() {
		_ = c.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}
	return c, closeAll, nil
}
