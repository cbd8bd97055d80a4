package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/park285/chesslink/internal/config"
	"github.com/park285/chesslink/internal/obslog"
)

func main() {
	var (
		cfg     *config.AppConfig
		cfgErr  error
		flagCfg = config.Default()
	)

	rootCmd := &cobra.Command{
		Use:   "chesslink",
		Short: "Play chess against a peer over a direct TCP link",
		Long: `chesslink connects two chess clients over TCP. One side hosts and picks the
colours and starting position, the other joins. Moves are typed as UCI
(e2e4, e7e8q) on stdin; "resign", "draw", "fen", "board" and "quit" are also accepted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := obslog.InitFromEnv(); err != nil {
				return err
			}
			cfg, cfgErr = config.Load()
			if cfgErr != nil {
				return cfgErr
			}
			applyFlags(cmd, cfg, flagCfg)
			return cfg.Validate()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagCfg.Addr, "addr", flagCfg.Addr, "host:port to listen on or connect to")
	pf.StringVar(&flagCfg.Name, "name", flagCfg.Name, "player name sent to the peer")
	pf.DurationVar(&flagCfg.AckTimeout, "ack-timeout", flagCfg.AckTimeout, "abort when a move is not acknowledged in time (0 waits forever)")
	pf.DurationVar(&flagCfg.TickInterval, "tick", flagCfg.TickInterval, "protocol poll cadence")
	pf.StringVar(&flagCfg.SpectateAddr, "spectate", "", "serve the spectator API on this address")
	pf.StringVar(&flagCfg.RedisURL, "redis", "", "redis url for the move journal")
	pf.StringVar(&flagCfg.DatabaseURL, "database", "", "postgres url for game results")
	pf.StringVar(&flagCfg.NotifyURL, "notify", "", "webhook url for finished games")
	pf.BoolVar(&flagCfg.NotifyDryRun, "notify-dryrun", false, "log finished games instead of posting them")

	rootCmd.AddCommand(
		hostCmd(&cfg, flagCfg),
		joinCmd(&cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	_ = obslog.L().Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg, flags *config.AppConfig) {
	fs := cmd.Flags()
	set := func(name string) bool { return fs.Changed(name) }

	if set("addr") {
		cfg.Addr = flags.Addr
	}
	if set("name") {
		cfg.Name = flags.Name
	}
	if set("ack-timeout") {
		cfg.AckTimeout = flags.AckTimeout
	}
	if set("tick") {
		cfg.TickInterval = flags.TickInterval
	}
	if set("spectate") {
		cfg.SpectateAddr = flags.SpectateAddr
	}
	if set("redis") {
		cfg.RedisURL = flags.RedisURL
	}
	if set("database") {
		cfg.DatabaseURL = flags.DatabaseURL
	}
	if set("notify") {
		cfg.NotifyURL = flags.NotifyURL
	}
	if set("notify-dryrun") {
		cfg.NotifyDryRun = flags.NotifyDryRun
	}
	if set("fen") {
		cfg.FEN = flags.FEN
	}
	if set("time") {
		cfg.Time = flags.Time
	}
	if set("inc") {
		cfg.Inc = flags.Inc
	}
}

func hostCmd(cfg **config.AppConfig, flags *config.AppConfig) *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Listen for a peer and start a game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := *cfg
			c.Role = config.RoleHost
			if cmd.Flags().Changed("color") {
				c.Color = config.Color(color)
			}
			return runHost(cmd.Context(), c)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.FEN, "fen", "", "starting position (default: standard)")
	f.StringVar(&color, "color", string(config.ColorWhite), "host colour: white, black or random")
	f.Uint32Var(&flags.Time, "time", 0, "clock time in seconds, carried to the peer only")
	f.Uint32Var(&flags.Inc, "inc", 0, "clock increment in seconds, carried to the peer only")
	return cmd
}

func joinCmd(cfg **config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "join",
		Short: "Connect to a host and play",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := *cfg
			c.Role = config.RoleJoin
			return runJoin(cmd.Context(), c)
		},
	}
}
