package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"taskdash/internal/pkg/logger"
	"taskdash/internal/pkg/redis"
	"taskdash/internal/pkg/redis/keys"
	"taskdash/internal/pkg/server"
	"taskdash/internal/service/taskd"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"
)

var (
	version = "dev"

	configDir  string
	configFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "taskd",
	Short:         "In-process task scheduler",
	Long:          `taskd runs the priority task scheduler with its HTTP task API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("taskd version: %s\n", version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := taskd.LoadServiceConfig(configDir, configFile)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the task API",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, err := taskd.LoadServiceConfig(configDir, configFile)
		if err != nil {
			return err
		}
		if cfg.API.JWTSecret == "" {
			return fmt.Errorf("api.jwt_secret is not configured")
		}
		token, err := server.SignToken(cfg.API.JWTSecret, subject, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show lifecycle events mirrored to Redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt64("count")
		follow, _ := cmd.Flags().GetBool("follow")
		dead, _ := cmd.Flags().GetBool("dead")
		return tailEvents(cmd, count, follow, dead)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "service directory containing config/")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "explicit config file merged last")

	tokenCmd.Flags().String("subject", "taskd-cli", "token subject")
	tokenCmd.Flags().Duration("ttl", time.Hour, "token lifetime")

	eventsCmd.Flags().Int64P("count", "n", 20, "number of recent events")
	eventsCmd.Flags().BoolP("follow", "f", false, "keep reading new events")
	eventsCmd.Flags().Bool("dead", false, "read the dead-letter stream")

	rootCmd.AddCommand(serveCmd, versionCmd, configCmd, tokenCmd, eventsCmd)
}

func runServer() error {
	app := fx.New(
		taskd.Options(configDir, configFile),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start taskd: %w", err)
	}

	<-app.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop taskd: %w", err)
	}
	return nil
}

func tailEvents(cmd *cobra.Command, count int64, follow, dead bool) error {
	cfg, err := taskd.LoadServiceConfig(configDir, configFile)
	if err != nil {
		return err
	}
	rdb, err := redis.NewRedisClient(&cfg.Config, logger.NewNop())
	if err != nil {
		return err
	}
	if rdb == nil {
		return fmt.Errorf("redis.addr is not configured")
	}
	defer rdb.Close()

	stream := cfg.EventSink.Stream
	if stream == "" {
		stream = keys.EventStream(cfg.App.Name)
	}
	if dead {
		stream = cfg.EventSink.DeadLetter
		if stream == "" {
			stream = keys.DeadLetterStream(cfg.App.Name)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := redis.NewStreamClient(rdb)
	entries, err := client.Tail(ctx, stream, count)
	if err != nil {
		return err
	}
	last := "$"
	for _, e := range entries {
		printEntry(cmd, e)
		last = e.ID
	}

	for follow {
		entries, err := client.Read(ctx, stream, last, 100, 5*time.Second)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		for _, e := range entries {
			printEntry(cmd, e)
			last = e.ID
		}
	}
	return nil
}

func printEntry(cmd *cobra.Command, e redis.Entry) {
	fields := make([]string, 0, len(e.Values))
	for k, v := range e.Values {
		fields = append(fields, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(fields)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", e.ID, strings.Join(fields, " "))
}
