// Command widget-consumer drains widget requests from a queue bucket and
// writes created widgets to the configured storage target.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-widgetflow/pkg/config"
	"github.com/illmade-knight/go-widgetflow/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Process exit codes.
const (
	exitOK     = 0
	exitFatal  = 1
	exitConfig = 2
)

// exitError carries the process exit code out of a cobra RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"queue-bucket":     "queue_bucket",
	"queue-prefix":     "queue_prefix",
	"target":           "target",
	"widget-bucket":    "widget_bucket",
	"table":            "table",
	"redis-addr":       "redis.addr",
	"redis-password":   "redis.password",
	"redis-db":         "redis.db",
	"redis-key-prefix": "redis.key_prefix",
	"sleep-ms":         "sleep_ms",
	"stop-after":       "stop_after",
	"log-file":         "log_file",
	"log-level":        "log_level",
	"project-id":       "project_id",
	"credentials-file": "credentials_file",
	"notify-topic":     "notify_topic",
	"health-addr":      "health_addr",
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stderr))
}

// execute runs the root command and maps its outcome to an exit code.
func execute(args []string, stderr io.Writer) int {
	return executeContext(context.Background(), args, stderr)
}

func executeContext(ctx context.Context, args []string, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	_, _ = fmt.Fprintln(stderr, "Error:", err)

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	// Anything cobra rejected before RunE is a usage problem.
	return exitConfig
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "widget-consumer",
		Short: "Consume widget requests from a queue bucket",
		Long: `widget-consumer polls a queue bucket for widget requests, validates
them and stores created widgets in a blob bucket, a record collection,
Redis or memory.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return &exitError{code: exitConfig, err: err}
			}

			logger, sink, err := logging.New(logging.Options{FilePath: cfg.LogFile, Level: cfg.LogLevel})
			if err != nil {
				return &exitError{code: exitConfig, err: err}
			}
			// Closed last, after run has released everything that logs on close.
			defer func() { _ = sink.Close() }()
			logger = logger.With().Str("run_id", uuid.NewString()).Logger()

			if err := cfg.Validate(); err != nil {
				logger.Error().Err(err).Msg("Invalid configuration.")
				return &exitError{code: exitConfig, err: err}
			}
			return run(cmd.Context(), cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "optional YAML config file")
	flags.String("queue-bucket", "", "bucket holding pending requests")
	flags.String("queue-prefix", "", "only poll keys under this prefix")
	flags.String("target", "", "storage target: blob, record, redis or memory")
	flags.String("widget-bucket", "", "bucket for the blob target")
	flags.String("table", "", "collection for the record target")
	flags.String("redis-addr", "", "address for the redis target")
	flags.String("redis-password", "", "password for the redis target")
	flags.Int("redis-db", 0, "database number for the redis target")
	flags.String("redis-key-prefix", "widget", "key prefix for the redis target")
	flags.Int("sleep-ms", 100, "delay in milliseconds when the queue is empty")
	flags.Int("stop-after", 0, "exit after this many processed requests; 0 runs until interrupted")
	flags.String("log-file", "consumer.log", "log file, appended to")
	flags.String("log-level", "info", "log level")
	flags.String("project-id", "", "Google Cloud project; detected when empty")
	flags.String("credentials-file", "", "Google Cloud credentials file")
	flags.String("notify-topic", "", "Pub/Sub topic announcing stored widgets")
	flags.String("health-addr", "", "address for /healthz and /statusz; empty disables")

	for name, key := range flagKeys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
	return cmd
}
