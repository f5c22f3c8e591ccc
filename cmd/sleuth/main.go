package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/internal/runner"
	"github.com/ajitpratap0/sleuth/pkg/adapter/registry"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/logger"
	"github.com/ajitpratap0/sleuth/pkg/observability"
	"github.com/ajitpratap0/sleuth/pkg/rules"

	// Import all adapters to register them
	_ "github.com/ajitpratap0/sleuth/pkg/adapter/bigquery"
	_ "github.com/ajitpratap0/sleuth/pkg/adapter/elasticsearch"
	_ "github.com/ajitpratap0/sleuth/pkg/adapter/file"
	_ "github.com/ajitpratap0/sleuth/pkg/adapter/gcs"
	_ "github.com/ajitpratap0/sleuth/pkg/adapter/kafka"
	_ "github.com/ajitpratap0/sleuth/pkg/adapter/mongodb"
	_ "github.com/ajitpratap0/sleuth/pkg/adapter/mysql"
	_ "github.com/ajitpratap0/sleuth/pkg/adapter/postgres"
	_ "github.com/ajitpratap0/sleuth/pkg/adapter/redis"
	_ "github.com/ajitpratap0/sleuth/pkg/adapter/s3"
	_ "github.com/ajitpratap0/sleuth/pkg/adapter/snowflake"
	_ "github.com/ajitpratap0/sleuth/pkg/adapter/sqlite"
)

var version = "0.1.0"

// envPrefix is the prefix for environment overrides, e.g.
// SLEUTH_FETCH_SIZE for --fetch-size.
const envPrefix = "SLEUTH"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "sleuth",
		Short: "Sleuth - scan data stores for unprotected personal data",
		Long: `Sleuth scans databases, warehouses, object stores, message brokers, and
file trees for unprotected personal and sensitive data: emails, card
numbers, national identifiers, credentials, and more.

Examples:
  sleuth scan postgres://user@localhost:5432/app
  sleuth scan s3://exports-bucket/2024/ --show-data
  sleuth scan kafka://broker:9092?topic_prefix=orders --format json`,
		SilenceUsage: true,
	}

	root.AddCommand(versionCommand())
	root.AddCommand(adaptersCommand())
	root.AddCommand(rulesCommand())
	root.AddCommand(scanCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(runner.ExitFatal)
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Sleuth v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func adaptersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List available data source adapters",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available adapters:")
			for _, info := range registry.Infos() {
				fmt.Printf("\n  %s - %s\n", info.Name, info.Description)
				fmt.Printf("    example: %s\n", info.Example)
				fmt.Printf("    capabilities: %s\n", strings.Join(info.Capabilities, ", "))
			}
		},
	}
}

func rulesCommand() *cobra.Command {
	var rulesFile string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the detection rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := rules.NewCatalog()
			if rulesFile != "" {
				if err := rules.LoadFile(rulesFile, catalog); err != nil {
					return err
				}
			}
			for _, r := range catalog.Rules() {
				fmt.Printf("%-20s %-8s %s\n", r.Name, r.Confidence, r.DisplayName)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesFile, "rules-file", "", "Include custom rules from a YAML file")
	return cmd
}

func scanCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan a data source for sensitive data",
		Long: `Scan connects to the data source named by the URL, enumerates its units
(tables, collections, topics, objects, files), and matches their values
against the detection rules. Results print to stdout; diagnostics log to
stderr.

Every flag can also be set through the environment with the SLEUTH_
prefix, e.g. SLEUTH_FETCH_SIZE=25000.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			v.SetEnvPrefix(envPrefix)
			v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			v.AutomaticEnv()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			cfg, err := buildConfig(args[0], cmd.Flags(), v)
			if err != nil {
				return err
			}
			format = v.GetString("format")

			if err := logger.Init(logger.Config{Level: cfg.Observability.LogLevel}); err != nil {
				return err
			}
			log := logger.Get().With(zap.String("component", "sleuth-cli"))

			if cfg.Observability.EnableTracing {
				tc := observability.DefaultTracingConfig()
				tc.ServiceVersion = version
				tc.SamplingRate = cfg.Observability.TracingSampleRate
				if err := observability.Initialize(tc); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout := v.GetDuration("timeout"); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			result, err := runner.New(cfg, format, os.Stdout).Run(ctx)
			if err != nil {
				log.Error("scan failed", zap.Error(err))
			}

			if cfg.Observability.EnableTracing {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := observability.Shutdown(sctx); err != nil {
					log.Warn("tracing shutdown failed", zap.Error(err))
				}
				cancel()
			}
			_ = logger.Sync()

			if code := runner.ExitCode(result, err); code != runner.ExitOK {
				os.Exit(code)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "Path to a YAML scan configuration file")
	flags.StringVar(&format, "format", "text", "Output format (text, json)")
	flags.String("name", "scan", "Label for this run in logs and traces")

	flags.Int("concurrency", 10, "Maximum units scanned in parallel")
	flags.Int("fetch-size", 10000, "Initial rows fetched per batch")
	flags.Int("min-batch-size", 1000, "Floor for adaptive batch shrinking")
	flags.Int("max-batch-size", 50000, "Ceiling for adaptive batch growth")
	flags.Int("sample-size", 1000, "Row or document cap for sampled sources")
	flags.Bool("sample-only", false, "Scan only the first sample-size rows of each unit")

	flags.Duration("unit-timeout", 2*time.Minute, "Deadline for scanning one unit")
	flags.Duration("connect-timeout", 30*time.Second, "Deadline for establishing connections")
	flags.Duration("timeout", 0, "Deadline for the whole run (0 means none)")
	flags.Int("retry-attempts", 3, "Connection attempts before giving up")
	flags.Duration("retry-delay", time.Second, "Initial delay between connection retries")

	flags.String("namespace", "", "Restrict the scan to one schema or database")
	flags.StringSlice("skip-namespaces", nil, "Schemas or databases to skip")

	flags.StringSlice("only", nil, "Match only the named rules")
	flags.StringSlice("except", nil, "Exclude the named rules")
	flags.String("pattern", "", "Ad-hoc regular expression scanned alongside the catalog")
	flags.String("rules-file", "", "YAML file of additional custom rules")
	flags.Bool("show-data", false, "Include matched values in the output")
	flags.Bool("show-all", false, "Include low-confidence matches")
	flags.String("min-confidence", "low", "Hide matches below this tier (low, medium, high)")

	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("enable-tracing", false, "Emit trace spans around scan phases")

	return cmd
}

// buildConfig layers configuration: defaults, then the config file, then
// environment variables, then explicit flags. The positional URL always
// wins.
func buildConfig(url string, flags *pflag.FlagSet, v *viper.Viper) (*config.ScanConfig, error) {
	cfg := config.NewScanConfig(url)

	if file := v.GetString("config"); file != "" {
		if err := config.Load(file, cfg); err != nil {
			return nil, err
		}
		cfg.URL = url
	}

	// set reports whether the user provided the knob explicitly, by flag
	// or environment; only then does it override the config file.
	set := func(name string) bool {
		if f := flags.Lookup(name); f != nil && f.Changed {
			return true
		}
		env := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		_, ok := os.LookupEnv(env)
		return ok
	}

	if set("name") {
		cfg.Name = v.GetString("name")
	}
	if set("concurrency") {
		cfg.Performance.MaxConcurrentUnits = v.GetInt("concurrency")
	}
	if set("fetch-size") {
		cfg.Performance.FetchSize = v.GetInt("fetch-size")
	}
	if set("min-batch-size") {
		cfg.Performance.MinBatchSize = v.GetInt("min-batch-size")
	}
	if set("max-batch-size") {
		cfg.Performance.MaxBatchSize = v.GetInt("max-batch-size")
	}
	if set("sample-size") {
		cfg.Performance.SampleSize = v.GetInt("sample-size")
	}
	if set("sample-only") {
		cfg.Performance.SampleOnly = v.GetBool("sample-only")
	}
	if set("unit-timeout") {
		cfg.Timeouts.Unit = v.GetDuration("unit-timeout")
	}
	if set("connect-timeout") {
		cfg.Timeouts.Connection = v.GetDuration("connect-timeout")
	}
	if set("retry-attempts") {
		cfg.Reliability.RetryAttempts = v.GetInt("retry-attempts")
	}
	if set("retry-delay") {
		cfg.Reliability.RetryDelay = v.GetDuration("retry-delay")
	}
	if set("namespace") {
		cfg.Filters.Namespace = v.GetString("namespace")
	}
	if set("skip-namespaces") {
		cfg.Filters.SkipNamespaces = v.GetStringSlice("skip-namespaces")
	}
	if set("only") {
		cfg.Matching.Only = v.GetStringSlice("only")
	}
	if set("except") {
		cfg.Matching.Except = v.GetStringSlice("except")
	}
	if set("pattern") {
		cfg.Matching.Pattern = v.GetString("pattern")
	}
	if set("rules-file") {
		cfg.Matching.RulesFile = v.GetString("rules-file")
	}
	if set("show-data") {
		cfg.Matching.ShowData = v.GetBool("show-data")
	}
	if set("show-all") {
		cfg.Matching.ShowAll = v.GetBool("show-all")
	}
	if set("min-confidence") {
		cfg.Matching.MinConfidence = v.GetString("min-confidence")
	}
	if set("log-level") {
		cfg.Observability.LogLevel = v.GetString("log-level")
	}
	if set("enable-tracing") {
		cfg.Observability.EnableTracing = v.GetBool("enable-tracing")
	}

	return cfg, nil
}
