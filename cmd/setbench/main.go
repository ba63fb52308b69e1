// Package main implements the setbench binary.
// It serves the REST API, or runs a single benchmark or stress pass from the
// command line, depending on the --mode flag.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/setbench/setbench/internal/app"
	"github.com/setbench/setbench/internal/config"
	"github.com/setbench/setbench/internal/stress"
)

// defaultBenchSeed is loaded when a bench run finds the store empty.
const defaultBenchSeed = 1000

var (
	version = "dev"
	commit  = "unknown"
)

type flags struct {
	configFile  string
	dataDir     string
	mode        string
	driver      string
	httpAddr    string
	grpcAddr    string
	seed        int
	concurrency int
	ops         int
	export      bool
	jsonOut     bool
}

func main() {
	var (
		f           flags
		envFile     string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&f.dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&f.mode, "mode", "", "Run mode: serve, bench, stress")
	flag.StringVar(&f.driver, "driver", "", "Store driver: sqlite, memory")
	flag.StringVar(&f.httpAddr, "http-addr", "", "HTTP address for the REST API")
	flag.StringVar(&f.grpcAddr, "grpc-addr", "", "gRPC health service address")
	flag.IntVar(&f.seed, "seed", 0, "Records to bulk-load before a bench or stress run")
	flag.IntVar(&f.concurrency, "concurrency", 0, "Virtual users for a stress run")
	flag.IntVar(&f.ops, "ops", 0, "Operations per virtual user for a stress run")
	flag.BoolVar(&f.export, "export", false, "Archive metrics and the benchmark report after a run")
	flag.BoolVar(&f.jsonOut, "json", false, "Print the run report as JSON instead of a table")
	flag.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before SETBENCH_* variables")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "setbench - index structure benchmark for an inventory record set\n\n")
		fmt.Fprintf(os.Stderr, "Usage: setbench [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  setbench --data-dir /data/setbench\n")
		fmt.Fprintf(os.Stderr, "  setbench --mode bench --seed 10000 --export\n")
		fmt.Fprintf(os.Stderr, "  setbench --mode stress --concurrency 50 --ops 100 --seed 1000\n")
		fmt.Fprintf(os.Stderr, "  setbench --config /etc/setbench/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SETBENCH_MODE            Run mode (serve, bench, stress)\n")
		fmt.Fprintf(os.Stderr, "  SETBENCH_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  SETBENCH_HTTP_ADDR       HTTP address for the REST API\n")
		fmt.Fprintf(os.Stderr, "  SETBENCH_STORE_DRIVER    Store driver (sqlite, memory)\n")
		fmt.Fprintf(os.Stderr, "  SETBENCH_EXPORT_BACKEND  Export backend (local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("setbench version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			log.Printf("Ignoring env file %s: %v", envFile, err)
		}
	}

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printBanner(cfg)

	application, err := app.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	switch cfg.Mode {
	case config.ModeBench:
		err = runBench(ctx, application, f)
	case config.ModeStress:
		err = runStress(ctx, application, f)
	default:
		err = serve(ctx, application)
	}
	if err != nil {
		log.Printf("setbench: %v", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, application *app.App) error {
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	return application.WaitForShutdown(ctx)
}

func runBench(ctx context.Context, application *app.App, f flags) error {
	if err := application.Init(ctx); err != nil {
		return err
	}
	defer application.Stop(context.Background())

	svc := application.Service()
	seed := f.seed
	if seed == 0 {
		n, err := svc.Count(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			seed = defaultBenchSeed
		}
	}
	if seed > 0 {
		res, err := svc.Seed(ctx, seed)
		if err != nil {
			return fmt.Errorf("seed failed: %w", err)
		}
		log.Printf("Seeded %d records (%d total)", res.Inserted, res.Total)
	}

	rep, err := application.Engine().Run(ctx)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	if f.jsonOut {
		if err := printJSON(rep); err != nil {
			return err
		}
	} else {
		fmt.Print(rep.Table())
	}

	return maybeExport(ctx, application, f)
}

func runStress(ctx context.Context, application *app.App, f flags) error {
	if err := application.Init(ctx); err != nil {
		return err
	}
	defer application.Stop(context.Background())

	cfg := application.Config()
	run := stress.Config{
		Concurrency: f.concurrency,
		OpsPerUser:  f.ops,
		Seed:        f.seed,
	}
	if run.Concurrency == 0 {
		run.Concurrency = cfg.Stress.DefaultConcurrency
	}
	if run.OpsPerUser == 0 {
		run.OpsPerUser = cfg.Stress.DefaultOpsPerUser
	}

	rep, err := application.Harness().Run(ctx, run)
	if err != nil {
		return fmt.Errorf("stress run failed: %w", err)
	}

	if f.jsonOut {
		if err := printJSON(rep); err != nil {
			return err
		}
	} else {
		fmt.Print(rep.Summary)
	}

	return maybeExport(ctx, application, f)
}

func maybeExport(ctx context.Context, application *app.App, f flags) error {
	if !f.export {
		return nil
	}
	m, err := application.Export(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	log.Printf("Exported %d artifacts to %s/%s", len(m.Entries), m.Location, m.Root)
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(f flags) (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if f.configFile != "" {
		cfg, err = config.LoadFromFile(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}
	if f.mode != "" {
		cfg.Mode = config.Mode(f.mode)
	}
	if f.driver != "" {
		cfg.Store.Driver = f.driver
	}
	if f.httpAddr != "" {
		cfg.HTTP.Addr = f.httpAddr
	}
	if f.grpcAddr != "" {
		cfg.GRPC.Addr = f.grpcAddr
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("╔═══════════════════════════════════════════════════════════╗")
	log.Printf("║                       SETBENCH                            ║")
	log.Printf("║      Hash vs insertion-ordered vs sorted record sets      ║")
	log.Printf("╚═══════════════════════════════════════════════════════════╝")
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Mode:     %s", cfg.Mode)
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  Store:    %s", cfg.Store.Driver)
	log.Printf("  Export:   %s", cfg.Export.Backend)
	log.Printf("")

	if cfg.Mode == config.ModeServe || cfg.Mode == "" {
		log.Printf("REST API:")
		log.Printf("  HTTP: %s", cfg.HTTP.Addr)
		if cfg.GRPC.Enabled {
			log.Printf("  gRPC health: %s", cfg.GRPC.Addr)
		}
		log.Printf("")
	}
}
