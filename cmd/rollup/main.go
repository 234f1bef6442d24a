package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/curran/rollup/internal/cache"
	"github.com/curran/rollup/internal/graph"
	"github.com/curran/rollup/internal/output"
	"github.com/curran/rollup/pkg/config"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func main() {
	app := &cli.App{
		Name:      "rollup",
		Usage:     "JavaScript module bundler with statement-level tree shaking",
		Version:   version,
		Metadata:  make(map[string]interface{}),
		ArgsUsage: "[entry file]",
		Description: `Rollup bundles an ES module graph into a single file, including only
the statements the entry point actually uses.

Output formats: es (ES module), cjs (CommonJS)`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"ROLLUP_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Bundle format: es, cjs",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write bundle to file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "report",
				Usage: "Print a tree-shaking report",
			},
			&cli.StringFlag{
				Name:  "report-format",
				Usage: "Report format: text, json, markdown, toon",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable caching",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output",
			},
			&cli.StringFlag{
				Name:  "pprof",
				Usage: "Enable pprof profiling and write to specified prefix (creates <prefix>.cpu.pprof and <prefix>.mem.pprof)",
			},
		},
		Before: func(c *cli.Context) error {
			if pprofPrefix := c.String("pprof"); pprofPrefix != "" {
				cpuFile, err := os.Create(pprofPrefix + ".cpu.pprof")
				if err != nil {
					return fmt.Errorf("failed to create CPU profile: %w", err)
				}
				if err := pprof.StartCPUProfile(cpuFile); err != nil {
					cpuFile.Close()
					return fmt.Errorf("failed to start CPU profile: %w", err)
				}
				c.App.Metadata["pprofCPU"] = cpuFile
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if pprofPrefix := c.String("pprof"); pprofPrefix != "" {
				pprof.StopCPUProfile()
				if cpuFile, ok := c.App.Metadata["pprofCPU"].(*os.File); ok {
					cpuFile.Close()
					color.Green("CPU profile written to %s.cpu.pprof", pprofPrefix)
				}

				memFile, err := os.Create(pprofPrefix + ".mem.pprof")
				if err != nil {
					return fmt.Errorf("failed to create memory profile: %w", err)
				}
				defer memFile.Close()

				runtime.GC() // Get up-to-date statistics
				if err := pprof.WriteHeapProfile(memFile); err != nil {
					return fmt.Errorf("failed to write memory profile: %w", err)
				}
				color.Green("Memory profile written to %s.mem.pprof", pprofPrefix)
			}
			return nil
		},
		Action: runBundle,
		Commands: []*cli.Command{
			bundleCmd(),
			configCmd(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func bundleCmd() *cli.Command {
	return &cli.Command{
		Name:      "bundle",
		Usage:     "Bundle an entry module and its dependencies",
		ArgsUsage: "[entry file]",
		Action:    runBundle,
	}
}

// loadCLIConfig loads configuration and applies flag overrides.
func loadCLIConfig(c *cli.Context) (*config.Config, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}

	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}
	cfg := result.Config

	if format := c.String("format"); format != "" {
		cfg.Bundle.Format = format
	}
	if out := c.String("output"); out != "" {
		cfg.Bundle.Output = out
	}
	if c.Bool("report") {
		cfg.Report.Enabled = true
	}
	if rf := c.String("report-format"); rf != "" {
		cfg.Report.Format = rf
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}

	return cfg, cfg.Validate()
}

func runBundle(c *cli.Context) error {
	cfg, err := loadCLIConfig(c)
	if err != nil {
		return err
	}

	entry := cfg.Bundle.Entry
	if c.Args().Len() > 0 {
		entry = c.Args().First()
	}
	if entry == "" {
		return fmt.Errorf("no entry file given (pass one as an argument or set bundle.entry in the config)")
	}

	bundle := graph.NewBundle(entry, graph.Options{
		Format:  cfg.Bundle.Format,
		Verbose: cfg.Output.Verbose,
	})
	defer bundle.Close()

	if err := bundle.Build(); err != nil {
		return err
	}

	store, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	files := bundle.ModulePaths()
	key := cache.Key(entry, cfg.Bundle.Format)
	hash, err := cache.HashFiles(files)
	if err != nil {
		return err
	}

	var code string
	if cached, ok := store.Get(key, hash); ok {
		code = string(cached)
		if cfg.Output.Verbose {
			fmt.Fprintln(os.Stderr, "Using cached bundle")
		}
	} else {
		code, err = bundle.Generate()
		if err != nil {
			return err
		}
		if err := store.Set(key, hash, files, []byte(code)); err != nil && cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "Warning: failed to write cache: %v\n", err)
		}
	}

	if err := writeBundle(cfg.Bundle.Output, code); err != nil {
		return err
	}

	if cfg.Report.Enabled {
		if err := printReport(bundle, cfg); err != nil {
			return err
		}
	}

	if cfg.Bundle.Output != "" {
		color.Green("Bundle written to %s (%d modules)", cfg.Bundle.Output, len(files))
	}

	return nil
}

func writeBundle(path, code string) error {
	if path == "" {
		_, err := fmt.Print(code)
		return err
	}
	return os.WriteFile(path, []byte(code), 0644)
}

// printReport renders the tree-shaking report. It goes to stdout unless the
// bundle itself was written there, in which case the report uses stderr.
func printReport(bundle *graph.Bundle, cfg *config.Config) error {
	format := output.ParseFormat(cfg.Report.Format)

	var formatter *output.Formatter
	if cfg.Bundle.Output == "" {
		formatter = output.NewWriterFormatter(format, os.Stderr, cfg.Output.Color)
	} else {
		var err error
		formatter, err = output.NewFormatter(format, "", cfg.Output.Color)
		if err != nil {
			return err
		}
	}
	defer formatter.Close()

	return formatter.Output(bundle.Report().Table())
}
