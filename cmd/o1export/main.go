package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/o1export/internal/app"
	"github.com/ternarybob/o1export/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths // Multiple -config flags supported
	devMode      = flag.Bool("dev", false, "Headful browser and debug logging")
	projectsFile = flag.String("projects", "", "Project list file (overrides config)")
	outputDir    = flag.String("output", "", "Output directory (overrides config)")
	historyLimit = flag.Int("history", 0, "Print the last N export runs and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("o1export version %s\n", common.GetFullVersion())
		return 0
	}

	// Startup sequence:
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	if len(configFiles) == 0 {
		if _, err := os.Stat("o1export.toml"); err == nil {
			configFiles = append(configFiles, "o1export.toml")
		} else if _, err := os.Stat("deployments/local/o1export.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/o1export.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		return 1
	}

	common.ApplyFlagOverrides(config, *devMode, *projectsFile, *outputDir)

	logger := common.SetupLogger(config)
	common.InstallCrashHandler(config.Logging.Dir)

	if *historyLimit > 0 {
		if err := printHistory(config, logger, *historyLimit); err != nil {
			logger.Error().Err(err).Msg("Failed to read run history")
			return 1
		}
		return 0
	}

	if err := config.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	common.PrintBanner(config, logger)
	logger.Debug().Strs("config_files", configFiles).Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return 1
	}

	return execute(ctx, application, logger)
}

// execute runs the export and always goes through the shutdown sequence,
// including after a panic
func execute(ctx context.Context, application *app.App, logger arbor.ILogger) (code int) {
	defer func() {
		if r := recover(); r != nil {
			crashPath := common.WriteCrashFile(r, common.GetStackTrace())
			logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("crash_file", crashPath).
				Msg("Export run panicked")
			code = 1
		}
		if err := application.Close(); err != nil {
			logger.Error().Err(err).Msg("Shutdown completed with errors")
			code = 1
		}
	}()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn().Msg("Interrupt signal received")
		} else {
			logger.Error().Err(err).Msg("Export run failed")
		}
		return 1
	}
	return 0
}

func printHistory(config *common.Config, logger arbor.ILogger, limit int) error {
	runs, err := app.ListRuns(config, logger, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No export runs recorded")
		return nil
	}

	fmt.Printf("%-36s  %-19s  %-11s  %9s  %8s  %5s  %s\n",
		"RUN", "STARTED", "STATUS", "DURATION", "PROJECTS", "FAILED", "EXPORT LOG")
	for _, r := range runs {
		fmt.Printf("%-36s  %-19s  %-11s  %9s  %3d / %-3d  %5d  %s\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Status,
			r.Duration().Round(time.Second),
			r.Summary.ProjectsExported,
			r.Summary.Projects,
			r.Summary.FormsFailed,
			r.ExportLogFile,
		)
	}
	return nil
}
