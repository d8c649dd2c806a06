package common

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the startup configuration
func PrintBanner(config *Config, logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorGreen).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")

	b.PrintTopLine()
	b.PrintCenteredText("O1EXPORT")
	b.PrintCenteredText("Project Form Exporter")
	b.PrintSeparatorLine()

	for _, kv := range bannerLines(config) {
		b.PrintKeyValue(kv[0], kv[1], 15)
	}
	b.PrintBottomLine()

	fmt.Printf("\n")

	logger.Info().
		Str("version", GetVersion()).
		Str("build", Build).
		Str("environment", config.Environment).
		Str("projects_file", config.Export.ProjectsFile).
		Str("output_dir", config.Export.OutputDir).
		Bool("headless", config.Browser.Headless).
		Str("log_level", config.Logging.Level).
		Msg("Application started")
}

func bannerLines(config *Config) [][2]string {
	return [][2]string{
		{"Version", GetVersion()},
		{"Build", Build},
		{"Environment", config.Environment},
		{"Projects", config.Export.ProjectsFile},
		{"Output", config.Export.OutputDir},
		{"Browser", browserMode(config.Browser.Headless)},
		{"Log level", config.Logging.Level},
		{"Log output", strings.Join(config.Logging.Output, ", ")},
	}
}

func browserMode(headless bool) string {
	if headless {
		return "headless"
	}
	return "headful"
}
