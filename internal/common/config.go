package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	DevMode     bool            `toml:"dev_mode"`    // Headful browser and debug logging
	Logging     LoggingConfig   `toml:"logging"`
	Browser     BrowserConfig   `toml:"browser"`
	Login       LoginConfig     `toml:"login"`
	Session     SessionConfig   `toml:"session"`
	Export      ExportConfig    `toml:"export"`
	ExportLog   ExportLogConfig `toml:"export_log"`
	Downloads   DownloadsConfig `toml:"downloads"`
	Timeouts    TimeoutsConfig  `toml:"timeouts"`
	Selectors   SelectorsConfig `toml:"selectors"`
	History     HistoryConfig   `toml:"history"`
}

// Duration is a time.Duration read from a Go duration string ("30s", "5m")
type Duration struct {
	time.Duration
}

// Dur wraps d as a config Duration
func Dur(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output     []string `toml:"output" validate:"dive,oneof=stdout console file"` // "stdout", "file"
	Dir        string   `toml:"dir"`                                              // Log file directory (default: "./logs")
	TimeFormat string   `toml:"time_format"`
}

// BrowserConfig controls the chromedp allocator
type BrowserConfig struct {
	Headless           bool     `toml:"headless"`
	DisableGPU         bool     `toml:"disable_gpu"`
	NoSandbox          bool     `toml:"no_sandbox"`
	WindowWidth        int      `toml:"window_width" validate:"gt=0"`
	WindowHeight       int      `toml:"window_height" validate:"gt=0"`
	UserAgent          string   `toml:"user_agent"`
	StartupTimeout     Duration `toml:"startup_timeout"`
	NavigationInterval Duration `toml:"navigation_interval"` // Minimum gap between navigations (0 = unlimited)
}

// LoginConfig holds the interactive re-authentication target and credentials
type LoginConfig struct {
	URL      string `toml:"url" validate:"required,url"`      // Identity provider sign-in page
	HomeURL  string `toml:"home_url" validate:"required,url"` // Origin used to adopt a session
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// SessionConfig controls session persistence
type SessionConfig struct {
	File         string `toml:"file" validate:"required"`
	ExemptCookie string `toml:"exempt_cookie"` // Analytics cookie excluded from expiry checks
}

// ExportConfig controls the export run
type ExportConfig struct {
	ProjectsFile       string   `toml:"projects_file" validate:"required"`
	OutputDir          string   `toml:"output_dir" validate:"required"`
	TempDir            string   `toml:"temp_dir" validate:"required"` // Staging directory name under output_dir
	MaxRetry           int      `toml:"max_retry" validate:"gte=0"`
	PageSize           int      `toml:"page_size" validate:"gt=0"`
	SkipFormTypes      []string `toml:"skip_form_types"`
	TabularFileName    string   `toml:"tabular_file_name" validate:"required"`    // fmt pattern, %s = form type
	DocumentFileLayout string   `toml:"document_file_layout" validate:"required"` // Go time layout of the archive name
	ConflictTitle      string   `toml:"conflict_title"`                           // Page title of the account chooser
	MenuAttempts       int      `toml:"menu_attempts" validate:"gt=0"`
	ShutdownCountdown  Duration `toml:"shutdown_countdown"`
}

// ExportLogConfig controls the per-run audit file
type ExportLogConfig struct {
	Dir        string `toml:"dir" validate:"required"`
	Name       string `toml:"name" validate:"required"`
	TimeLayout string `toml:"time_layout" validate:"required"`
	Report     bool   `toml:"report"` // Render a PDF summary next to the log on shutdown
}

// DownloadsConfig controls the download completion watcher
type DownloadsConfig struct {
	Timeout         Duration `toml:"timeout"`
	PollInterval    Duration `toml:"poll_interval"`
	PartialSuffixes []string `toml:"partial_suffixes"`
}

// TimeoutsConfig holds the UI wait ceilings and settle delays
type TimeoutsConfig struct {
	Default      Duration `toml:"default"`       // Page level waits
	Short        Duration `toml:"short"`         // Total items probe
	Element      Duration `toml:"element"`       // Buttons, probes, active page
	Menu         Duration `toml:"menu"`          // Export modal
	Refresh      Duration `toml:"refresh"`       // Settle time after a reload
	ShortDelay   Duration `toml:"short_delay"`   // Settle time between clicks
	SecondFactor Duration `toml:"second_factor"` // Operator approval of the second factor
}

// SelectorsConfig holds every UI selector (XPath or CSS search expressions).
// FormHeading is a fmt pattern where %s is the form type name as a quoted XPath literal.
type SelectorsConfig struct {
	// Login flow
	EmailField      string `toml:"email_field" validate:"required"`
	PasswordField   string `toml:"password_field" validate:"required"`
	SignInButton    string `toml:"sign_in_button" validate:"required"`
	SecondFactor    string `toml:"second_factor" validate:"required"`
	LoggedInMarker  string `toml:"logged_in_marker" validate:"required"`
	HomeMarker      string `toml:"home_marker" validate:"required"`
	ProjectLanding  string `toml:"project_landing" validate:"required"`
	ProjectName     string `toml:"project_name" validate:"required"`
	ProjectNameAttr string `toml:"project_name_attr" validate:"required"`

	// Form type navigation
	WorkTab           string `toml:"work_tab" validate:"required"`
	WorkContainer     string `toml:"work_container" validate:"required"`
	FormNavBar        string `toml:"form_nav_bar" validate:"required"`
	FormTypes         string `toml:"form_types" validate:"required"`
	FormHeading       string `toml:"form_heading" validate:"required"`
	ArchivedContainer string `toml:"archived_container" validate:"required"`
	EmptyContainer    string `toml:"empty_container" validate:"required"`

	// Table and pagination
	TableRow       string `toml:"table_row" validate:"required"`
	TableRows      string `toml:"table_rows" validate:"required"`
	TotalFormsItem string `toml:"total_forms_item" validate:"required"`
	ActivePageItem string `toml:"active_page_item" validate:"required"`
	NextPageItem   string `toml:"next_page_item" validate:"required"`

	// Export triggers
	MenuButton         string         `toml:"menu_button" validate:"required"`
	MenuPopover        string         `toml:"menu_popover" validate:"required"`
	ExportExcel        string         `toml:"export_excel" validate:"required"`
	ArchiveExportExcel string         `toml:"archive_export_excel" validate:"required"`
	ExportPDF          string         `toml:"export_pdf" validate:"required"`
	ArchiveExportPDF   string         `toml:"archive_export_pdf" validate:"required"`
	SelectAll          string         `toml:"select_all" validate:"required"`
	ExportModal        string         `toml:"export_modal" validate:"required"`
	ExportButton       string         `toml:"export_button" validate:"required"`
	ExportOptions      []ExportOption `toml:"export_options" validate:"dive"`
}

// ExportOption is one checkbox ticked in the document export modal
type ExportOption struct {
	Name     string `toml:"name" validate:"required"`
	Selector string `toml:"selector" validate:"required"`
}

// HistoryConfig controls the badger run history store
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path" validate:"required_if=Enabled true"`
}

// NewDefaultConfig creates a configuration with default values.
// Selectors default to the layout of the target UI at the time of writing;
// deployments override them in o1export.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			Dir:        "./logs",
			TimeFormat: "15:04:05",
		},
		Browser: BrowserConfig{
			Headless:       true,
			DisableGPU:     true,
			WindowWidth:    1920,
			WindowHeight:   1200,
			StartupTimeout: Dur(30 * time.Second),
		},
		Session: SessionConfig{
			File:         "./cookies.json",
			ExemptCookie: "_gat_gtag_UA_17568443_1",
		},
		Export: ExportConfig{
			ProjectsFile:       "./projects.txt",
			OutputDir:          "./output",
			TempDir:            "temp",
			MaxRetry:           5,
			PageSize:           25,
			SkipFormTypes:      []string{"My work"},
			TabularFileName:    "%s.xlsx",
			DocumentFileLayout: "SYNCHRO_export_2006_01_02.zip",
			ConflictTitle:      "Choose an Account",
			MenuAttempts:       3,
			ShutdownCountdown:  Dur(5 * time.Second),
		},
		ExportLog: ExportLogConfig{
			Dir:        "./export_logs",
			Name:       "export_log.json",
			TimeLayout: "02-01-2006_15-04-05",
			Report:     true,
		},
		Downloads: DownloadsConfig{
			Timeout:         Dur(600 * time.Second),
			PollInterval:    Dur(time.Second),
			PartialSuffixes: []string{".crdownload", ".tmp"},
		},
		Timeouts: TimeoutsConfig{
			Default:      Dur(30 * time.Second),
			Short:        Dur(15 * time.Second),
			Element:      Dur(5 * time.Second),
			Menu:         Dur(10 * time.Second),
			Refresh:      Dur(10 * time.Second),
			ShortDelay:   Dur(500 * time.Millisecond),
			SecondFactor: Dur(5 * time.Minute),
		},
		Selectors: SelectorsConfig{
			EmailField:      "#i0116",
			PasswordField:   "#i0118",
			SignInButton:    "#idSIButton9",
			SecondFactor:    "//div[contains(text(), 'PingID')]",
			LoggedInMarker:  "#change-password",
			HomeMarker:      "//div[contains(text(), 'All projects')]",
			ProjectLanding:  "//h2[contains(text(), 'My work')]",
			ProjectName:     ".description-text",
			ProjectNameAttr: "title",

			WorkTab:           "//li[@title='Work']",
			WorkContainer:     ".work-projects",
			FormNavBar:        ".form-nav-bar",
			FormTypes:         ".form-nav-bar .form-type",
			FormHeading:       "//h3[contains(text(), %s)]",
			ArchivedContainer: "//div[contains(@class, 'archived')]",
			EmptyContainer:    "//div[contains(@class, 'empty-container')]",

			TableRow:       "//tbody/tr",
			TableRows:      "//tbody/tr",
			TotalFormsItem: "//span[contains(@class, 'pagination-total')]",
			ActivePageItem: "//li[contains(@class, 'page-item active')]/span",
			NextPageItem:   "//li[contains(@class, 'page-item next')]/a",

			MenuButton:         "//button[contains(@class, 'three-dots')]",
			MenuPopover:        "//div[contains(@class, 'tippy-box')]",
			ExportExcel:        "//div[contains(text(), 'Export all data to Excel')]",
			ArchiveExportExcel: "//button[contains(., 'Export all data to Excel')]",
			ExportPDF:          "//div[contains(text(), 'Export to PDF')]",
			ArchiveExportPDF:   "//button[contains(., 'Export to PDF')]",
			SelectAll:          "//thead//input[@type='checkbox']",
			ExportModal:        "//div[contains(@class, 'export-modal')]",
			ExportButton:       "//div[contains(@class, 'export-modal')]//button[span[text()='Export']]",
			ExportOptions: []ExportOption{
				{Name: "Comments", Selector: "//label[contains(., 'Comments')]//input"},
				{Name: "Audit trail", Selector: "//label[contains(., 'Audit trail')]//input"},
				{Name: "Images", Selector: "//label[contains(., 'Images')]//input"},
				{Name: "Export attachments", Selector: "//label[contains(., 'Export attachments')]//input"},
			},
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "./data/history",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied by the caller.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("O1EXPORT_ENV"); env != "" {
		config.Environment = env
	}
	if devMode := os.Getenv("O1EXPORT_DEV_MODE"); devMode != "" {
		if dm, err := strconv.ParseBool(devMode); err == nil {
			config.DevMode = dm
		}
	}

	// Logging configuration
	if level := os.Getenv("O1EXPORT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("O1EXPORT_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Browser configuration
	if headless := os.Getenv("O1EXPORT_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if noSandbox := os.Getenv("O1EXPORT_NO_SANDBOX"); noSandbox != "" {
		if ns, err := strconv.ParseBool(noSandbox); err == nil {
			config.Browser.NoSandbox = ns
		}
	}

	// Login configuration
	if loginURL := os.Getenv("O1EXPORT_LOGIN_URL"); loginURL != "" {
		config.Login.URL = loginURL
	}
	if homeURL := os.Getenv("O1EXPORT_HOME_URL"); homeURL != "" {
		config.Login.HomeURL = homeURL
	}
	if username := os.Getenv("O1EXPORT_USERNAME"); username != "" {
		config.Login.Username = username
	}
	if password := os.Getenv("O1EXPORT_PASSWORD"); password != "" {
		config.Login.Password = password
	}

	// Session configuration
	if sessionFile := os.Getenv("O1EXPORT_SESSION_FILE"); sessionFile != "" {
		config.Session.File = sessionFile
	}

	// Export configuration
	if projectsFile := os.Getenv("O1EXPORT_PROJECTS_FILE"); projectsFile != "" {
		config.Export.ProjectsFile = projectsFile
	}
	if outputDir := os.Getenv("O1EXPORT_OUTPUT_DIR"); outputDir != "" {
		config.Export.OutputDir = outputDir
	}
	if tempDir := os.Getenv("O1EXPORT_TEMP_DIR"); tempDir != "" {
		config.Export.TempDir = tempDir
	}
	if maxRetry := os.Getenv("O1EXPORT_MAX_RETRY"); maxRetry != "" {
		if mr, err := strconv.Atoi(maxRetry); err == nil {
			config.Export.MaxRetry = mr
		}
	}
	if exportLogDir := os.Getenv("O1EXPORT_EXPORT_LOG_DIR"); exportLogDir != "" {
		config.ExportLog.Dir = exportLogDir
	}
	if exportLogName := os.Getenv("O1EXPORT_EXPORT_LOG_NAME"); exportLogName != "" {
		config.ExportLog.Name = exportLogName
	}

	// Downloads configuration
	if timeout := os.Getenv("O1EXPORT_DOWNLOAD_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			config.Downloads.Timeout = Dur(t)
		}
	}

	// History configuration
	if historyPath := os.Getenv("O1EXPORT_HISTORY_PATH"); historyPath != "" {
		config.History.Path = historyPath
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, devMode bool, projectsFile, outputDir string) {
	if devMode {
		config.DevMode = true
	}
	if config.DevMode {
		config.Browser.Headless = false
		config.Logging.Level = "debug"
	}
	if projectsFile != "" {
		config.Export.ProjectsFile = projectsFile
	}
	if outputDir != "" {
		config.Export.OutputDir = outputDir
	}
}

// Validate checks the resolved configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !strings.Contains(c.Export.TabularFileName, "%s") {
		return fmt.Errorf("invalid configuration: export.tabular_file_name must contain %%s")
	}
	if !strings.Contains(c.Selectors.FormHeading, "%s") {
		return fmt.Errorf("invalid configuration: selectors.form_heading must contain %%s")
	}
	return nil
}
