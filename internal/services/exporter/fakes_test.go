package exporter

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/o1export/internal/common"
	"github.com/ternarybob/o1export/internal/interfaces"
	"github.com/ternarybob/o1export/internal/models"
	"github.com/ternarybob/o1export/internal/services/exportlog"
)

var errWaitTimeout = errors.New("wait timeout")

type fakeForm struct {
	name        string
	total       int  // items behind the pagination label
	noTotal     bool // pagination label never appears
	visibleRows int  // rows shown when noTotal
	archived    bool
	empty       bool
	hidden      bool // heading never appears after clicking
}

type fakeProject struct {
	name     string
	forms    []*fakeForm
	conflict bool // account chooser instead of the project
	broken   bool // landing marker never appears
}

// fakeUI simulates the remote UI behind the UIDriver interface
type fakeUI struct {
	t        *testing.T
	sel      common.SelectorsConfig
	projects map[string]*fakeProject

	project *fakeProject
	form    *fakeForm
	page    int

	triggered string // "excel" or "pdf" between the export click and Wait

	failExcel    bool
	failPages    map[int]bool
	dropSession  bool // the next Reload lands on the account chooser
	sessionLost  bool
	renameExcel  string // artifact name differing from the expected one
	navigations  []string
	formReads    int
	pdfPages     []int
	excelClicks  []string
	menuAttempts int
}

func newFakeUI(t *testing.T, sel common.SelectorsConfig, projects map[string]*fakeProject) *fakeUI {
	return &fakeUI{t: t, sel: sel, projects: projects, page: 1, failPages: map[int]bool{}}
}

func (u *fakeUI) heading() string {
	if u.form == nil {
		return ""
	}
	return fmt.Sprintf(u.sel.FormHeading, xpathLiteral(u.form.name))
}

func (u *fakeUI) Navigate(ctx context.Context, url string) error {
	u.navigations = append(u.navigations, url)
	u.project = u.projects[url]
	u.form = nil
	u.page = 1
	return nil
}

func (u *fakeUI) Title(ctx context.Context) (string, error) {
	if u.sessionLost || (u.project != nil && u.project.conflict) {
		return "Choose an Account", nil
	}
	return "SYNCHRO Control", nil
}

func (u *fakeUI) Reload(ctx context.Context) error {
	u.page = 1
	u.triggered = ""
	if u.dropSession {
		u.dropSession = false
		u.sessionLost = true
	}
	return nil
}

func (u *fakeUI) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.sessionLost {
		return errWaitTimeout
	}
	switch selector {
	case u.sel.ProjectLanding:
		if u.project == nil || u.project.broken {
			return errWaitTimeout
		}
	case u.sel.TableRow:
		if u.form == nil {
			return errWaitTimeout
		}
	}
	if selector == u.heading() && u.form.hidden {
		return errWaitTimeout
	}
	if u.project == nil {
		return errWaitTimeout
	}
	return nil
}

func (u *fakeUI) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return u.WaitPresent(ctx, selector, timeout)
}

func (u *fakeUI) Probe(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	if u.form == nil {
		return false, nil
	}
	switch selector {
	case u.sel.ArchivedContainer:
		return u.form.archived, nil
	case u.sel.EmptyContainer:
		return u.form.empty, nil
	}
	return false, nil
}

func (u *fakeUI) Click(ctx context.Context, selector string, timeout time.Duration) error {
	switch selector {
	case u.sel.NextPageItem:
		u.page++
	case u.sel.ExportExcel, u.sel.ArchiveExportExcel:
		u.excelClicks = append(u.excelClicks, selector)
		u.triggered = "excel"
	case u.sel.MenuButton:
		u.menuAttempts++
	case u.sel.ExportButton:
		u.pdfPages = append(u.pdfPages, u.page)
		u.triggered = "pdf"
	}
	return nil
}

func (u *fakeUI) ClickNth(ctx context.Context, selector string, index int, timeout time.Duration) error {
	if u.project == nil || index >= len(u.project.forms) {
		return errWaitTimeout
	}
	u.form = u.project.forms[index]
	u.page = 1
	return nil
}

func (u *fakeUI) SendKeys(ctx context.Context, selector, text string, timeout time.Duration) error {
	return nil
}

func (u *fakeUI) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	switch selector {
	case u.sel.TotalFormsItem:
		if u.form == nil || u.form.noTotal {
			return "", errWaitTimeout
		}
		return fmt.Sprintf("1 - 25 of %d", u.form.total), nil
	case u.sel.ActivePageItem:
		return strconv.Itoa(u.page), nil
	}
	return "", nil
}

func (u *fakeUI) Attribute(ctx context.Context, selector, name string, timeout time.Duration) (string, error) {
	if selector == u.sel.ProjectName && u.project != nil {
		return "  " + u.project.name + " ", nil
	}
	return "", errWaitTimeout
}

func (u *fakeUI) Texts(ctx context.Context, selector string, timeout time.Duration) ([]string, error) {
	if selector != u.sel.FormTypes || u.project == nil || u.sessionLost {
		return nil, errWaitTimeout
	}
	u.formReads++
	names := make([]string, len(u.project.forms))
	for i, form := range u.project.forms {
		names[i] = " " + form.name + "\n"
	}
	return names, nil
}

func (u *fakeUI) Count(ctx context.Context, selector string) (int, error) {
	if u.form == nil {
		return 0, nil
	}
	if u.form.noTotal {
		return u.form.visibleRows, nil
	}
	remaining := u.form.total - (u.page-1)*25
	if remaining > 25 {
		return 25, nil
	}
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (u *fakeUI) Cookies(ctx context.Context) ([]*models.Cookie, error)          { return nil, nil }
func (u *fakeUI) SetCookies(ctx context.Context, cookies []*models.Cookie) error { return nil }
func (u *fakeUI) ClearCookies(ctx context.Context) error                         { return nil }
func (u *fakeUI) Close() error                                                   { return nil }

// fakeWatcher produces the artifact of the last export click when waited on
type fakeWatcher struct {
	ui  *fakeUI
	dir string
}

func (w *fakeWatcher) StagingDir() string { return w.dir }

func (w *fakeWatcher) Begin(expected string) (interfaces.PendingDownload, error) {
	return &fakePending{watcher: w, expected: expected}, nil
}

type fakePending struct {
	watcher  *fakeWatcher
	expected string
	done     bool
}

func (p *fakePending) Wait(ctx context.Context, timeout time.Duration) models.DownloadOutcome {
	defer p.Close()
	ui := p.watcher.ui
	if p.done || ctx.Err() != nil {
		return models.DownloadOutcome{}
	}

	triggered := ui.triggered
	ui.triggered = ""
	switch triggered {
	case "excel":
		if ui.failExcel {
			return models.DownloadOutcome{}
		}
		name := p.expected
		if ui.renameExcel != "" {
			name = ui.renameExcel
		}
		writeFile(ui.t, filepath.Join(p.watcher.dir, name), "xlsx")
		if name != p.expected {
			return models.DownloadOutcome{Completed: true, ActualFileName: name}
		}
		return models.DownloadOutcome{Completed: true}
	case "pdf":
		if ui.failPages[ui.page] {
			return models.DownloadOutcome{}
		}
		writeZip(ui.t, filepath.Join(p.watcher.dir, p.expected), map[string]string{
			fmt.Sprintf("%s-p%d-1.pdf", ui.form.name, ui.page): "%PDF-1.4",
			fmt.Sprintf("%s-p%d-2.pdf", ui.form.name, ui.page): "%PDF-1.4",
		})
		return models.DownloadOutcome{Completed: true}
	}
	return models.DownloadOutcome{}
}

func (p *fakePending) Close() { p.done = true }

// fakeInventory reports three pages per PDF; names containing "broken" are unreadable
type fakeInventory struct{}

func (fakeInventory) Inspect(ctx context.Context, paths []string) []interfaces.DocumentInfo {
	var docs []interfaces.DocumentInfo
	for _, path := range paths {
		if filepath.Ext(path) != ".pdf" {
			continue
		}
		if strings.Contains(filepath.Base(path), "broken") {
			docs = append(docs, interfaces.DocumentInfo{Path: path})
			continue
		}
		docs = append(docs, interfaces.DocumentInfo{Path: path, PageCount: 3, Readable: true})
	}
	return docs
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

type harness struct {
	ui       *fakeUI
	exporter *Exporter
	log      *exportlog.Aggregator
	config   *common.Config
}

func newHarness(t *testing.T, projects map[string]*fakeProject) *harness {
	t.Helper()
	root := t.TempDir()

	config := common.NewDefaultConfig()
	config.Export.OutputDir = filepath.Join(root, "output")
	config.ExportLog.Dir = filepath.Join(root, "export_logs")
	config.Timeouts.Refresh = common.Dur(0)
	config.Timeouts.ShortDelay = common.Dur(0)

	staging := filepath.Join(config.Export.OutputDir, config.Export.TempDir)
	require.NoError(t, os.MkdirAll(staging, 0755))

	logger := arbor.NewLogger()
	ui := newFakeUI(t, config.Selectors, projects)
	log := exportlog.NewAggregator(config.ExportLog, time.Now(), logger)

	exporter := NewExporter(ui, &fakeWatcher{ui: ui, dir: staging}, log, nil, config, logger)
	exporter.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	return &harness{ui: ui, exporter: exporter, log: log, config: config}
}
