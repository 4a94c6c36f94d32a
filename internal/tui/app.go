// Package tui is the view composer: it assembles the sidebar, the section
// set for the current selection, and the status footer, and routes every
// user action through the selection controller, registry, and upload
// dispatcher.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fyrsmithlabs/dbstudio/internal/api"
	"github.com/fyrsmithlabs/dbstudio/internal/logging"
	"github.com/fyrsmithlabs/dbstudio/internal/notify"
	"github.com/fyrsmithlabs/dbstudio/internal/registry"
	"github.com/fyrsmithlabs/dbstudio/internal/selection"
	"github.com/fyrsmithlabs/dbstudio/internal/uploader"
)

// newProjectLabel is the sidebar row for the sentinel selection. It is
// never a registry key.
const newProjectLabel = "＋ New Project"

const fetchHistorySize = 30

// mode selects which pane owns the keyboard.
type mode int

const (
	modeBrowse mode = iota
	modeForm
	modeUpload
	modeConfirmDelete
)

// Backend is the slice of api.Client the composer drives directly.
// Detail fetches go through the registry instead.
type Backend interface {
	ListDatabaseNames(ctx context.Context) ([]string, error)
	DeleteDatabase(ctx context.Context, name string) error
	SubmitCredentials(ctx context.Context, creds api.Credentials) (api.CreateResult, error)
}

// App is the top-level bubbletea model.
type App struct {
	client Backend
	reg    *registry.Registry
	sel    *selection.Controller
	disp   *uploader.Dispatcher
	notes  *notify.Center
	log    *logging.Logger

	// fetchQueue receives names the selection controller wants warmed;
	// drained into tea.Cmds after every controller call.
	fetchQueue chan string

	width, height int
	mode          mode
	cursor        int
	names         []string

	form   credentialForm
	upload uploadInput

	spin           spinner.Model
	fetchDurations []float64 // milliseconds, newest last
	lastNote       notify.Notification
	sessionExpired bool
	listErr        error
	quitting       bool
}

// NewApp wires the composer. The selection controller is created here so
// its fetch trigger lands in the app's queue.
func NewApp(client Backend, reg *registry.Registry, disp *uploader.Dispatcher, notes *notify.Center, logger *logging.Logger) *App {
	if logger == nil {
		logger = logging.Nop()
	}
	a := &App{
		client:     client,
		reg:        reg,
		disp:       disp,
		notes:      notes,
		log:        logger.Named("tui"),
		fetchQueue: make(chan string, 8),
		form:       newCredentialForm(),
		upload:     newUploadInput(),
	}
	a.sel = selection.NewController(reg, func(name string) {
		select {
		case a.fetchQueue <- name:
		default:
		}
	}, logger)
	disp.BindSelection(a.sel)

	a.spin = spinner.New()
	a.spin.Spinner = spinner.Dot
	return a
}

// Selection exposes the controller for the diagnostics snapshot.
func (a *App) Selection() selection.Selection {
	return a.sel.Current()
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadNames, a.waitForNote, a.waitForUpload, a.spin.Tick)
}

// Commands

// loadNames performs the bulk listing call.
func (a *App) loadNames() tea.Msg {
	names, err := a.client.ListDatabaseNames(context.Background())
	return namesLoadedMsg{Names: names, Err: err}
}

// fetchDetails runs one lazy detail fetch through the registry, which
// deduplicates concurrent fetches per identifier.
func (a *App) fetchDetails(name string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		_, err := a.reg.FetchDetails(context.Background(), name)
		if errors.Is(err, registry.ErrFetchInFlight) {
			// Someone else is already loading it; nothing to report.
			return nil
		}
		return detailsLoadedMsg{Name: name, Took: time.Since(start), Err: err}
	}
}

// deleteRemote confirms the optimistic local delete with the backend.
func (a *App) deleteRemote(name string) tea.Cmd {
	return func() tea.Msg {
		err := a.client.DeleteDatabase(context.Background(), name)
		return deleteFinishedMsg{Name: name, Err: err}
	}
}

// submitCredentials sends the connection form.
func (a *App) submitCredentials(creds api.Credentials) tea.Cmd {
	return func() tea.Msg {
		result, err := a.client.SubmitCredentials(context.Background(), creds)
		return credentialsSubmittedMsg{Result: result, Err: err}
	}
}

// waitForNote delivers the next notification into the update loop.
func (a *App) waitForNote() tea.Msg {
	return noteMsg(<-a.notes.C())
}

// waitForUpload delivers the next upload round-trip result.
func (a *App) waitForUpload() tea.Msg {
	return uploadFinishedMsg{Result: <-a.disp.Done()}
}

// drainFetchQueue converts queued fetch triggers into commands.
func (a *App) drainFetchQueue() tea.Cmd {
	var cmds []tea.Cmd
	for {
		select {
		case name := <-a.fetchQueue:
			cmds = append(cmds, a.fetchDetails(name))
		default:
			if len(cmds) == 0 {
				return nil
			}
			return tea.Batch(cmds...)
		}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)

	case namesLoadedMsg:
		if msg.Err != nil {
			a.listErr = msg.Err
			a.noteRemoteFailure(msg.Err, "Could not load your databases")
			return a, nil
		}
		a.listErr = nil
		a.sel.Initialize(msg.Names)
		a.refreshNames()
		a.syncCursor()
		return a, a.drainFetchQueue()

	case detailsLoadedMsg:
		if msg.Err != nil {
			a.noteRemoteFailure(msg.Err, "Could not load details for "+msg.Name)
			return a, nil
		}
		a.pushFetchDuration(float64(msg.Took.Milliseconds()))
		a.refreshNames()
		return a, nil

	case credentialsSubmittedMsg:
		if msg.Err != nil {
			a.noteRemoteFailure(msg.Err, "Could not save the connection")
			return a, nil
		}
		a.reg.Upsert(msg.Result.Name, msg.Result.Metadata)
		a.sel.Created(msg.Result.Name)
		a.notes.Successf("Database " + msg.Result.Name + " connected")
		a.mode = modeBrowse
		a.form.reset()
		a.refreshNames()
		a.syncCursor()
		return a, nil

	case deleteFinishedMsg:
		if msg.Err != nil {
			// Optimistic delete: the entry is already gone locally and
			// stays gone; the failure is only reported.
			a.noteRemoteFailure(msg.Err, "Could not delete "+msg.Name+" on the server")
		}
		return a, nil

	case uploadFinishedMsg:
		if msg.Result.Err == nil {
			a.mode = modeBrowse
			a.upload.reset()
			a.refreshNames()
			a.syncCursor()
		}
		return a, a.waitForUpload

	case noteMsg:
		a.lastNote = notify.Notification(msg)
		return a, a.waitForNote
	}

	return a, nil
}

// handleKey routes keyboard input by mode.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		a.quitting = true
		a.disp.Close()
		return a, tea.Quit
	}

	switch a.mode {
	case modeForm:
		return a.handleFormKey(msg)
	case modeUpload:
		return a.handleUploadKey(msg)
	case modeConfirmDelete:
		return a.handleConfirmKey(msg)
	default:
		return a.handleBrowseKey(msg)
	}
}

func (a *App) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		a.quitting = true
		a.disp.Close()
		return a, tea.Quit

	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, a.applyCursor()

	case "down", "j":
		if a.cursor < len(a.names) {
			a.cursor++
		}
		return a, a.applyCursor()

	case "enter":
		return a, a.applyCursor()

	case "n":
		a.cursor = len(a.names)
		a.sel.SelectNewProject()
		return a, nil

	case "r":
		return a, a.loadNames

	case "e":
		if cur := a.sel.Current(); cur.Kind == selection.Existing {
			if meta, ok := a.reg.Get(cur.Name); ok && meta.DetailLevel == registry.Full {
				a.form.prefill(cur.Name)
				a.mode = modeForm
			}
		} else {
			a.form.reset()
			a.mode = modeForm
		}
		return a, nil

	case "c":
		a.form.reset()
		a.mode = modeForm
		return a, nil

	case "u":
		// The upload trigger is disabled while the worker is busy.
		if !a.disp.Busy() {
			a.mode = modeUpload
			return a, a.upload.focus()
		}
		return a, nil

	case "d":
		if a.sel.Current().Kind == selection.Existing {
			a.mode = modeConfirmDelete
		}
		return a, nil
	}
	return a, nil
}

// applyCursor translates the sidebar cursor into a selection change.
func (a *App) applyCursor() tea.Cmd {
	if a.cursor >= len(a.names) {
		a.sel.SelectNewProject()
		return nil
	}
	a.sel.Select(a.names[a.cursor])
	return a.drainFetchQueue()
}

func (a *App) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		a.mode = modeBrowse
		cur := a.sel.Current()
		if cur.Kind != selection.Existing {
			return a, nil
		}
		name := cur.Name
		// Optimistic removal: local state first, remote confirmation
		// after; a remote failure does not restore the entry.
		a.reg.Remove(name)
		a.sel.Removed(name)
		a.refreshNames()
		a.syncCursor()
		a.notes.Publish(notify.Info, "Deleted "+name)
		return a, a.deleteRemote(name)

	case "n", "esc":
		a.mode = modeBrowse
	}
	return a, nil
}

// noteRemoteFailure publishes a user-facing error, upgrading to a session
// notice when the backend rejected the token.
func (a *App) noteRemoteFailure(err error, fallback string) {
	var remoteErr *api.RemoteError
	if errors.As(err, &remoteErr) {
		if remoteErr.SessionExpired() {
			a.sessionExpired = true
			a.notes.Errorf("Your session has expired. Please log in again.")
			return
		}
		a.notes.Errorf(fallback + ": " + remoteErr.Message)
		return
	}
	a.notes.Errorf(fallback)
}

// refreshNames re-reads the sidebar rows from the registry.
func (a *App) refreshNames() {
	a.names = a.reg.Names()
}

// syncCursor points the cursor at the current selection.
func (a *App) syncCursor() {
	cur := a.sel.Current()
	if cur.Kind != selection.Existing {
		a.cursor = len(a.names)
		return
	}
	for i, name := range a.names {
		if name == cur.Name {
			a.cursor = i
			return
		}
	}
	a.cursor = len(a.names)
}

func (a *App) pushFetchDuration(ms float64) {
	a.fetchDurations = append(a.fetchDurations, ms)
	if len(a.fetchDurations) > fetchHistorySize {
		a.fetchDurations = a.fetchDurations[1:]
	}
}
