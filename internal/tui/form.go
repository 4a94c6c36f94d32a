package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fyrsmithlabs/dbstudio/internal/api"
)

// Credential form field order.
const (
	fieldName = iota
	fieldType
	fieldHost
	fieldPort
	fieldUser
	fieldPassword
	fieldDatabase
	fieldCount
)

// credentialForm is the connection form section.
type credentialForm struct {
	inputs [fieldCount]textinput.Model
	focus  int
}

func newCredentialForm() credentialForm {
	f := credentialForm{}
	labels := [fieldCount]string{
		"database name", "db type (postgres, mysql, ...)", "host", "port",
		"user", "password", "database",
	}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Placeholder = labels[i]
		ti.CharLimit = 256
		f.inputs[i] = ti
	}
	f.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	f.inputs[fieldName].Focus()
	return f
}

func (f *credentialForm) reset() {
	*f = newCredentialForm()
}

// prefill loads the form for editing an existing connection. Only the name
// is carried over; the backend never echoes credentials back.
func (f *credentialForm) prefill(name string) {
	f.reset()
	f.inputs[fieldName].SetValue(name)
	f.inputs[fieldName].Blur()
	f.inputs[fieldType].Focus()
	f.focus = fieldType
}

func (f *credentialForm) credentials() api.Credentials {
	return api.Credentials{
		Name:     strings.TrimSpace(f.inputs[fieldName].Value()),
		Type:     strings.TrimSpace(f.inputs[fieldType].Value()),
		Host:     strings.TrimSpace(f.inputs[fieldHost].Value()),
		Port:     strings.TrimSpace(f.inputs[fieldPort].Value()),
		User:     strings.TrimSpace(f.inputs[fieldUser].Value()),
		Password: f.inputs[fieldPassword].Value(),
		Database: strings.TrimSpace(f.inputs[fieldDatabase].Value()),
	}
}

func (f *credentialForm) setFocus(i int) tea.Cmd {
	f.focus = i
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == i {
			cmd = f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return cmd
}

// handleFormKey owns the keyboard while the credential form is active.
func (a *App) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = modeBrowse
		return a, nil

	case "tab", "down":
		return a, a.form.setFocus((a.form.focus + 1) % fieldCount)

	case "shift+tab", "up":
		return a, a.form.setFocus((a.form.focus + fieldCount - 1) % fieldCount)

	case "enter":
		creds := a.form.credentials()
		if creds.Name == "" {
			a.notes.Errorf("Database name is required")
			return a, nil
		}
		return a, a.submitCredentials(creds)
	}

	var cmd tea.Cmd
	a.form.inputs[a.form.focus], cmd = a.form.inputs[a.form.focus].Update(msg)
	return a, cmd
}

// uploadInput is the file-upload section: paths separated by spaces.
type uploadInput struct {
	input textinput.Model
}

func newUploadInput() uploadInput {
	ti := textinput.New()
	ti.Placeholder = "/path/to/data.csv /path/to/more.xlsx"
	ti.CharLimit = 1024
	return uploadInput{input: ti}
}

func (u *uploadInput) reset() {
	*u = newUploadInput()
}

func (u *uploadInput) focus() tea.Cmd {
	return u.input.Focus()
}

func (u *uploadInput) paths() []string {
	var out []string
	for _, p := range strings.Fields(u.input.Value()) {
		out = append(out, p)
	}
	return out
}

// handleUploadKey owns the keyboard while the upload section is active.
func (a *App) handleUploadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = modeBrowse
		return a, nil

	case "enter":
		paths := a.upload.paths()
		if len(paths) == 0 {
			a.notes.Errorf("Add at least one file path")
			return a, nil
		}
		if err := a.disp.Dispatch(paths); err != nil {
			a.notes.Errorf("Upload not started: " + err.Error())
			return a, nil
		}
		// Stay in browse while the worker runs; the trigger is
		// disabled until the round-trip completes.
		a.mode = modeBrowse
		return a, nil
	}

	var cmd tea.Cmd
	a.upload.input, cmd = a.upload.input.Update(msg)
	return a, cmd
}
