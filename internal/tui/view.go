package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/lipgloss"
	"github.com/fyrsmithlabs/dbstudio/internal/notify"
	"github.com/fyrsmithlabs/dbstudio/internal/selection"
	"github.com/fyrsmithlabs/dbstudio/internal/viewstate"
)

const (
	sparklineWidth  = 20
	sparklineHeight = 1
	maxTablesShown  = 8
	maxFilesShown   = 6
)

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	header := headerStyle.Render(" dbstudio ─ manage databases ")

	var body string
	if a.listErr != nil && len(a.names) == 0 {
		body = a.renderListError()
	} else {
		sidebar := sidebarStyle.Render(a.renderSidebar())
		detail := detailStyle.Render(a.renderDetail())
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", detail)
	}

	return header + "\n" + body + "\n" + a.renderFooter()
}

func (a *App) renderListError() string {
	var b strings.Builder
	b.WriteString(errStyle.Render("⚠ Could not load your databases") + "\n\n")
	b.WriteString(dimStyle.Render("Error: ") + a.listErr.Error() + "\n\n")
	b.WriteString(dimStyle.Render("Press ") + footerKeyStyle.Render("r") + dimStyle.Render(" to retry."))
	return detailStyle.Render(b.String())
}

// renderSidebar lists the databases plus the new-project row.
func (a *App) renderSidebar() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Databases") + "\n")

	if len(a.names) == 0 {
		b.WriteString(dimStyle.Render("(none yet)") + "\n")
	}
	for i, name := range a.names {
		row := name
		if a.reg.InFlight(name) {
			row += " " + a.spin.View()
		}
		if i == a.cursor {
			b.WriteString(selectedStyle.Render("▸ "+row) + "\n")
		} else {
			b.WriteString("  " + row + "\n")
		}
	}

	if a.cursor == len(a.names) {
		b.WriteString(selectedStyle.Render("▸ "+newProjectLabel) + "\n")
	} else {
		b.WriteString("  " + dimStyle.Render(newProjectLabel) + "\n")
	}
	return b.String()
}

// renderDetail picks the section set for the current selection.
func (a *App) renderDetail() string {
	if a.mode == modeForm {
		return a.renderForm()
	}
	if a.mode == modeUpload {
		return a.renderUpload()
	}

	cur := a.sel.Current()
	switch cur.Kind {
	case selection.Existing:
		return a.renderDatabase(cur)
	default:
		return a.renderNewProject()
	}
}

// renderDatabase shows the metadata summary, tables, and files sections.
func (a *App) renderDatabase(cur selection.Selection) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("┃ "+cur.Name) + "\n")

	snap := viewstate.Compute(a.reg, cur)
	if a.mode == modeConfirmDelete {
		b.WriteString("\n" + warnStyle.Render("Delete "+cur.Name+"? This cannot be undone.") + "\n")
		b.WriteString(dimStyle.Render("[y] delete   [n] keep") + "\n")
		return b.String()
	}

	if snap.AwaitingDetails {
		b.WriteString("\n" + a.spin.View() + " " + dimStyle.Render("Loading details…") + "\n")
		return b.String()
	}
	if !snap.HasFullDetails {
		b.WriteString("\n" + dimStyle.Render("Details not loaded.") + "\n")
		return b.String()
	}

	meta, _ := a.reg.Get(cur.Name)

	b.WriteString(labelStyle.Render("Connection: ") + connBadge(snap.CanConnect) + "\n")
	b.WriteString(labelStyle.Render("Indexed:    ") + yesNoBadge(snap.TablesIndexed,
		fmt.Sprintf("%d tables", len(meta.Tables)), "no tables indexed") + "\n")
	b.WriteString(labelStyle.Render("Described:  ") + yesNoBadge(snap.HasDescription,
		"column descriptions present", "no column descriptions") + "\n")

	if len(meta.Tables) > 0 {
		b.WriteString(sectionStyle.Render("┃ Tables") + "\n")
		for i, table := range meta.Tables {
			if i == maxTablesShown {
				b.WriteString(dimStyle.Render(fmt.Sprintf("  … and %d more", len(meta.Tables)-i)) + "\n")
				break
			}
			row := "  " + table.Name
			if table.RowCount > 0 {
				row += dimStyle.Render(fmt.Sprintf("  (%d rows)", table.RowCount))
			}
			b.WriteString(row + "\n")
		}
	}

	if len(meta.AssociatedFiles) > 0 {
		b.WriteString(sectionStyle.Render("┃ Files") + "\n")
		for i, file := range meta.AssociatedFiles {
			if i == maxFilesShown {
				b.WriteString(dimStyle.Render(fmt.Sprintf("  … and %d more", len(meta.AssociatedFiles)-i)) + "\n")
				break
			}
			b.WriteString("  " + file.Name + "\n")
		}
	}

	return b.String()
}

// renderNewProject shows the creation flow entry points.
func (a *App) renderNewProject() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("┃ New Project") + "\n\n")
	b.WriteString(labelStyle.Render("c") + "  connect an existing database (credentials)\n")
	if a.disp.Busy() {
		b.WriteString(dimStyle.Render("u  upload files (upload in progress…)") + " " + a.spin.View() + "\n")
	} else {
		b.WriteString(labelStyle.Render("u") + "  create a project from uploaded files\n")
	}
	return b.String()
}

// renderForm shows the credential form section.
func (a *App) renderForm() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("┃ Database Connection") + "\n\n")
	names := [fieldCount]string{"Name", "Type", "Host", "Port", "User", "Password", "Database"}
	for i := range a.form.inputs {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-9s", names[i])) + a.form.inputs[i].View() + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("[enter] submit   [tab] next field   [esc] cancel") + "\n")
	return b.String()
}

// renderUpload shows the upload section.
func (a *App) renderUpload() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("┃ Upload Files") + "\n\n")
	b.WriteString(a.upload.input.View() + "\n")
	b.WriteString("\n" + dimStyle.Render("Space-separated paths. [enter] upload   [esc] cancel") + "\n")
	return b.String()
}

// renderFooter shows session/busy state, the fetch sparkline, the last
// notification, and key hints.
func (a *App) renderFooter() string {
	var parts []string

	if a.sessionExpired {
		parts = append(parts, errStyle.Render("✗ SESSION EXPIRED"))
	}
	if a.disp.Busy() {
		parts = append(parts, warnStyle.Render("⇡ uploading")+" "+a.spin.View())
	}
	if len(a.fetchDurations) > 0 {
		parts = append(parts, dimStyle.Render("fetches ")+a.renderSparkline())
	}
	if a.lastNote.Text != "" {
		parts = append(parts, noteBadge(a.lastNote))
	}

	keys := footerKeyStyle.Render("[↑↓]") + dimStyle.Render(" select ") +
		footerKeyStyle.Render("[n]") + dimStyle.Render(" new ") +
		footerKeyStyle.Render("[e]") + dimStyle.Render(" edit ") +
		footerKeyStyle.Render("[u]") + dimStyle.Render(" upload ") +
		footerKeyStyle.Render("[d]") + dimStyle.Render(" delete ") +
		footerKeyStyle.Render("[r]") + dimStyle.Render(" reload ") +
		footerKeyStyle.Render("[q]") + dimStyle.Render(" quit")
	parts = append(parts, keys)

	return footerStyle.Render(strings.Join(parts, "   "))
}

func (a *App) renderSparkline() string {
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range a.fetchDurations {
		spark.Push(v)
	}
	spark.Draw()
	return sparklineStyle.Render(spark.View())
}

// connBadge renders the three-valued connectivity flag.
func connBadge(canConnect *bool) string {
	switch {
	case canConnect == nil:
		return dimStyle.Render("? unknown")
	case *canConnect:
		return okStyle.Render("✓ reachable")
	default:
		return errStyle.Render("✗ unreachable")
	}
}

func yesNoBadge(ok bool, yes, no string) string {
	if ok {
		return okStyle.Render("✓ " + yes)
	}
	return warnStyle.Render("○ " + no)
}

func noteBadge(n notify.Notification) string {
	switch n.Level {
	case notify.Error:
		return errStyle.Render("✗ " + n.Text)
	case notify.Success:
		return okStyle.Render("✓ " + n.Text)
	default:
		return dimStyle.Render(n.Text)
	}
}
