package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"research-tracker/internal/board"
	"research-tracker/internal/model"
	"research-tracker/internal/tracker"
)

type dashboardMode int

const (
	dashboardModeBrowse dashboardMode = iota
	dashboardModeSearch
)

type researchReader interface {
	Snapshot() model.Snapshot
}

type researchSubmitter interface {
	Submit(raw string) (model.Job, error)
}

type dashboardModel struct {
	reader    researchReader
	submitter researchSubmitter
	sched     *teaScheduler
	interval  time.Duration
	maxStep   int

	snap   model.Snapshot
	cursor int
	width  int
	height int
	mode   dashboardMode
	search textinput.Model
	bar    progress.Model

	statusMessage string
}

var (
	dashTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dashMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dashErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	dashOKStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	dashRunningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	dashPanelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	dashSelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func runDashboard(args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	rt := addRuntimeFlags(fs)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("dashboard requires an interactive terminal (TTY)")
	}

	// Log output would corrupt the alt screen; only log.file receives records.
	env, err := loadRuntime(rt, nil)
	if err != nil {
		return err
	}
	defer env.closeLog()

	sched := newTeaScheduler()
	defer sched.Close()
	stack, err := newResearchStack(env.cfg, sched, env.logger)
	if err != nil {
		return err
	}

	m := newDashboardModel(stack.store, stack.intake, sched, env.cfg.TickInterval, env.cfg.MaxStep)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("dashboard requires an interactive terminal (TTY)")
		}
		return err
	}
	return nil
}

func newDashboardModel(reader researchReader, submitter researchSubmitter, sched *teaScheduler, interval time.Duration, maxStep int) dashboardModel {
	search := textinput.New()
	search.Prompt = "> "
	search.Placeholder = "Company name, e.g. Apple Inc."
	search.CharLimit = 200
	search.Width = 40

	m := dashboardModel{
		reader:    reader,
		submitter: submitter,
		sched:     sched,
		interval:  interval,
		maxStep:   maxStep,
		mode:      dashboardModeBrowse,
		search:    search,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(16)),
	}
	m.refresh()
	return m
}

func (m dashboardModel) Init() tea.Cmd {
	if m.sched == nil {
		return nil
	}
	return m.sched.waitCmd()
}

func (m *dashboardModel) refresh() {
	m.snap = m.reader.Snapshot()
	total := len(m.snap.Jobs)
	if total == 0 || m.cursor < 0 {
		m.cursor = 0
	} else if m.cursor > total-1 {
		m.cursor = total - 1
	}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.search.Width = clampInt(m.width-16, 20, 80)
		return m, nil
	case researchTickMsg:
		if msg.run != nil {
			msg.run()
		}
		m.refresh()
		if m.sched == nil {
			return m, nil
		}
		return m, m.sched.waitCmd()
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.mode == dashboardModeSearch {
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch m.mode {
	case dashboardModeSearch:
		return m.updateSearch(keyMsg)
	default:
		return m.updateBrowse(keyMsg)
	}
}

func (m dashboardModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.snap.Jobs)-1 {
			m.cursor++
		}
		return m, nil
	case "home", "g":
		m.cursor = 0
		return m, nil
	case "n", "/":
		m.mode = dashboardModeSearch
		m.search.Reset()
		m.statusMessage = ""
		return m, m.search.Focus()
	case "r":
		m.refresh()
		return m, nil
	}
	return m, nil
}

func (m dashboardModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.closeSearch()
		m.statusMessage = "search cancelled"
		return m, nil
	case "enter":
		job, err := m.submitter.Submit(m.search.Value())
		if errors.Is(err, tracker.ErrBlankQuery) {
			return m, nil
		}
		if err != nil {
			m.statusMessage = "error: " + err.Error()
			return m, nil
		}
		m.closeSearch()
		m.refresh()
		m.cursor = 0
		m.statusMessage = "research started: " + job.Name
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *dashboardModel) closeSearch() {
	m.mode = dashboardModeBrowse
	m.search.Reset()
	m.search.Blur()
}

func (m dashboardModel) View() string {
	if m.width <= 0 {
		m.width = 100
	}
	if m.height <= 0 {
		m.height = 30
	}
	if m.mode == dashboardModeSearch {
		return m.viewSearch()
	}
	return m.viewBrowse()
}

func (m dashboardModel) viewBrowse() string {
	header := dashTitleStyle.Render("research-tracker dashboard") + "\n" +
		dashMutedStyle.Render("up/down: move | n or /: new research | r: refresh | q: quit") + "\n" +
		fmt.Sprintf("jobs %d | running %d | done %d", m.snap.Total, m.snap.InProgress, m.snap.Completed)

	if m.width < 90 {
		list := m.renderHistoryPanel(m.width)
		details := m.renderDetailsPanel(m.width)
		body := lipgloss.JoinVertical(lipgloss.Left, list, details)
		return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusLine(m.width))
	}

	leftW := clampInt(m.width*3/5, 50, 80)
	rightW := m.width - leftW - 1
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderHistoryPanel(leftW), m.renderDetailsPanel(rightW))
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusLine(m.width))
}

func (m dashboardModel) renderHistoryPanel(width int) string {
	lines := []string{dashTitleStyle.Render("History")}
	if len(m.snap.Jobs) == 0 {
		lines = append(lines, dashMutedStyle.Render("No research yet."))
		lines = append(lines, dashMutedStyle.Render("Press n or / to research a company."))
		return dashPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
	}

	maxRows := clampInt(m.height-10, 4, 24)
	start, end := listWindow(len(m.snap.Jobs), m.cursor, maxRows)
	nameW := maxInt(width-m.bar.Width-16, 10)
	if start > 0 {
		lines = append(lines, dashMutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		job := m.snap.Jobs[i]
		name := fmt.Sprintf("%-*s", nameW, board.Truncate(job.Name, nameW))
		if i == m.cursor {
			name = dashSelStyle.Render(name)
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %3d%%",
			statusIcon(job.Status), name, m.bar.ViewAs(float64(job.Progress)/100), job.Progress))
	}
	if end < len(m.snap.Jobs) {
		lines = append(lines, dashMutedStyle.Render("..."))
	}
	return dashPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m dashboardModel) renderDetailsPanel(width int) string {
	lines := []string{dashTitleStyle.Render("Details"), ""}
	if len(m.snap.Jobs) == 0 {
		lines = append(lines, "Start a research request to see its progress here.")
	} else {
		job := m.snap.Jobs[m.cursor]
		lines = append(lines, kv("company", job.Name))
		lines = append(lines, kv("id", job.ID))
		lines = append(lines, kv("status", board.StatusLabel(job.Status)))
		lines = append(lines, kv("progress", fmt.Sprintf("%d%%", job.Progress)))
		lines = append(lines, kv("started", board.FormatDate(job.StartedAt)))
		if job.IsCompleted() {
			if job.CompletedAt != nil {
				lines = append(lines, kv("completed", board.FormatDate(*job.CompletedAt)))
			}
			if job.Confidence != nil {
				lines = append(lines, kv("confidence", fmt.Sprintf("%d%%", *job.Confidence)))
			}
		} else {
			eta := "calculating"
			if d, ok := board.EstimateRemaining(job.Progress, m.interval, m.maxStep); ok {
				eta = board.FormatRemaining(d)
			}
			lines = append(lines, kv("remaining", eta))
		}
	}
	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], maxInt(width-6, 12))
	}
	return dashPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m dashboardModel) renderStatusLine(width int) string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		msg = fmt.Sprintf("Tip: research advances every %s; completed jobs report a confidence score.", m.interval)
	}
	style := dashMutedStyle
	if strings.HasPrefix(strings.ToLower(msg), "error:") {
		style = dashErrorStyle
	} else if strings.HasPrefix(strings.ToLower(msg), "research started") {
		style = dashOKStyle
	}
	return style.Width(width).Render(board.Truncate(msg, maxInt(width-2, 10)))
}

func (m dashboardModel) viewSearch() string {
	status := ""
	if strings.HasPrefix(strings.ToLower(m.statusMessage), "error:") {
		status = "\n" + dashErrorStyle.Render(m.statusMessage)
	}
	text := dashTitleStyle.Render("New Research") + "\n\n" +
		"Enter a company name to start researching.\n\n" +
		m.search.View() + "\n\n" +
		dashMutedStyle.Render("enter: start research | esc: cancel") + status
	boxW := clampInt(m.width-8, 36, 80)
	panel := dashPanelStyle.Width(boxW).Render(text)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

func statusIcon(status string) string {
	if status == model.StatusCompleted {
		return dashOKStyle.Render("✓")
	}
	return dashRunningStyle.Render("●")
}
