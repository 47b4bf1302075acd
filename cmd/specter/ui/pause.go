package ui

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"specter/internal/agent"
	"specter/internal/tree"
)

// PauseMenu is the interactive pause handler for agent mode. Without a
// terminal attached it degrades to a non-interactive exit so that a
// SIGINT still stops the loop cleanly.
type PauseMenu struct {
	in     *os.File
	out    *os.File
	styles Styles
}

// NewPauseMenu creates a pause menu bound to the process terminal.
func NewPauseMenu() *PauseMenu {
	return &PauseMenu{in: os.Stdin, out: os.Stdout, styles: DefaultStyles()}
}

// HandlePause runs the pause menu until the operator resumes or exits.
func (p *PauseMenu) HandlePause(ctx context.Context, c *agent.Controller) (agent.PauseDecision, error) {
	if !isTerminal(p.in) || !isTerminal(p.out) {
		fmt.Fprintln(p.out, p.styles.Warning.Render("Paused without an interactive terminal, exiting agent mode"))
		return agent.DecisionExit, nil
	}

	prog := tea.NewProgram(newPauseModel(c, p.styles),
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
		tea.WithAltScreen(),
	)
	final, err := prog.Run()
	if err != nil {
		return agent.DecisionExit, err
	}
	if m, ok := final.(pauseModel); ok && !m.exit {
		return agent.DecisionResume, nil
	}
	return agent.DecisionExit, nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// pauseAction identifies one menu entry.
type pauseAction int

const (
	actionResume pauseAction = iota
	actionViewTree
	actionViewStats
	actionSaveState
	actionAddTask
	actionSetLimit
	actionExit
)

type menuItem struct {
	label  string
	hint   string
	action pauseAction
}

func (i menuItem) Title() string       { return i.label }
func (i menuItem) Description() string { return i.hint }
func (i menuItem) FilterValue() string { return i.label }

func menuItems() []list.Item {
	return []list.Item{
		menuItem{"Resume execution", "continue the autonomous loop", actionResume},
		menuItem{"View current task tree", "full plan with findings", actionViewTree},
		menuItem{"View detailed statistics", "progress and strategic summary", actionViewStats},
		menuItem{"Save state snapshot", "write a resumable snapshot now", actionSaveState},
		menuItem{"Add manual task", "insert an operator task into the plan", actionAddTask},
		menuItem{"Modify iteration limit", "raise or lower the remaining budget", actionSetLimit},
		menuItem{"Exit agent mode", "stop the loop and save state", actionExit},
	}
}

// pauseState tracks which screen of the menu is active.
type pauseState int

const (
	stateMenu pauseState = iota
	stateView
	stateTaskDescription
	stateTaskPhase
	stateTaskPriority
	stateTaskRisk
	stateLimit
)

var riskChoices = []tree.RiskLevel{tree.RiskLow, tree.RiskMedium, tree.RiskHigh}

// taskForm accumulates the manual-task fields across entry screens.
type taskForm struct {
	description string
	phaseIdx    int
	priority    int
	riskIdx     int
}

type pauseModel struct {
	ctrl   *agent.Controller
	styles Styles

	state     pauseState
	menu      list.Model
	viewport  viewport.Model
	input     textinput.Model
	viewTitle string

	form taskForm

	notice    string
	noticeBad bool

	// exit records the operator's verdict for HandlePause.
	exit bool

	width  int
	height int
}

func newPauseModel(c *agent.Controller, styles Styles) pauseModel {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(styles.Theme.Primary).
		BorderLeftForeground(styles.Theme.Primary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(styles.Theme.Accent).
		BorderLeftForeground(styles.Theme.Primary)

	menu := list.New(menuItems(), delegate, 64, 20)
	menu.Title = "Assessment paused"
	menu.Styles.Title = styles.Header
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)

	vp := viewport.New(80, 20)

	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 60
	ti.Prompt = "> "
	ti.PromptStyle = styles.Prompt

	return pauseModel{
		ctrl:     c,
		styles:   styles,
		state:    stateMenu,
		menu:     menu,
		viewport: vp,
		input:    ti,
		form:     taskForm{priority: 5, riskIdx: 1},
	}
}

func (m pauseModel) Init() tea.Cmd {
	return nil
}

func (m pauseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.menu.SetSize(msg.Width-4, msg.Height-4)
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 6
		m.input.Width = msg.Width - 8
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateMenu:
			return m.updateMenu(msg)
		case stateView:
			return m.updateView(msg)
		case stateTaskDescription, stateTaskPriority, stateLimit:
			return m.updateTextEntry(msg)
		case stateTaskPhase:
			return m.updatePhasePick(msg)
		case stateTaskRisk:
			return m.updateRiskPick(msg)
		}
	}

	var cmd tea.Cmd
	switch m.state {
	case stateMenu:
		m.menu, cmd = m.menu.Update(msg)
	case stateView:
		m.viewport, cmd = m.viewport.Update(msg)
	default:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m pauseModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.exit = true
		return m, tea.Quit
	case "enter":
		item, ok := m.menu.SelectedItem().(menuItem)
		if !ok {
			return m, nil
		}
		return m.dispatch(item.action)
	}
	var cmd tea.Cmd
	m.menu, cmd = m.menu.Update(msg)
	return m, cmd
}

func (m pauseModel) dispatch(action pauseAction) (tea.Model, tea.Cmd) {
	m.notice = ""
	m.noticeBad = false

	switch action {
	case actionResume:
		return m, tea.Quit

	case actionViewTree:
		m.viewTitle = "Current task tree"
		m.viewport.SetContent(m.ctrl.RenderTree())
		m.viewport.GotoTop()
		m.state = stateView

	case actionViewStats:
		m.viewTitle = "Assessment statistics"
		m.viewport.SetContent(m.statsText())
		m.viewport.GotoTop()
		m.state = stateView

	case actionSaveState:
		path, err := m.ctrl.SaveSnapshot()
		if err != nil {
			m.notice = fmt.Sprintf("Snapshot failed: %v", err)
			m.noticeBad = true
		} else {
			m.notice = "State saved to " + path
		}

	case actionAddTask:
		m.form = taskForm{priority: 5, riskIdx: 1}
		m.state = stateTaskDescription
		m.input.Placeholder = "Task description"
		m.input.SetValue("")
		return m, m.input.Focus()

	case actionSetLimit:
		m.state = stateLimit
		m.input.Placeholder = fmt.Sprintf("New limit (current %d, completed %d)", m.ctrl.EffectiveLimit(), m.ctrl.Iteration())
		m.input.SetValue("")
		return m, m.input.Focus()

	case actionExit:
		m.exit = true
		return m, tea.Quit
	}
	return m, nil
}

func (m pauseModel) updateView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.exit = true
		return m, tea.Quit
	case "esc", "q", "enter":
		m.state = stateMenu
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m pauseModel) updateTextEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.exit = true
		return m, tea.Quit
	case "esc":
		m.input.Blur()
		m.state = stateMenu
		return m, nil
	case "enter":
		return m.submitEntry()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m pauseModel) submitEntry() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())

	switch m.state {
	case stateTaskDescription:
		if value == "" {
			m.notice = "Task description required"
			m.noticeBad = true
			return m, nil
		}
		m.form.description = value
		m.input.Blur()
		m.state = stateTaskPhase

	case stateTaskPriority:
		m.form.priority = 5
		if n, err := strconv.Atoi(value); err == nil && n >= 1 && n <= 10 {
			m.form.priority = n
		}
		m.input.Blur()
		m.state = stateTaskRisk

	case stateLimit:
		m.input.Blur()
		m.state = stateMenu
		if value == "" {
			m.notice = "No change made"
			return m, nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			m.notice = "Invalid number: " + value
			m.noticeBad = true
			return m, nil
		}
		applied := m.ctrl.SetIterationLimit(n)
		m.notice = fmt.Sprintf("Iteration limit set to %d", applied)
	}
	return m, nil
}

func (m pauseModel) updatePhasePick(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c":
		m.exit = true
		return m, tea.Quit
	case "esc":
		m.state = stateMenu
	case "up", "k":
		if m.form.phaseIdx > 0 {
			m.form.phaseIdx--
		}
	case "down", "j":
		if m.form.phaseIdx < len(agent.ManualPhases)-1 {
			m.form.phaseIdx++
		}
	case "1", "2", "3", "4":
		m.form.phaseIdx = int(key[0] - '1')
	case "enter":
		m.state = stateTaskPriority
		m.input.Placeholder = "Priority 1-10 (default 5)"
		m.input.SetValue("")
		return m, m.input.Focus()
	}
	return m, nil
}

func (m pauseModel) updateRiskPick(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c":
		m.exit = true
		return m, tea.Quit
	case "esc":
		m.state = stateMenu
	case "up", "k":
		if m.form.riskIdx > 0 {
			m.form.riskIdx--
		}
	case "down", "j":
		if m.form.riskIdx < len(riskChoices)-1 {
			m.form.riskIdx++
		}
	case "1", "2", "3":
		m.form.riskIdx = int(key[0] - '1')
	case "enter":
		phase := agent.ManualPhases[m.form.phaseIdx]
		_, err := m.ctrl.AddManualTask(m.form.description, phase, m.form.priority, riskChoices[m.form.riskIdx])
		m.state = stateMenu
		if err != nil {
			m.notice = fmt.Sprintf("Could not add task: %v", err)
			m.noticeBad = true
		} else {
			m.notice = fmt.Sprintf("Manual task added under %s", phase)
		}
	}
	return m, nil
}

func (m pauseModel) View() string {
	var body string
	switch m.state {
	case stateMenu:
		body = m.menu.View()
	case stateView:
		title := m.styles.Header.Render(" " + m.viewTitle + " ")
		help := m.styles.Footer.Render("↑/↓ scroll · esc back")
		body = title + "\n" + m.viewport.View() + "\n" + help
	case stateTaskDescription:
		body = m.formView("Add manual task", m.input.View())
	case stateTaskPhase:
		body = m.formView("Select phase", m.choicesView(agent.ManualPhases, m.form.phaseIdx))
	case stateTaskPriority:
		body = m.formView("Task priority", m.input.View())
	case stateTaskRisk:
		labels := make([]string, len(riskChoices))
		for i, r := range riskChoices {
			labels[i] = string(r)
		}
		body = m.formView("Risk level", m.choicesView(labels, m.form.riskIdx))
	case stateLimit:
		body = m.formView("Modify iteration limit", m.input.View())
	}

	if m.notice != "" {
		style := m.styles.Success
		if m.noticeBad {
			style = m.styles.Error
		}
		body += "\n" + style.Render(m.notice)
	}
	return body + "\n"
}

func (m pauseModel) formView(title, inner string) string {
	head := m.styles.Title.Render(title)
	help := m.styles.Footer.Render("enter confirm · esc cancel")
	return head + "\n\n" + inner + "\n\n" + help
}

func (m pauseModel) choicesView(options []string, selected int) string {
	var b strings.Builder
	for i, opt := range options {
		cursor := "  "
		style := m.styles.Body
		if i == selected {
			cursor = m.styles.Prompt.Render("> ")
			style = m.styles.Bold
		}
		fmt.Fprintf(&b, "%s%d. %s\n", cursor, i+1, style.Render(opt))
	}
	return b.String()
}

// statsText mirrors the progress block shown on pause plus the
// adapter's strategic summary.
func (m pauseModel) statsText() string {
	stats := m.ctrl.Statistics()
	elapsed := m.ctrl.Elapsed().Round(time.Second)
	iter := m.ctrl.Iteration()

	var b strings.Builder
	fmt.Fprintf(&b, "Iterations: %d/%d\n", iter, m.ctrl.EffectiveLimit())
	fmt.Fprintf(&b, "Elapsed: %s\n", elapsed)
	if iter > 0 && elapsed > 0 {
		fmt.Fprintf(&b, "Average per iteration: %.1fs\n", elapsed.Seconds()/float64(iter))
	}
	fmt.Fprintf(&b, "\nNodes: %d total, %d leaves, %d candidates\n",
		stats.TotalNodes, stats.LeafNodes, stats.CandidateTasks)
	for _, status := range []tree.NodeStatus{
		tree.StatusCompleted, tree.StatusInProgress, tree.StatusPending,
		tree.StatusFailed, tree.StatusBlocked, tree.StatusVulnerable,
		tree.StatusNotVulnerable,
	} {
		if n := stats.StatusCounts[status]; n > 0 {
			fmt.Fprintf(&b, "  %s %s: %d\n", tree.StatusSymbol(status), status, n)
		}
	}
	b.WriteString("\n")
	b.WriteString(m.ctrl.StrategicSummary())
	return b.String()
}
