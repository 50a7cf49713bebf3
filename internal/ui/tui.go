package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
	"github.com/Aman-CERP/schemamatch/internal/output"
	"github.com/Aman-CERP/schemamatch/internal/search"
)

// maxHistory is the number of answered questions kept on screen.
const maxHistory = 3

// RunTUI runs the question loop as a bubbletea program.
func RunTUI(ctx context.Context, asker Asker, cfg Config) error {
	noColor := cfg.NoColor || DetectNoColor()
	model := newAskModel(ctx, asker, effectiveThreshold(asker, cfg.Threshold), noColor)

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(cfg.Output)}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}
	if _, err := tea.NewProgram(model, opts...).Run(); err != nil && ctx.Err() == nil {
		return smerrors.InternalError("terminal UI failed", err)
	}
	return nil
}

// exchange is one answered (or failed) question.
type exchange struct {
	question string
	rendered string
	failed   bool
}

// answerMsg carries the result of an Ask back into the update loop.
type answerMsg struct {
	question string
	answer   *search.Answer
	err      error
}

type askModel struct {
	ctx       context.Context
	asker     Asker
	threshold float64
	noColor   bool

	input   textinput.Model
	spinner spinner.Model
	styles  Styles

	history  []exchange
	pending  string
	busy     bool
	quitting bool
	width    int
}

func newAskModel(ctx context.Context, asker Asker, threshold float64, noColor bool) *askModel {
	styles := GetStyles(noColor)

	ti := textinput.New()
	ti.Placeholder = "Which tables hold customer orders?"
	ti.Prompt = "> "
	ti.PromptStyle = styles.Prompt
	ti.CharLimit = 500
	ti.Width = 76
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Success

	return &askModel{
		ctx:       ctx,
		asker:     asker,
		threshold: threshold,
		noColor:   noColor,
		input:     ti,
		spinner:   s,
		styles:    styles,
		width:     80,
	}
}

// Init implements tea.Model.
func (m *askModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 20)
		return m, nil

	case answerMsg:
		m.busy = false
		m.pending = ""
		m.record(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *askModel) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	question := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if IsQuit(question) {
		m.quitting = true
		return m, tea.Quit
	}
	if question == "" {
		return m, nil
	}
	m.busy = true
	m.pending = question
	return m, tea.Batch(m.spinner.Tick, m.ask(question))
}

func (m *askModel) ask(question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.asker.Ask(m.ctx, question, m.threshold)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

func (m *askModel) record(msg answerMsg) {
	ex := exchange{question: msg.question}
	if msg.err != nil {
		ex.failed = true
		ex.rendered = strings.TrimSpace(smerrors.FormatForCLI(msg.err))
	} else {
		var sb strings.Builder
		output.NewWithColor(&sb, !m.noColor).Answer(msg.answer, m.threshold)
		ex.rendered = strings.TrimRight(sb.String(), "\n")
	}
	m.history = append(m.history, ex)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
}

// View implements tea.Model.
func (m *askModel) View() string {
	if m.quitting {
		return "Bye.\n"
	}

	var sections []string
	sections = append(sections, m.styles.Header.Render("schemamatch")+" "+
		m.styles.Label.Render(fmt.Sprintf("threshold %.2f", m.threshold)))

	for _, ex := range m.history {
		sections = append(sections, m.styles.Prompt.Render("> ")+m.styles.Question.Render(ex.question))
		if ex.failed {
			sections = append(sections, m.styles.Error.Render(ex.rendered))
		} else {
			sections = append(sections, ex.rendered)
		}
		sections = append(sections, "")
	}

	if m.busy {
		sections = append(sections, m.spinner.View()+" "+m.styles.Label.Render("Matching "+m.pending))
	} else {
		sections = append(sections, m.input.View())
	}

	sections = append(sections, m.styles.Dim.Render(
		lipgloss.NewStyle().Width(max(m.width-2, 20)).Render("enter: ask • q: quit • esc: quit")))

	return strings.Join(sections, "\n") + "\n"
}
