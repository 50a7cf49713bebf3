package ui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeLine(m *askModel, line string) (tea.Model, tea.Cmd) {
	m.input.SetValue(line)
	return m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

// runCmd executes a command and feeds every resulting answer back into the model.
func runCmd(t *testing.T, m *askModel, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if am, ok := c().(answerMsg); ok {
				m.Update(am)
			}
		}
	case answerMsg:
		m.Update(msg)
	}
}

func TestAskModel_InitialView(t *testing.T) {
	m := newAskModel(context.Background(), &fakeAsker{}, 0.6, true)

	view := m.View()

	assert.Contains(t, view, "schemamatch")
	assert.Contains(t, view, "threshold 0.60")
	assert.Contains(t, view, "q: quit")
}

func TestAskModel_SubmitQuestion(t *testing.T) {
	// Given: a model over a fake engine
	asker := &fakeAsker{}
	m := newAskModel(context.Background(), asker, 0.8, true)

	// When: typing a question and pressing enter
	_, cmd := typeLine(m, "  clients  ")

	// Then: the model is busy until the answer arrives
	assert.True(t, m.busy)
	assert.Contains(t, m.View(), "Matching clients")
	require.NotNil(t, cmd)

	runCmd(t, m, cmd)

	assert.False(t, m.busy)
	assert.Equal(t, []string{"clients"}, asker.questions)
	assert.Equal(t, []float64{0.8}, asker.thresholds)
	require.Len(t, m.history, 1)
	view := m.View()
	assert.Contains(t, view, "> clients")
	assert.Contains(t, view, "Table: public.clients (Score: 1.00)")
}

func TestAskModel_FailedQuestion(t *testing.T) {
	asker := &fakeAsker{fail: map[string]error{"broken": errBoom}}
	m := newAskModel(context.Background(), asker, 0.6, true)

	_, cmd := typeLine(m, "broken")
	runCmd(t, m, cmd)

	require.Len(t, m.history, 1)
	assert.True(t, m.history[0].failed)
	assert.Contains(t, m.View(), "boom")
}

func TestAskModel_HistoryIsBounded(t *testing.T) {
	m := newAskModel(context.Background(), &fakeAsker{}, 0.6, true)

	for _, q := range []string{"a", "b", "c", "d", "e"} {
		_, cmd := typeLine(m, q)
		runCmd(t, m, cmd)
	}

	require.Len(t, m.history, maxHistory)
	assert.Equal(t, "c", m.history[0].question)
	assert.Equal(t, "e", m.history[maxHistory-1].question)
}

func TestAskModel_Quit(t *testing.T) {
	tests := []struct {
		name string
		send func(m *askModel) tea.Cmd
	}{
		{"q line", func(m *askModel) tea.Cmd { _, cmd := typeLine(m, "q"); return cmd }},
		{"ctrl+c", func(m *askModel) tea.Cmd { _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); return cmd }},
		{"esc", func(m *askModel) tea.Cmd { _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc}); return cmd }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asker := &fakeAsker{}
			m := newAskModel(context.Background(), asker, 0.6, true)

			cmd := tt.send(m)

			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
			assert.True(t, m.quitting)
			assert.Empty(t, asker.questions)
			assert.Equal(t, "Bye.\n", m.View())
		})
	}
}

func TestAskModel_IgnoresEnterWhileBusy(t *testing.T) {
	asker := &fakeAsker{}
	m := newAskModel(context.Background(), asker, 0.6, true)

	_, first := typeLine(m, "clients")
	_, second := typeLine(m, "montant")

	assert.NotNil(t, first)
	assert.Nil(t, second)
	assert.Equal(t, "clients", m.pending)
}

func TestAskModel_WindowResize(t *testing.T) {
	m := newAskModel(context.Background(), &fakeAsker{}, 0.6, true)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 116, m.input.Width)
}
