package ui

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/schemamatch/internal/keywords"
	"github.com/Aman-CERP/schemamatch/internal/match"
	"github.com/Aman-CERP/schemamatch/internal/search"
)

// fakeAsker answers every question with one table match, or fails on demand.
type fakeAsker struct {
	mu         sync.Mutex
	questions  []string
	thresholds []float64
	fail       map[string]error
}

func (f *fakeAsker) Ask(_ context.Context, question string, threshold float64) (*search.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	f.thresholds = append(f.thresholds, threshold)
	if err := f.fail[question]; err != nil {
		return nil, err
	}
	m := &match.Matches{Tables: []match.Result{{Schema: "public", Table: "clients", Score: 1, Query: "clients", Term: "clients"}}}
	return &search.Answer{
		Question: question,
		Analysis: keywords.Analysis{Keywords: []string{"clients"}},
		Matches:  m,
		Hint:     match.Hint(m),
	}, nil
}

func (f *fakeAsker) Threshold() float64 { return 0.6 }

func TestIsQuit(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"q", true},
		{" Q ", true},
		{"quit", true},
		{"exit", true},
		{"", false},
		{"quels clients", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsQuit(tt.line))
		})
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig(nil, &bytes.Buffer{})
	assert.False(t, cfg.ForcePlain)
	assert.False(t, cfg.NoColor)
	assert.Nil(t, cfg.Threshold)

	cfg = NewConfig(nil, &bytes.Buffer{}, WithForcePlain(true), WithNoColor(true), WithThreshold(0.8))
	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	require.NotNil(t, cfg.Threshold)
	assert.Equal(t, 0.8, *cfg.Threshold)

	cfg = NewConfig(nil, &bytes.Buffer{}, WithThreshold(-0.5))
	require.NotNil(t, cfg.Threshold)
	assert.Equal(t, -0.5, *cfg.Threshold, "out-of-range values are kept for the engine to reject")
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTTY(f), "a regular file is not a terminal")
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestDetectCI(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, DetectCI())
}

func TestRun_UsesPlainLoopForBuffers(t *testing.T) {
	// Given: non-terminal input and output
	asker := &fakeAsker{}
	in := bytes.NewBufferString("clients\nq\n")
	out := &bytes.Buffer{}

	// When: running the loop
	err := Run(context.Background(), asker, NewConfig(in, out))

	// Then: the plain loop answered the one question
	require.NoError(t, err)
	assert.Equal(t, []string{"clients"}, asker.questions)
	assert.Contains(t, out.String(), PlainPrompt)
	assert.Equal(t, []float64{0.6}, asker.thresholds, "the engine default is resolved before asking")
}

func TestEffectiveThreshold(t *testing.T) {
	asker := &fakeAsker{}
	zero, high, negative := 0.0, 0.9, -0.5
	assert.Equal(t, 0.6, effectiveThreshold(asker, nil))
	assert.Equal(t, 0.9, effectiveThreshold(asker, &high))
	assert.Equal(t, 0.0, effectiveThreshold(asker, &zero))
	assert.Equal(t, -0.5, effectiveThreshold(asker, &negative))
}

var errBoom = errors.New("boom")
