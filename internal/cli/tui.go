package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/telariq/loomgraph/pkg/graph"
	"github.com/telariq/loomgraph/pkg/layout"
	"github.com/telariq/loomgraph/pkg/pipeline"
)

// =============================================================================
// ReplayModel - Interactive replay progress
// =============================================================================

// batchAppliedMsg carries the outcome of applying one batch file.
type batchAppliedMsg struct {
	file string
	res  *pipeline.Result
	err  error
}

// replayRow is one rendered table row of replay history.
type replayRow struct {
	version   int
	file      string
	entities  int
	relations int
	warnings  int
	cached    bool
	elapsed   time.Duration
}

// replayModel is the bubbletea model driving the watch view. Batches are
// applied one at a time as commands so the UI stays responsive between them.
type replayModel struct {
	ctx    context.Context
	runner *pipeline.Runner
	files  []string
	index  int

	snap      graph.Snapshot
	positions layout.Positions

	rows   []replayRow
	height int
	start  time.Time
	err    error
	done   bool
}

// newReplayModel creates the watch model for the given batch files.
func newReplayModel(ctx context.Context, runner *pipeline.Runner, files []string) replayModel {
	return replayModel{
		ctx:    ctx,
		runner: runner,
		files:  files,
		snap:   graph.NewSnapshot(),
		height: 15,
		start:  time.Now(),
	}
}

func (m replayModel) Init() tea.Cmd {
	return m.applyNext()
}

// applyNext returns a command that applies the next pending batch.
func (m replayModel) applyNext() tea.Cmd {
	if m.index >= len(m.files) {
		return nil
	}
	file := m.files[m.index]
	ctx, snap, positions, runner := m.ctx, m.snap, m.positions, m.runner
	return func() tea.Msg {
		batch, err := readBatch(file)
		if err != nil {
			return batchAppliedMsg{file: file, err: err}
		}
		res, err := runner.Apply(ctx, snap, batch, positions)
		return batchAppliedMsg{file: file, res: res, err: err}
	}
}

func (m replayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height - 8
		if m.height < 5 {
			m.height = 5
		}
	case batchAppliedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.done = true
			return m, nil
		}
		m.snap = msg.res.Snapshot
		m.positions = msg.res.Positions
		m.rows = append(m.rows, replayRow{
			version:   msg.res.Snapshot.Version,
			file:      filepath.Base(msg.file),
			entities:  msg.res.Stats.EntityCount,
			relations: msg.res.Stats.RelationCount,
			warnings:  len(msg.res.BuildWarnings) + len(msg.res.MergeWarnings) + len(msg.res.LayoutWarnings),
			cached:    msg.res.CacheInfo.LayoutHit,
			elapsed:   msg.res.Stats.BuildTime + msg.res.Stats.MergeTime + msg.res.Stats.LayoutTime,
		})
		m.index++
		if m.index >= len(m.files) {
			m.done = true
			return m, nil
		}
		return m, m.applyNext()
	}
	return m, nil
}

func (m replayModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Replay"))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("q quit"))
	b.WriteString("\n\n")

	offset := 0
	if len(m.rows) > m.height {
		offset = len(m.rows) - m.height
	}

	rows := [][]string{}
	for _, r := range m.rows[offset:] {
		status := iconFresh
		if r.cached {
			status = iconCached
		}
		warn := "—"
		if r.warnings > 0 {
			warn = fmt.Sprintf("%d", r.warnings)
		}
		rows = append(rows, []string{
			fmt.Sprintf("v%d", r.version),
			r.file,
			fmt.Sprintf("%d", r.entities),
			fmt.Sprintf("%d", r.relations),
			warn,
			status,
			r.elapsed.Round(time.Millisecond).String(),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Ver", "Batch", "Entities", "Relations", "Warn", "Layout", "Time").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 5 {
				if offset+row < len(m.rows) && m.rows[offset+row].cached {
					return styleCached
				}
				return styleComputed
			}
			return StyleValue
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(styleIconError.Render(iconError) + " " + m.err.Error())
	case m.done:
		b.WriteString(StyleSuccess.Render(fmt.Sprintf("%s Replayed %d batches in %s",
			iconSuccess, len(m.rows), time.Since(m.start).Round(time.Millisecond))))
		b.WriteString(StyleDim.Render(fmt.Sprintf("  ·  v%d, %d entities, %d relations",
			m.snap.Version, len(m.snap.Entities), len(m.snap.Relations))))
	default:
		b.WriteString(StyleDim.Render(fmt.Sprintf("applying batch %d/%d ...", m.index+1, len(m.files))))
	}
	b.WriteString("\n")

	return b.String()
}

// replayWatch runs the interactive replay view.
func (c *CLI) replayWatch(cmd *cobra.Command, runner *pipeline.Runner, files []string) error {
	model := newReplayModel(cmd.Context(), runner, files)
	p := tea.NewProgram(model, tea.WithContext(cmd.Context()))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(replayModel); ok && m.err != nil {
		return m.err
	}
	return nil
}
