package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matzehuels/overview/pkg/metric"
	"github.com/matzehuels/overview/pkg/overview"
	"github.com/matzehuels/overview/pkg/scan"
	"github.com/matzehuels/overview/pkg/tree"
)

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Scan a folder and follow its changes in a live dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), args[0], top)
		},
	}

	cmd.Flags().IntVar(&top, "top", 8, "number of largest folders to list")

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, dir string, top int) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	ov, err := c.newOverview(cfg)
	if err != nil {
		return err
	}
	t, err := ov.Open(dir)
	if err != nil {
		return err
	}

	// The dashboard owns the terminal; keep log lines out of it.
	c.SetLogLevel(LogWarn)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tea.Msg, 4)
	go func() {
		stats, err := ov.Scan(ctx, t)
		events <- scanDoneMsg{stats: stats, err: err}
		if err != nil {
			return
		}
		if err := ov.Watch(ctx, t); err != nil && ctx.Err() == nil {
			events <- watchErrMsg{err: err}
		}
	}()

	m := newWatchModel(ov, t, events, top)
	_, err = tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// =============================================================================
// Dashboard Model
// =============================================================================

type frameMsg time.Time

type scanDoneMsg struct {
	stats scan.Stats
	err   error
}

type watchErrMsg struct{ err error }

// watchModel drives the overview from bubbletea's update loop: every frame
// drains queued scanner messages and ticks the layout.
type watchModel struct {
	ov     *overview.Overview
	tree   *tree.Tree
	events <-chan tea.Msg
	top    int

	spin      spinner.Model
	scanning  bool
	stats     scan.Stats
	err       error
	lastFrame time.Time
	lastDrain time.Time
	frames    int
}

func newWatchModel(ov *overview.Overview, t *tree.Tree, events <-chan tea.Msg, top int) *watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleIconSpinner
	return &watchModel{
		ov:       ov,
		tree:     t,
		events:   events,
		top:      top,
		spin:     sp,
		scanning: true,
	}
}

func (m *watchModel) frameCmd() tea.Cmd {
	return tea.Tick(time.Duration(m.ov.Config().Layout.Frame), func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.frameCmd(), waitForEvent(m.events))
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case frameMsg:
		m.step(time.Time(msg))
		return m, m.frameCmd()
	case scanDoneMsg:
		m.scanning = false
		m.stats = msg.stats
		m.err = msg.err
		return m, waitForEvent(m.events)
	case watchErrMsg:
		m.err = msg.err
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// step applies queued messages when the drain interval has passed and
// advances the layout by the time since the previous frame.
func (m *watchModel) step(now time.Time) {
	m.ov.Lock()
	defer m.ov.Unlock()

	if now.Sub(m.lastDrain) >= time.Duration(m.ov.Config().Drain.Interval) {
		m.ov.Drain()
		m.lastDrain = now
	}
	delta := time.Duration(m.ov.Config().Layout.Frame)
	if !m.lastFrame.IsZero() {
		delta = now.Sub(m.lastFrame)
	}
	m.ov.Frame(delta)
	m.lastFrame = now
	m.frames++
}

func (m *watchModel) View() string {
	m.ov.Lock()
	defer m.ov.Unlock()

	var b strings.Builder
	root := m.tree.Root()

	b.WriteString(StyleTitle.Render("overview") + " " + StyleValue.Render(m.tree.Path()))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(styleIconError.Render(iconError) + " " + m.err.Error())
	case m.scanning:
		b.WriteString(m.spin.View() + " " + StyleDim.Render("scanning"))
	default:
		b.WriteString(styleIconSuccess.Render(iconSuccess) + " " + StyleDim.Render(
			fmt.Sprintf("watching · scanned in %s", m.stats.Duration.Round(time.Millisecond))))
	}
	b.WriteString("\n\n")

	heat := m.ov.Engine().Heat(m.tree)
	state := "settled"
	if heat > 0 {
		state = fmt.Sprintf("heat %d", heat)
	}
	b.WriteString(statLine(
		humanize.Comma(int64(m.tree.Len()))+" folders",
		humanize.Comma(int64(root.Recursive.Sum(metric.KindQuantity)))+" files",
		humanize.Bytes(uint64(max(root.Recursive.Sum(metric.KindSize), 0))),
		fmt.Sprintf("%d queued", m.ov.Pending()),
		state,
	))
	b.WriteString("\n\n")

	if rows := m.largest(); len(rows) > 0 {
		b.WriteString(table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
			Headers("Folder", "Size", "Files", "Changed").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return lipgloss.NewStyle().Foreground(colorGray).Bold(true).Padding(0, 1)
				}
				if col == 0 {
					return lipgloss.NewStyle().Foreground(colorWhite).Padding(0, 1)
				}
				return lipgloss.NewStyle().Foreground(colorGray).Padding(0, 1)
			}).
			Render())
		b.WriteString("\n")
	}

	b.WriteString("\n" + StyleDim.Render("q quit"))
	return b.String()
}

// largest lists the root's biggest children. Callers must hold the lock.
func (m *watchModel) largest() [][]string {
	root := m.tree.Root()
	children := make([]*tree.Node, 0, len(root.Children))
	for _, id := range root.Children {
		if n, ok := m.tree.Node(id); ok {
			children = append(children, n)
		}
	}
	slices.SortFunc(children, func(a, b *tree.Node) int {
		sa, sb := a.Recursive.Sum(metric.KindSize), b.Recursive.Sum(metric.KindSize)
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(children) > m.top {
		children = children[:m.top]
	}

	rows := make([][]string, 0, len(children))
	for _, n := range children {
		name := n.Name
		if n.IsCollection() {
			name += fmt.Sprintf(" (%d)", n.Collection.Size)
		}
		changed := "—"
		if med := n.Recursive.Median(metric.KindLastModified); med != nil && med.Count > 0 {
			changed = humanize.Time(time.Unix(int64(med.Mean), 0))
		}
		rows = append(rows, []string{
			name,
			humanize.Bytes(uint64(max(n.Recursive.Sum(metric.KindSize), 0))),
			humanize.Comma(int64(n.Recursive.Sum(metric.KindQuantity))),
			changed,
		})
	}
	return rows
}

// statLine joins parts with dim separators.
func statLine(parts ...string) string {
	styled := make([]string, len(parts))
	for i, p := range parts {
		styled[i] = StyleNumber.Render(p)
	}
	return "  " + strings.Join(styled, StyleDim.Render(" · "))
}
