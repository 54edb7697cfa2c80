// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumenarc/maquette/internal/animation"
	"github.com/lumenarc/maquette/internal/config"
	"github.com/lumenarc/maquette/internal/inventory"
	"github.com/lumenarc/maquette/internal/simulator"
	"github.com/lumenarc/maquette/internal/transport"
	"github.com/lumenarc/maquette/pkg/glint"
)

var watchSequence string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline in simulation and watch the fixture table",
	Long: `Run the full command pipeline against the simulator and display the
virtual fixture table live.

Without an inventory in the configuration a small demo tower is generated.
The ambient sequence from the configuration (or --sequence) provides the
motion. Press q to quit.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSequence, "sequence", "", "Sequence id to run (default: configured ambient)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	simulate = true
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var inv *inventory.MemoryStore
	if cfg.Inventory != nil {
		inv, err = inventory.FromConfig(cfg.Inventory)
		if err != nil {
			return err
		}
	} else {
		inv = demoInventory()
	}

	tx := transport.New(transport.DialSimulated(5*time.Millisecond), transport.Options{
		Simulated: true,
		Logger:    zap.NewNop(),
	})
	addrs, err := inv.Addresses()
	if err != nil {
		return err
	}
	sim := simulator.New(addrs, nil)
	tx.RegisterObserver(sim)
	if err := tx.Start(); err != nil {
		return err
	}
	defer tx.Close()

	engine := animation.New(inv, tx, zap.NewNop())
	defer engine.Stop()

	seq, err := watchPickSequence(cfg)
	if err != nil {
		return err
	}
	engine.Start(seq)

	m := newWatchModel(sim, tx, seq.ID)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// watchPickSequence resolves the requested sequence, defaulting to a breathe
// pattern when the configuration defines none.
func watchPickSequence(cfg *config.Config) (*animation.Sequence, error) {
	id := watchSequence
	if id == "" {
		id = cfg.AmbientSequenceID
	}
	if id != "" {
		if sc := cfg.Sequence(id); sc != nil {
			return animation.FromConfig(sc)
		}
		return nil, fmt.Errorf("sequence %q is not defined", id)
	}
	return &animation.Sequence{
		ID: "demo-breathe", Kind: animation.KindBreathe,
		MinLevel: 10, MaxLevel: 220,
		Duration: 4 * time.Second,
	}, nil
}

// demoInventory generates a five-floor tower with four apartments per floor.
func demoInventory() *inventory.MemoryStore {
	inv := inventory.NewMemoryStore()
	for floor := 1; floor <= 5; floor++ {
		groupID := fmt.Sprintf("a-%d", floor)
		inv.PutGroup(&inventory.FloorGroup{ID: groupID, Tower: "A", Floor: floor})
		for pos := 1; pos <= 4; pos++ {
			addr := glint.Address(floor*100 + pos)
			inv.PutApartment(&inventory.Apartment{
				ID:       fmt.Sprintf("A-%02d-%02d", floor, pos),
				Floor:    floor,
				GroupID:  groupID,
				Position: pos,
				Primary:  addr,
				Lights:   []glint.Address{addr},
			})
		}
	}
	return inv
}

type watchTickMsg time.Time

type watchModel struct {
	sim      *simulator.Simulator
	tx       *transport.Transport
	sequence string
	table    table.Model
	quitting bool
}

var (
	watchTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	watchStatusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	watchSwatchOn    = lipgloss.NewStyle().Bold(true)
)

func newWatchModel(sim *simulator.Simulator, tx *transport.Transport, sequence string) watchModel {
	columns := []table.Column{
		{Title: "Addr", Width: 8},
		{Title: "On", Width: 4},
		{Title: "Level", Width: 6},
		{Title: "R", Width: 4},
		{Title: "G", Width: 4},
		{Title: "B", Width: 4},
		{Title: "Color", Width: 6},
		{Title: "Updated", Width: 13},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(24),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	t.SetStyles(styles)
	return watchModel{sim: sim, tx: tx, sequence: sequence, table: t}
}

func watchTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Init() tea.Cmd {
	return watchTick()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case watchTickMsg:
		m.table.SetRows(m.rows())
		return m, watchTick()
	case tea.WindowSizeMsg:
		if h := msg.Height - 6; h > 3 {
			m.table.SetHeight(h)
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m watchModel) rows() []table.Row {
	fixtures := m.sim.Snapshot()
	rows := make([]table.Row, 0, len(fixtures))
	for _, f := range fixtures {
		on := "-"
		if f.On {
			on = "on"
		}
		updated := "-"
		if !f.LastUpdated.IsZero() {
			updated = f.LastUpdated.Format("15:04:05.000")
		}
		swatch := watchSwatchOn.
			Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", f.R, f.G, f.B))).
			Render("██")
		rows = append(rows, table.Row{
			fmt.Sprintf("0x%04X", uint16(f.Addr)),
			on,
			fmt.Sprintf("%d", f.Level),
			fmt.Sprintf("%d", f.R),
			fmt.Sprintf("%d", f.G),
			fmt.Sprintf("%d", f.B),
			swatch,
			updated,
		})
	}
	return rows
}

func (m watchModel) View() string {
	if m.quitting {
		return ""
	}
	st := m.tx.Status()
	header := watchTitleStyle.Render("maquette watch") +
		watchStatusStyle.Render(fmt.Sprintf("  sequence=%s  state=%s  frames=%d  queue=%d",
			m.sequence, st.State, st.FramesSent, st.QueueDepth))
	help := watchStatusStyle.Render("q: quit")
	return header + "\n\n" + m.table.View() + "\n" + help + "\n"
}
