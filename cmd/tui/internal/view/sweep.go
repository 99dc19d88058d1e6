package view

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/estatebank/internal/reconcile"
)

type SweepModel struct {
	CommonModel
	sweeper *reconcile.Sweeper

	running bool
	report  *reconcile.Report
	err     error
}

func NewSweepModel(sweeper *reconcile.Sweeper) SweepModel {
	return SweepModel{sweeper: sweeper}
}

func (m SweepModel) Title() string { return "Reconciliation Sweep" }

func (m SweepModel) ShortHelp() string { return "Esc: back | r: run again" }

func (m SweepModel) Init() tea.Cmd {
	return m.sweepCmd()
}

func (m SweepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			if m.running {
				return m, nil
			}

			m.running = true

			return m, m.sweepCmd()
		}

	case sweepResultMsg:
		m.running = false
		m.report = msg.report
		m.err = msg.err

		return m, nil
	}

	return m, nil
}

func (m SweepModel) View() string {
	style := lipgloss.NewStyle().Padding(2)

	if m.running || (m.report == nil && m.err == nil) {
		return style.Render("Sweeping for orphaned reservations...")
	}

	if m.err != nil {
		return style.Render(errorStyle(fmt.Sprintf("Sweep failed: %v", m.err)) + "\n\n(Esc to go back)")
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Scanned %d held properties.\n", m.report.Scanned)
	fmt.Fprintf(&b, "Repaired %d, skipped %d, failed %d.\n", len(m.report.Repaired), m.report.Skipped, m.report.Failed)

	for _, id := range m.report.Repaired {
		fmt.Fprintf(&b, "  released %s\n", id)
	}

	summary := successStyle(b.String())
	if m.report.Failed > 0 {
		summary = errorStyle(b.String())
	}

	return style.Render(summary + "\n(r to run again, Esc to go back)")
}

type sweepResultMsg struct {
	report *reconcile.Report
	err    error
}

func (m SweepModel) sweepCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		report, err := m.sweeper.SweepOnce(ctx)
		if err != nil {
			return sweepResultMsg{err: err}
		}

		return sweepResultMsg{report: &report}
	}
}
