package main

import (
	"context"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/estatebank/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/estatebank/internal/app"
	"github.com/MrJamesThe3rd/estatebank/internal/config"
	"github.com/MrJamesThe3rd/estatebank/internal/logging"
)

type model struct {
	app *app.App

	currentView View

	propertiesView   view.PropertiesModel
	transactionsView view.TransactionsModel
	reserveView      view.ReserveModel
	sweepView        view.SweepModel
	importView       view.ImportModel
}

type View int

const (
	ViewMenu         View = 0
	ViewProperties   View = 1
	ViewTransactions View = 2
	ViewReserve      View = 3
	ViewSweep        View = 4
	ViewImport       View = 5
)

func initialModel(a *app.App) model {
	return model{
		app:              a,
		currentView:      ViewMenu,
		propertiesView:   view.NewPropertiesModel(a.Properties),
		transactionsView: view.NewTransactionsModel(a.Coordinator),
		reserveView:      view.NewReserveModel(a.Properties, a.Engine),
		sweepView:        view.NewSweepModel(a.Sweeper),
		importView:       view.NewImportModel(a.Importer),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewProperties
				m.propertiesView = view.NewPropertiesModel(m.app.Properties)

				return m, m.propertiesView.Init()
			case "2":
				m.currentView = ViewTransactions
				m.transactionsView = view.NewTransactionsModel(m.app.Coordinator)

				return m, m.transactionsView.Init()
			case "3":
				m.currentView = ViewReserve
				m.reserveView = view.NewReserveModel(m.app.Properties, m.app.Engine)

				return m, m.reserveView.Init()
			case "4":
				m.currentView = ViewSweep
				m.sweepView = view.NewSweepModel(m.app.Sweeper)

				return m, m.sweepView.Init()
			case "5":
				m.currentView = ViewImport
				m.importView = view.NewImportModel(m.app.Importer)

				return m, m.importView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewProperties:
		var newModel tea.Model
		newModel, cmd = m.propertiesView.Update(msg)
		m.propertiesView = newModel.(view.PropertiesModel)
	case ViewTransactions:
		var newModel tea.Model
		newModel, cmd = m.transactionsView.Update(msg)
		m.transactionsView = newModel.(view.TransactionsModel)
	case ViewReserve:
		var newModel tea.Model
		newModel, cmd = m.reserveView.Update(msg)
		m.reserveView = newModel.(view.ReserveModel)
	case ViewSweep:
		var newModel tea.Model
		newModel, cmd = m.sweepView.Update(msg)
		m.sweepView = newModel.(view.SweepModel)
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	}

	return m, cmd
}

func (m model) View() string {
	var current view.View

	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"EstateBank Console\n\n" +
				"1. Properties\n" +
				"2. Transactions\n" +
				"3. Reserve a Property\n" +
				"4. Run Reconciliation Sweep\n" +
				"5. Import Listing Feed\n\n" +
				"q. Quit",
		)
	case ViewProperties:
		current = m.propertiesView
	case ViewTransactions:
		current = m.transactionsView
	case ViewReserve:
		current = m.reserveView
	case ViewSweep:
		current = m.sweepView
	case ViewImport:
		current = m.importView
	default:
		return "Unknown View"
	}

	title := lipgloss.NewStyle().Bold(true).PaddingLeft(1).Render(current.Title())
	help := lipgloss.NewStyle().Faint(true).PaddingLeft(1).Render(current.ShortHelp())

	return title + "\n" + current.View() + "\n" + help
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to stderr.
	logger := logging.New(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	p := tea.NewProgram(initialModel(a), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		a.Close()
		os.Exit(1)
	}
}
