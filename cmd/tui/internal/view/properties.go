package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/property"
)

type propertiesState int

const (
	propertiesStateBrowse propertiesState = iota
	propertiesStateCountry
	propertiesStateConfirmWithdraw
)

var (
	propertyStatusFilters = []ledger.PropertyStatus{
		"",
		ledger.PropertyAvailable,
		ledger.PropertyReserved,
		ledger.PropertyUnderContract,
		ledger.PropertySold,
		ledger.PropertyWithdrawn,
	}
	propertySorts = []ledger.PropertySort{ledger.SortInsertion, ledger.SortPriceAsc, ledger.SortPriceDesc}
)

type PropertiesModel struct {
	CommonModel
	svc *property.Service

	state      propertiesState
	table      table.Model
	properties []*ledger.Property
	form       *huh.Form

	statusFilterIdx int
	sortIdx         int

	filter  ledger.PropertyFilter
	loading bool
	err     error
	status  string

	// Form bindings live on the heap so they survive model copies.
	formCountry  *string
	formWithdraw *bool
}

func NewPropertiesModel(svc *property.Service) PropertiesModel {
	columns := []table.Column{
		{Title: "ID", Width: 10},
		{Title: "Status", Width: 15},
		{Title: "Price", Width: 18},
		{Title: "Country", Width: 8},
		{Title: "Title", Width: 40},
	}

	return PropertiesModel{
		svc:     svc,
		table:   newTable(columns),
		loading: true,
	}
}

func (m PropertiesModel) Title() string { return "Properties" }

func (m PropertiesModel) ShortHelp() string {
	if m.state != propertiesStateBrowse {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | s: status | o: sort | c: country | w: withdraw | r: refresh"
}

func (m PropertiesModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m PropertiesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadPropertiesMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.properties = msg.properties
		m.refreshTable()

		return m, nil

	case withdrawResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error withdrawing: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("Withdrew %s.", msg.title)
		}

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.table.SetHeight(msg.Height - 10)

		return m, nil
	}

	switch m.state {
	case propertiesStateBrowse:
		return m.updateBrowse(msg)
	case propertiesStateCountry, propertiesStateConfirmWithdraw:
		return m.updateForm(msg)
	}

	return m, nil
}

func (m PropertiesModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % len(propertyStatusFilters)
			m.applyFilter()

			return m, m.loadCmd()
		case "o":
			m.sortIdx = (m.sortIdx + 1) % len(propertySorts)
			m.applyFilter()

			return m, m.loadCmd()
		case "c":
			return m.enterCountryForm()
		case "w":
			return m.enterWithdrawForm()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m PropertiesModel) enterCountryForm() (tea.Model, tea.Cmd) {
	m.formCountry = new("")
	if m.filter.Country != nil {
		*m.formCountry = *m.filter.Country
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("country").
				Title("Country").
				Description("Leave empty to show every country").
				Value(m.formCountry),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = propertiesStateCountry
	m.table.Blur()

	return m, m.form.Init()
}

func (m PropertiesModel) enterWithdrawForm() (tea.Model, tea.Cmd) {
	p := m.selected()
	if p == nil {
		return m, nil
	}

	m.formWithdraw = new(false)
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("withdraw").
				Title(fmt.Sprintf("Withdraw %q?", p.Title)).
				Description("Withdrawn listings can no longer be reserved.").
				Affirmative("Withdraw").
				Negative("Keep").
				Value(m.formWithdraw),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = propertiesStateConfirmWithdraw
	m.table.Blur()

	return m, m.form.Init()
}

func (m PropertiesModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		return m.closeForm(), nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	state := m.state
	m = m.closeForm()

	if state == propertiesStateCountry {
		m.applyFilter()
		return m, m.loadCmd()
	}

	if !*m.formWithdraw {
		return m, nil
	}

	return m, m.withdrawCmd()
}

func (m PropertiesModel) closeForm() PropertiesModel {
	m.state = propertiesStateBrowse
	m.form = nil
	m.table.Focus()

	return m
}

func (m PropertiesModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading properties...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	country := "All"
	if m.filter.Country != nil {
		country = *m.filter.Country
	}

	status := "All"
	if s := propertyStatusFilters[m.statusFilterIdx]; s != "" {
		status = string(s)
	}

	sort := "Listed"
	if s := propertySorts[m.sortIdx]; s != ledger.SortInsertion {
		sort = string(s)
	}

	header := fmt.Sprintf(
		"Filter: [s] Status: %s | [c] Country: %s | [o] Sort: %s",
		activeStyle(status),
		activeStyle(country),
		activeStyle(sort),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		framed(m.table.View()),
	)

	if m.form != nil {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *PropertiesModel) applyFilter() {
	m.filter.Status = nil
	if s := propertyStatusFilters[m.statusFilterIdx]; s != "" {
		m.filter.Status = new(s)
	}

	m.filter.Country = nil
	if m.formCountry != nil {
		if c := strings.ToUpper(strings.TrimSpace(*m.formCountry)); c != "" {
			m.filter.Country = new(c)
		}
	}

	m.filter.Sort = propertySorts[m.sortIdx]
}

func (m PropertiesModel) selected() *ledger.Property {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.properties) {
		return nil
	}

	return m.properties[idx]
}

func (m *PropertiesModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.properties))
	for _, p := range m.properties {
		rows = append(rows, table.Row{
			ShortID(p.ID),
			string(p.Status),
			FormatMoney(p.Price),
			p.Country,
			p.Title,
		})
	}

	m.table.SetRows(rows)
}

// Messages

type loadPropertiesMsg struct {
	properties []*ledger.Property
	err        error
}

func (m PropertiesModel) loadCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		props, err := m.svc.List(ctx, filter)

		return loadPropertiesMsg{properties: props, err: err}
	}
}

type withdrawResultMsg struct {
	title string
	err   error
}

func (m PropertiesModel) withdrawCmd() tea.Cmd {
	p := m.selected()
	if p == nil {
		return nil
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		_, err := m.svc.Withdraw(ctx, p.ID)

		return withdrawResultMsg{title: p.Title, err: err}
	}
}
