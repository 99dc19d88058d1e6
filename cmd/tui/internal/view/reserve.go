package view

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/property"
	"github.com/MrJamesThe3rd/estatebank/internal/reservation"
)

type reserveState int

const (
	reserveStateLoading reserveState = iota
	reserveStateForm
	reserveStateSubmitting
	reserveStateResult
)

type reserveForm struct {
	propertyID string
	buyerID    string
	amount     string
}

type ReserveModel struct {
	CommonModel
	properties *property.Service
	engine     *reservation.Engine

	state     reserveState
	form      *huh.Form
	fields    *reserveForm
	available []*ledger.Property

	status string
	err    error
}

func NewReserveModel(properties *property.Service, engine *reservation.Engine) ReserveModel {
	return ReserveModel{
		properties: properties,
		engine:     engine,
	}
}

func (m ReserveModel) Title() string { return "Reserve Property" }

func (m ReserveModel) ShortHelp() string {
	return "Esc: back | Enter/Tab: navigate form"
}

func (m ReserveModel) Init() tea.Cmd {
	return m.loadAvailableCmd()
}

func (m ReserveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			if m.state == reserveStateResult && m.err != nil && len(m.available) > 0 {
				return m.buildForm()
			}

			return m, Back
		}

	case loadAvailableMsg:
		if msg.err != nil {
			m.state = reserveStateResult
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		m.available = msg.properties

		if len(m.available) == 0 {
			m.state = reserveStateResult
			m.status = "No available properties to reserve."

			return m, nil
		}

		return m.buildForm()

	case reserveResultMsg:
		m.state = reserveStateResult
		m.err = msg.err

		if msg.err != nil {
			m.status = fmt.Sprintf("Reservation failed: %v", msg.err)
			return m, nil
		}

		m.status = fmt.Sprintf("Reserved. Transaction %s is pending.", msg.tx.ID)

		return m, nil
	}

	if m.state != reserveStateForm || m.form == nil {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.state = reserveStateSubmitting

	return m, m.reserveCmd()
}

func (m ReserveModel) buildForm() (tea.Model, tea.Cmd) {
	options := make([]huh.Option[string], 0, len(m.available))
	for _, p := range m.available {
		options = append(options, huh.NewOption(fmt.Sprintf("%s  %s  %s", p.Title, p.Country, FormatMoney(p.Price)), p.ID.String()))
	}

	m.fields = &reserveForm{}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("property").
				Title("Property").
				Options(options...).
				Value(&m.fields.propertyID),

			huh.NewInput().
				Key("buyer").
				Title("Buyer ID").
				Validate(func(s string) error {
					if _, err := uuid.Parse(strings.TrimSpace(s)); err != nil {
						return fmt.Errorf("buyer must be a user ID")
					}
					return nil
				}).
				Value(&m.fields.buyerID),

			huh.NewInput().
				Key("amount").
				Title("Offer amount").
				Placeholder("250000.00").
				Validate(func(s string) error {
					d, err := decimal.NewFromString(strings.TrimSpace(s))
					if err != nil || !ledger.ValidAmount(d) {
						return fmt.Errorf("amount must be positive with at most 2 decimals")
					}
					return nil
				}).
				Value(&m.fields.amount),
		),
	).WithWidth(60).WithShowHelp(false)

	m.state = reserveStateForm
	m.err = nil
	m.status = ""

	return m, m.form.Init()
}

func (m ReserveModel) View() string {
	switch m.state {
	case reserveStateLoading:
		return lipgloss.NewStyle().Padding(2).Render("Loading available properties...")
	case reserveStateForm:
		return lipgloss.NewStyle().Padding(1).Render(m.form.View())
	case reserveStateSubmitting:
		return lipgloss.NewStyle().Padding(2).Render("Reserving...")
	case reserveStateResult:
		if m.err != nil {
			return lipgloss.NewStyle().Padding(2).Render(errorStyle(m.status) + "\n\n(Esc to edit the offer)")
		}

		return lipgloss.NewStyle().Padding(2).Render(successStyle(m.status) + "\n\n(Esc to go back)")
	}

	return ""
}

// Messages

type loadAvailableMsg struct {
	properties []*ledger.Property
	err        error
}

func (m ReserveModel) loadAvailableCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		props, err := m.properties.List(ctx, ledger.PropertyFilter{Status: new(ledger.PropertyAvailable)})

		return loadAvailableMsg{properties: props, err: err}
	}
}

type reserveResultMsg struct {
	tx  *ledger.Transaction
	err error
}

func (m ReserveModel) reserveCmd() tea.Cmd {
	var p *ledger.Property
	for _, candidate := range m.available {
		if candidate.ID.String() == m.fields.propertyID {
			p = candidate
		}
	}

	if p == nil {
		return func() tea.Msg { return reserveResultMsg{err: ledger.ErrNotFound} }
	}

	buyer := uuid.MustParse(strings.TrimSpace(m.fields.buyerID))
	amount := decimal.RequireFromString(strings.TrimSpace(m.fields.amount))

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		tx, err := m.engine.Reserve(ctx, reservation.ReserveParams{
			PropertyID: p.ID,
			BuyerID:    buyer,
			Amount:     ledger.NewMoney(amount, p.Price.Currency),
		})

		return reserveResultMsg{tx: tx, err: err}
	}
}
