package view

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/settlement"
)

type txState int

const (
	txStateList txState = iota
	txStateFailReason
	txStateEvents
)

var transactionStatusFilters = []ledger.TransactionStatus{
	"",
	ledger.TransactionPending,
	ledger.TransactionConfirmed,
	ledger.TransactionSettled,
	ledger.TransactionCancelled,
	ledger.TransactionFailed,
}

// txItem wraps a transaction to implement list.Item.
type txItem struct {
	tx *ledger.Transaction
}

func (i txItem) Title() string {
	status := lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf("[%s]", i.tx.Status))

	return fmt.Sprintf("%s  %s  %s  property %s", FormatDate(i.tx.CreatedAt), FormatMoney(i.tx.Amount), status, ShortID(i.tx.PropertyID))
}

func (i txItem) Description() string {
	if i.tx.FailureReason != "" {
		return fmt.Sprintf("Failed: %s", i.tx.FailureReason)
	}

	return fmt.Sprintf("Buyer %s | Seller %s", ShortID(i.tx.BuyerID), ShortID(i.tx.SellerID))
}

func (i txItem) FilterValue() string {
	return i.tx.ID.String() + " " + i.tx.PropertyID.String()
}

type TransactionsModel struct {
	CommonModel
	coordinator *settlement.Coordinator

	state  txState
	list   list.Model
	form   *huh.Form
	txs    []*ledger.Transaction
	events []*ledger.Event

	statusFilterIdx int
	loading         bool
	status          string

	formReason *string
}

func NewTransactionsModel(coordinator *settlement.Coordinator) TransactionsModel {
	l := list.New([]list.Item{}, txItemDelegate{}, 80, 20)
	l.Title = "Transactions"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	return TransactionsModel{
		coordinator: coordinator,
		list:        l,
		loading:     true,
	}
}

func (m TransactionsModel) Title() string { return "Transactions" }

func (m TransactionsModel) ShortHelp() string {
	switch m.state {
	case txStateList:
		return "Esc: back | c: confirm | k: contract | s: settle | x: cancel | f: fail | e: events | t: status | /: filter"
	case txStateFailReason:
		return "Esc: cancel | Enter: submit"
	case txStateEvents:
		return "Esc: back to list"
	}

	return ""
}

func (m TransactionsModel) Init() tea.Cmd {
	return m.loadTxsCmd()
}

func (m TransactionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadTxsMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.txs = msg.txs
		m.refreshListItems()

		if len(msg.txs) == 0 {
			m.status = "No transactions found."
		}

		return m, nil

	case txActionMsg:
		m.state = txStateList
		m.form = nil

		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.status = fmt.Sprintf("Transaction %s is now %s.", ShortID(msg.tx.ID), msg.tx.Status)

		return m, m.loadTxsCmd()

	case loadEventsMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.events = msg.events
		m.state = txStateEvents

		return m, nil

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)

		return m, nil
	}

	switch m.state {
	case txStateList:
		return m.updateList(msg)
	case txStateFailReason:
		return m.updateFailReason(msg)
	case txStateEvents:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
			m.state = txStateList
			m.events = nil
		}

		return m, nil
	}

	return m, nil
}

func (m TransactionsModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)

		return m, cmd
	}

	switch keyMsg.String() {
	case "esc":
		if m.list.FilterState() == list.FilterApplied {
			break
		}

		return m, Back
	case "r":
		return m, m.loadTxsCmd()
	case "t":
		m.statusFilterIdx = (m.statusFilterIdx + 1) % len(transactionStatusFilters)
		return m, m.loadTxsCmd()
	case "c":
		return m, m.actionCmd(m.coordinator.Confirm)
	case "k":
		return m, m.actionCmd(m.coordinator.Contract)
	case "s":
		return m, m.actionCmd(m.coordinator.Settle)
	case "x":
		return m, m.actionCmd(m.coordinator.Cancel)
	case "f":
		return m.startFailReason()
	case "e", "enter":
		return m, m.loadEventsCmd()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	return m, cmd
}

func (m TransactionsModel) startFailReason() (tea.Model, tea.Cmd) {
	if m.selected() == nil {
		return m, nil
	}

	m.formReason = new("")
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Key("reason").
				Title("Why did settlement fail?").
				Value(m.formReason).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("reason cannot be empty")
					}
					return nil
				}),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = txStateFailReason

	return m, m.form.Init()
}

func (m TransactionsModel) updateFailReason(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = txStateList
		m.form = nil

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	reason := strings.TrimSpace(*m.formReason)

	return m, m.actionCmd(func(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
		return m.coordinator.FailSettlement(ctx, id, reason)
	})
}

func (m TransactionsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading transactions...")
	}

	statusLine := ""
	if m.status != "" {
		statusLine = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n"
	}

	filter := "All"
	if s := transactionStatusFilters[m.statusFilterIdx]; s != "" {
		filter = string(s)
	}

	header := fmt.Sprintf("Filter: [t] Status: %s\n", activeStyle(filter))

	switch m.state {
	case txStateFailReason:
		if m.form == nil {
			return ""
		}

		return lipgloss.NewStyle().Padding(1).Render(m.txInfoView() + "\n" + m.form.View())

	case txStateEvents:
		return lipgloss.NewStyle().Padding(1).Render(m.txInfoView() + "\n" + m.eventsView())
	}

	return lipgloss.NewStyle().Padding(1).Render(statusLine + header + m.list.View())
}

func (m TransactionsModel) txInfoView() string {
	tx := m.selected()
	if tx == nil {
		return ""
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Render(fmt.Sprintf(
			"Transaction: %s  |  Status: %s  |  Amount: %s\nProperty: %s",
			tx.ID,
			tx.Status,
			FormatMoney(tx.Amount),
			tx.PropertyID,
		))
}

func (m TransactionsModel) eventsView() string {
	if len(m.events) == 0 {
		return "No events recorded."
	}

	var b strings.Builder

	for _, e := range m.events {
		fmt.Fprintf(&b, "%s  %-10s  %s -> %s", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.FromStatus, e.ToStatus)

		if e.Reason != "" {
			fmt.Fprintf(&b, "  (%s)", e.Reason)
		}

		b.WriteString("\n")
	}

	return b.String()
}

func (m TransactionsModel) selected() *ledger.Transaction {
	item, ok := m.list.SelectedItem().(txItem)
	if !ok {
		return nil
	}

	return item.tx
}

func (m *TransactionsModel) refreshListItems() {
	items := make([]list.Item, len(m.txs))
	for i, tx := range m.txs {
		items[i] = txItem{tx: tx}
	}

	m.list.SetItems(items)
}

// Messages

type loadTxsMsg struct {
	txs []*ledger.Transaction
	err error
}

func (m TransactionsModel) loadTxsCmd() tea.Cmd {
	filter := ledger.TransactionFilter{}
	if s := transactionStatusFilters[m.statusFilterIdx]; s != "" {
		filter.Status = new(s)
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		txs, err := m.coordinator.List(ctx, filter)

		return loadTxsMsg{txs: txs, err: err}
	}
}

type txActionMsg struct {
	tx  *ledger.Transaction
	err error
}

func (m TransactionsModel) actionCmd(fn func(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)) tea.Cmd {
	tx := m.selected()
	if tx == nil {
		return nil
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		updated, err := fn(ctx, tx.ID)

		return txActionMsg{tx: updated, err: err}
	}
}

type loadEventsMsg struct {
	events []*ledger.Event
	err    error
}

func (m TransactionsModel) loadEventsCmd() tea.Cmd {
	tx := m.selected()
	if tx == nil {
		return nil
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		events, err := m.coordinator.Events(ctx, tx.ID)

		return loadEventsMsg{events: events, err: err}
	}
}

// txItemDelegate renders items in the list.
type txItemDelegate struct{}

func (d txItemDelegate) Height() int                             { return 2 }
func (d txItemDelegate) Spacing() int                            { return 0 }
func (d txItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d txItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(txItem)
	if !ok {
		return
	}

	title := i.Title()
	if index == m.Index() {
		title = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Render("> " + title)
	}

	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintf(w, "    %s\n", lipgloss.NewStyle().Faint(true).Render(i.Description()))
}
