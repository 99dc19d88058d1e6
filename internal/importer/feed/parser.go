// Package feed parses CSV listing feeds exported by agencies and portals.
package feed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	enc "github.com/MrJamesThe3rd/estatebank/internal/encoding"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/property"
)

var ErrUnknownFormat = errors.New("no matching feed format")

// Result is a parsed feed.
type Result struct {
	Profile  string
	Charset  enc.Charset
	Listings []property.CreateParams
}

// Parser reads listing feeds. Without a fixed profile it auto-detects the
// format by trying each known separator and matching the header row.
type Parser struct {
	profile *Profile
}

type Option func(*Parser)

// WithProfile pins the parser to one named format.
func WithProfile(name string) Option {
	return func(p *Parser) {
		if prof, ok := lookupProfile(name); ok {
			p.profile = prof
		}
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Parser) Parse(r io.Reader) (*Result, error) {
	utf8r, charset, err := enc.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	candidates := profiles
	if p.profile != nil {
		candidates = []Profile{*p.profile}
	}

	for i := range candidates {
		prof := &candidates[i]

		rows, err := readRows(data, prof.Comma)
		if err != nil {
			continue
		}

		cols, headerIdx, ok := findHeader(prof, rows)
		if !ok {
			continue
		}

		listings, err := parseRows(prof, cols, rows[headerIdx+1:])
		if err != nil {
			return nil, err
		}

		return &Result{Profile: prof.Name, Charset: charset, Listings: listings}, nil
	}

	return nil, fmt.Errorf("%w: expected columns for %s", ErrUnknownFormat, strings.Join(ProfileNames(), " or "))
}

// record is one CSV record and the file line it starts on.
type record struct {
	line  int
	cells []string
}

// readRows reads every record. encoding/csv drops empty lines, so the line
// number is taken from the reader rather than the record index.
func readRows(data []byte, comma rune) ([]record, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows []record

	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}

		if err != nil {
			return nil, err
		}

		line, _ := reader.FieldPos(0)
		rows = append(rows, record{line: line, cells: cells})
	}
}

// colIndex maps column names to their index in the row.
type colIndex map[string]int

// findHeader returns the first row carrying every column the profile requires.
func findHeader(p *Profile, rows []record) (colIndex, int, bool) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row.cells {
			name := strings.TrimSpace(cell)
			if name != "" {
				cols[name] = i
			}
		}

		if hasCols(p, cols) {
			return cols, rowIdx, true
		}
	}

	return nil, 0, false
}

func hasCols(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[name]; !ok {
			return false
		}
	}

	return true
}

// parseRows turns data rows into listings. Blank rows are skipped; any other
// malformed row fails the whole feed with its file line number.
func parseRows(p *Profile, cols colIndex, rows []record) ([]property.CreateParams, error) {
	var listings []property.CreateParams

	for _, row := range rows {
		if blank(row.cells) {
			continue
		}

		listing, err := parseRow(p, cols, row.cells)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row.line, err)
		}

		listings = append(listings, listing)
	}

	return listings, nil
}

func parseRow(p *Profile, cols colIndex, row []string) (property.CreateParams, error) {
	title := cellValue(row, cols[p.TitleCol])
	if title == "" {
		return property.CreateParams{}, errors.New("missing title")
	}

	country := cellValue(row, cols[p.CountryCol])
	if country == "" {
		return property.CreateParams{}, errors.New("missing country")
	}

	raw := cellValue(row, cols[p.PriceCol])

	amount, err := parsePrice(raw, p.Numbers)
	if err != nil {
		return property.CreateParams{}, fmt.Errorf("price %q: %w", raw, err)
	}

	currency := p.DefaultCurrency
	if p.CurrencyCol != "" {
		currency = cellValue(row, cols[p.CurrencyCol])
	}

	listing := property.CreateParams{
		Title:   title,
		Address: cellValue(row, cols[p.AddrCol]),
		Country: country,
		Price:   ledger.NewMoney(amount, currency),
	}

	if idx, ok := cols[p.OwnerCol]; ok && p.OwnerCol != "" {
		if s := cellValue(row, idx); s != "" {
			owner, err := uuid.Parse(s)
			if err != nil {
				return property.CreateParams{}, fmt.Errorf("owner %q: %w", s, err)
			}

			listing.OwnerID = &owner
		}
	}

	if err := listing.Validate(); err != nil {
		return property.CreateParams{}, err
	}

	return listing, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}

// cellValue safely gets a trimmed cell value from a row.
func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
