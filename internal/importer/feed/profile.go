package feed

// numberStyle determines how price cells are written.
type numberStyle int

const (
	// numberDot is "1234567.89", optionally with comma thousands: "1,234,567.89".
	numberDot numberStyle = iota
	// numberComma is "1.234.567,89".
	numberComma
)

// Profile describes the column layout of a listing feed export.
// Adding a new agency format is just adding a new Profile to the profiles slice.
type Profile struct {
	Name       string
	Comma      rune
	Numbers    numberStyle
	TitleCol   string
	AddrCol    string
	CountryCol string
	PriceCol   string
	// CurrencyCol may be empty, in which case DefaultCurrency is used.
	CurrencyCol     string
	DefaultCurrency string
	// OwnerCol is optional in every profile.
	OwnerCol string
}

// requiredCols returns the column names that must be present for this profile to match.
func (p Profile) requiredCols() []string {
	cols := []string{p.TitleCol, p.AddrCol, p.CountryCol, p.PriceCol}

	if p.CurrencyCol != "" {
		cols = append(cols, p.CurrencyCol)
	}

	return cols
}

// profiles is the ordered list of feed formats to try during auto-detection.
var profiles = []Profile{
	{
		Name:        "standard",
		Comma:       ',',
		Numbers:     numberDot,
		TitleCol:    "title",
		AddrCol:     "address",
		CountryCol:  "country",
		PriceCol:    "price",
		CurrencyCol: "currency",
		OwnerCol:    "owner_id",
	},
	{
		Name:            "european",
		Comma:           ';',
		Numbers:         numberComma,
		TitleCol:        "Título",
		AddrCol:         "Morada",
		CountryCol:      "País",
		PriceCol:        "Preço",
		CurrencyCol:     "",
		DefaultCurrency: "EUR",
		OwnerCol:        "Proprietário",
	},
}

// ProfileNames lists the formats the parser understands, in detection order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}

	return names
}

func lookupProfile(name string) (*Profile, bool) {
	for i := range profiles {
		if profiles[i].Name == name {
			return &profiles[i], true
		}
	}

	return nil, false
}
