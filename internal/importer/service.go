package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrJamesThe3rd/estatebank/internal/importer/feed"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/property"
)

// ErrInvalidFeed wraps every reason a feed file is rejected before anything is written.
var ErrInvalidFeed = errors.New("invalid feed")

type Service struct {
	properties *property.Service
	importers  map[Format]Importer
	logger     *slog.Logger
}

func NewService(properties *property.Service, logger *slog.Logger) *Service {
	return &Service{
		properties: properties,
		importers: map[Format]Importer{
			FormatAuto:     feed.NewParser(),
			FormatStandard: feed.NewParser(feed.WithProfile(string(FormatStandard))),
			FormatEuropean: feed.NewParser(feed.WithProfile(string(FormatEuropean))),
		},
		logger: logger,
	}
}

type Summary struct {
	Format  string
	Charset string
	Created []*ledger.Property
}

// Import parses a listing feed and creates every listing in one unit of work.
// A single bad row rejects the whole file.
func (s *Service) Import(ctx context.Context, format Format, r io.Reader) (*Summary, error) {
	if format == "" {
		format = FormatAuto
	}

	importer, ok := s.importers[format]
	if !ok {
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidFeed, format)
	}

	result, err := importer.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFeed, err)
	}

	created, err := s.properties.CreateBatch(ctx, result.Listings)
	if errors.Is(err, property.ErrInvalidListing) || errors.Is(err, ledger.ErrInvalidAmount) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFeed, err)
	}

	if err != nil {
		return nil, fmt.Errorf("import feed: %w", err)
	}

	s.logger.Info("listing feed imported",
		"format", result.Profile,
		"charset", result.Charset,
		"listings", len(created),
	)

	return &Summary{
		Format:  result.Profile,
		Charset: string(result.Charset),
		Created: created,
	}, nil
}
