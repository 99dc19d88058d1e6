package importer_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/estatebank/internal/importer"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger/memstore"
	"github.com/MrJamesThe3rd/estatebank/internal/property"
)

func newService(t *testing.T) (*importer.Service, *memstore.Store) {
	t.Helper()

	store := memstore.New()
	props := property.NewService(store, ledger.DefaultRetryPolicy())

	return importer.NewService(props, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestService_Import(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	csv := "title,address,country,price,currency\nCabin,1 Pine Rd,US,100,USD\nLodge,2 Pine Rd,US,250.50,USD\n"

	summary, err := svc.Import(ctx, importer.FormatAuto, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, "standard", summary.Format)
	assert.Equal(t, "utf-8", summary.Charset)
	require.Len(t, summary.Created, 2)

	props, err := store.ListProperties(ctx, ledger.PropertyFilter{})
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, "Cabin", props[0].Title)
	assert.Equal(t, ledger.PropertyAvailable, props[1].Status)
}

func TestService_ImportIsAllOrNothing(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	csv := "title,address,country,price,currency,owner_id\n" +
		"Cabin,1 Pine Rd,US,100,USD,\n" +
		"Lodge,2 Pine Rd,US,250,USD," + uuid.NewString() + "\n"

	_, err := svc.Import(ctx, importer.FormatStandard, strings.NewReader(csv))
	require.ErrorIs(t, err, ledger.ErrNotFound)

	props, err := store.ListProperties(ctx, ledger.PropertyFilter{})
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestService_ImportReportsFileRow(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	csv := "Exported 2026-10-01\n" +
		"title,address,country,price,currency\n" +
		"Cabin,1 Pine Rd,US,100,USD\n" +
		"Lodge,2 Pine Rd,US,250,dollars\n"

	_, err := svc.Import(ctx, importer.FormatAuto, strings.NewReader(csv))
	require.ErrorIs(t, err, importer.ErrInvalidFeed)
	require.ErrorIs(t, err, property.ErrInvalidListing)
	assert.Contains(t, err.Error(), "row 4")

	props, err := store.ListProperties(ctx, ledger.PropertyFilter{})
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestService_ImportRejectsBadFeeds(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Import(context.Background(), "xml", strings.NewReader(""))
	require.ErrorIs(t, err, importer.ErrInvalidFeed)

	_, err = svc.Import(context.Background(), importer.FormatEuropean, strings.NewReader("title,price\n"))
	require.ErrorIs(t, err, importer.ErrInvalidFeed)
}
