package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/repository/repotest"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceRows is a RowSource over fixed rows that can fail after failAfter rows.
type sliceRows struct {
	rows      [][]string
	pos       int
	failAfter int
	err       error
	closeErr  error
	closed    bool
}

func newSliceRows(rows ...[]string) *sliceRows {
	return &sliceRows{rows: rows, failAfter: -1}
}

func (r *sliceRows) Next() bool {
	if r.failAfter >= 0 && r.pos >= r.failAfter {
		return false
	}
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceRows) Columns() ([]string, error) {
	return r.rows[r.pos-1], nil
}

func (r *sliceRows) Err() error {
	if r.failAfter >= 0 && r.pos >= r.failAfter {
		return r.err
	}
	return nil
}

func (r *sliceRows) Close() error {
	r.closed = true
	return r.closeErr
}

func TestImport_SkipsIncompleteRows(t *testing.T) {
	store := repotest.New()
	service := NewImportService(store)
	ctx := context.Background()

	rows := newSliceRows(
		[]string{"Jacket", "M"},
		[]string{"", "L"},
		[]string{"Boots", ""},
	)

	result, err := service.Import(ctx, adminCaller, rows)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Examined: 3, Imported: 1, Skipped: 2}, result)
	assert.True(t, rows.closed)

	products, err := store.Products().List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Jacket", products[0].Name)
	assert.Equal(t, "M", products[0].Size)
	assert.Nil(t, products[0].CategoryID)
}

func TestImport_TrimsAndIgnoresExtraColumns(t *testing.T) {
	store := repotest.New()
	service := NewImportService(store)
	ctx := context.Background()

	rows := newSliceRows(
		[]string{"  Regenjacke ", " XL ", "ignored", "also ignored"},
		[]string{"Nur Name"},
		[]string{},
		[]string{"   ", "S"},
		[]string{strings.Repeat("x", domain.MaxProductNameLength+1), "M"},
	)

	result, err := service.Import(ctx, adminCaller, rows)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Examined: 5, Imported: 1, Skipped: 4}, result)

	products, err := store.Products().List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Regenjacke", products[0].Name)
	assert.Equal(t, "XL", products[0].Size)
}

func TestImport_CloseErrorRollsBack(t *testing.T) {
	store := repotest.New()
	service := NewImportService(store)
	ctx := context.Background()

	closeErr := errors.New("remove temp file: permission denied")
	rows := newSliceRows([]string{"Jacket", "M"}, []string{"Boots", "43"})
	rows.closeErr = closeErr

	_, err := service.Import(ctx, adminCaller, rows)
	var importErr *domain.ImportError
	require.ErrorAs(t, err, &importErr)
	assert.ErrorIs(t, err, closeErr)
	assert.True(t, rows.closed)

	products, err := store.Products().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestImport_CloseErrorIsKeptOnEarlyReturn(t *testing.T) {
	service := NewImportService(repotest.New())

	closeErr := errors.New("remove temp file: permission denied")
	rows := newSliceRows([]string{"Jacket", "M"})
	rows.closeErr = closeErr

	_, err := service.Import(context.Background(), userCaller, rows)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, err, closeErr)
	assert.True(t, rows.closed)
}

func TestImport_ReadErrorRollsBack(t *testing.T) {
	store := repotest.New()
	service := NewImportService(store)
	ctx := context.Background()

	readErr := errors.New("zip: not a valid zip file")
	rows := newSliceRows([]string{"Jacket", "M"}, []string{"Boots", "43"}, []string{"Cap", "S"})
	rows.failAfter = 2
	rows.err = readErr

	_, err := service.Import(ctx, adminCaller, rows)
	var importErr *domain.ImportError
	require.ErrorAs(t, err, &importErr)
	assert.ErrorIs(t, err, readErr)

	products, err := store.Products().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestImport_StorageErrorRollsBack(t *testing.T) {
	store := repotest.New()
	service := NewImportService(store)
	ctx := context.Background()

	store.AddProduct("Bestand", "M", nil)
	boom := errors.New("disk full")
	store.FailOn("Products.Create", boom)

	_, err := service.Import(ctx, adminCaller, newSliceRows([]string{"Jacket", "M"}))
	var importErr *domain.ImportError
	require.ErrorAs(t, err, &importErr)
	assert.ErrorIs(t, err, boom)

	products, err := store.Products().List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Bestand", products[0].Name)
}

func TestImport_Forbidden(t *testing.T) {
	store := repotest.New()
	service := NewImportService(store)

	rows := newSliceRows([]string{"Jacket", "M"})
	_, err := service.Import(context.Background(), userCaller, rows)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.True(t, rows.closed, "the source is closed even when the import is refused")
}

func TestProperty_ProductFromRow(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a row is usable iff both trimmed cells are non-empty", prop.ForAll(
		func(name string, size string, padding string) bool {
			product, ok := productFromRow([]string{padding + name + padding, padding + size})
			wantOK := strings.TrimSpace(name) != "" && strings.TrimSpace(size) != ""
			if ok != wantOK {
				return false
			}
			if !ok {
				return product == nil
			}
			return product.Name == strings.TrimSpace(name) &&
				product.Size == strings.TrimSpace(size) &&
				product.CategoryID == nil
		},
		gen.OneGenOf(gen.AlphaString(), gen.Const(""), gen.Const("  ")),
		gen.OneGenOf(gen.AlphaString(), gen.Const(""), gen.OneConstOf("S", "M", "42")),
		gen.OneConstOf("", " ", "\t"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
