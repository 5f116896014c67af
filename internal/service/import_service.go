package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/repository"
)

// RowSource yields spreadsheet rows one at a time. Columns returns the cells
// of the current row; trailing empty cells may be missing.
type RowSource interface {
	Next() bool
	Columns() ([]string, error)
	Err() error
	Close() error
}

// ImportResult counts the rows of one import.
type ImportResult struct {
	Examined int `json:"examined"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportService merges spreadsheet rows into the unassigned product pool.
type ImportService interface {
	Import(ctx context.Context, caller domain.Caller, rows RowSource) (*ImportResult, error)
}

type importService struct {
	store repository.Store
}

// NewImportService creates a new instance of ImportService
func NewImportService(store repository.Store) ImportService {
	return &importService{store: store}
}

// Import creates one unassigned product per usable row. Rows without both a
// name and a size are skipped. Either every product of the file is stored
// or none is, and failures are reported as *domain.ImportError. rows is
// always closed; a failing Close after the last row rolls the import back.
func (s *importService) Import(ctx context.Context, caller domain.Caller, rows RowSource) (_ *ImportResult, err error) {
	closed := false
	defer func() {
		if closed {
			return
		}
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close rows: %w", cerr))
		}
	}()

	if err := domain.Authorize(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		products := tx.Products()
		for rows.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			result.Examined++
			cells, err := rows.Columns()
			if err != nil {
				return fmt.Errorf("failed to read row %d: %w", result.Examined, err)
			}

			product, ok := productFromRow(cells)
			if !ok {
				result.Skipped++
				continue
			}
			if err := products.Create(ctx, product); err != nil {
				return fmt.Errorf("failed to store row %d: %w", result.Examined, err)
			}
			result.Imported++
		}
		if err := rows.Err(); err != nil {
			return err
		}

		closed = true
		if err := rows.Close(); err != nil {
			return fmt.Errorf("failed to close rows: %w", err)
		}
		return nil
	})
	if err != nil {
		var importErr *domain.ImportError
		if errors.As(err, &importErr) {
			return nil, err
		}
		return nil, &domain.ImportError{Err: err}
	}

	return result, nil
}

// productFromRow reads name and size from the first two cells.
func productFromRow(cells []string) (*domain.Product, bool) {
	if len(cells) < 2 {
		return nil, false
	}

	name := strings.TrimSpace(cells[0])
	size := strings.TrimSpace(cells[1])
	if name == "" || size == "" {
		return nil, false
	}
	if utf8.RuneCountInString(name) > domain.MaxProductNameLength || utf8.RuneCountInString(size) > domain.MaxProductSizeLength {
		return nil, false
	}

	return &domain.Product{Name: name, Size: size}, true
}
