package tables

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"pos_console/internal/config"
	"pos_console/internal/posapi"

	"go.uber.org/zap"
)

var ErrUnknownState = errors.New("unknown table state")

type Source interface {
	ListTables(ctx context.Context) ([]posapi.Table, error)
	ListFreeTables(ctx context.Context) ([]posapi.Table, error)
	CreateTable(ctx context.Context, number string) (posapi.Table, error)
	SetTableState(ctx context.Context, id int64, state posapi.TableState) (posapi.Table, error)
	DeleteTable(ctx context.Context, id int64) error
}

// Loader keeps the last table list fetched from the backend. It is not safe for
// concurrent use.
type Loader struct {
	source Source
	policy config.ReadPolicy
	logger *zap.Logger
	tables []posapi.Table
}

func New(policy config.ReadPolicy, source Source, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		source: source,
		policy: policy,
		logger: logger.Named("tables"),
	}
}

// Load fetches every table, or only the free ones from the backend's dedicated endpoint.
// A failed read keeps the previous list.
func (l *Loader) Load(ctx context.Context, onlyFree bool) ([]posapi.Table, error) {
	var (
		tables []posapi.Table
		err    error
	)
	if onlyFree {
		tables, err = l.source.ListFreeTables(ctx)
	} else {
		tables, err = l.source.ListTables(ctx)
	}
	if err != nil {
		l.logger.Warn("table list not refreshed",
			zap.Bool("only_free", onlyFree),
			zap.Int("stale", len(l.tables)),
			zap.Error(err),
		)
		if l.policy.Surface() {
			return l.Tables(), fmt.Errorf("load tables: %w", err)
		}
		return l.Tables(), nil
	}

	l.tables = tables
	l.logger.Debug("tables loaded", zap.Bool("only_free", onlyFree), zap.Int("count", len(tables)))
	return l.Tables(), nil
}

func (l *Loader) Tables() []posapi.Table {
	return slices.Clone(l.tables)
}

// Find looks id up in the last loaded list.
func (l *Loader) Find(id int64) (posapi.Table, bool) {
	if i := l.index(id); i >= 0 {
		return l.tables[i], true
	}
	return posapi.Table{}, false
}

func (l *Loader) Create(ctx context.Context, number string) (posapi.Table, error) {
	table, err := l.source.CreateTable(ctx, number)
	if err != nil {
		return posapi.Table{}, err
	}
	l.tables = append(l.tables, table)
	l.logger.Info("table created", zap.Int64("id", table.ID), zap.String("number", table.Number))
	return table, nil
}

func (l *Loader) SetState(ctx context.Context, id int64, state posapi.TableState) (posapi.Table, error) {
	if state != posapi.TableFree && state != posapi.TableOccupied {
		return posapi.Table{}, fmt.Errorf("%w %q", ErrUnknownState, state)
	}
	table, err := l.source.SetTableState(ctx, id, state)
	if err != nil {
		return posapi.Table{}, err
	}
	if i := l.index(id); i >= 0 {
		l.tables[i] = table
	}
	l.logger.Info("table state changed", zap.Int64("id", id), zap.String("state", string(state)))
	return table, nil
}

func (l *Loader) Delete(ctx context.Context, id int64) error {
	if err := l.source.DeleteTable(ctx, id); err != nil {
		return err
	}
	if i := l.index(id); i >= 0 {
		l.tables = slices.Delete(l.tables, i, i+1)
	}
	l.logger.Info("table deleted", zap.Int64("id", id))
	return nil
}

func (l *Loader) index(id int64) int {
	return slices.IndexFunc(l.tables, func(t posapi.Table) bool { return t.ID == id })
}
