package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// UpsertConfig describes a bulk INSERT ... ON CONFLICT DO UPDATE.
type UpsertConfig struct {
	Table        string
	Columns      []string
	ConflictCols []string
	// UpdateCols lists the columns rewritten on conflict. When empty the
	// conflict resolves to DO NOTHING.
	UpdateCols []string
}

// BulkUpsert inserts rows in a single multi-VALUES statement, updating
// on conflict. Returns the number of rows the statement affected.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for i, row := range rows {
		if len(row) != len(cfg.Columns) {
			return 0, eris.Errorf("db: row %d has %d values, want %d", i, len(row), len(cfg.Columns))
		}
	}

	var (
		sb   strings.Builder
		args []any
	)
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ",
		cfg.Table, strings.Join(cfg.Columns, ", "))

	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", len(args)+j+1)
		}
		sb.WriteString(")")
		args = append(args, row...)
	}

	if len(cfg.ConflictCols) > 0 {
		fmt.Fprintf(&sb, " ON CONFLICT (%s)", strings.Join(cfg.ConflictCols, ", "))
		if len(cfg.UpdateCols) == 0 {
			sb.WriteString(" DO NOTHING")
		} else {
			sb.WriteString(" DO UPDATE SET ")
			for i, col := range cfg.UpdateCols {
				if i > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(&sb, "%s = EXCLUDED.%s", col, col)
			}
		}
	}

	tag, err := pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, eris.Wrapf(err, "db: bulk upsert into %s", cfg.Table)
	}
	return tag.RowsAffected(), nil
}
