package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

// querier is the read surface shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const selectCell = `
	SELECT id, short_id, name, cell_type, x, y, width, height, location,
		inline_text, path, summary, content_hash, parent_id, split_direction,
		is_start_point, preview_mode, created_at, modified_at
	FROM cells`

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr[T ~string](p *T) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func scanCell(row rowScanner) (*domain.Cell, error) {
	var c domain.Cell
	var name, path, parentID, splitDir, previewMode sql.NullString
	var inline []byte
	var startPoint int
	var createdAt, modifiedAt string

	err := row.Scan(&c.ID, &c.ShortID, &name, &c.Type,
		&c.Bounds.X, &c.Bounds.Y, &c.Bounds.Width, &c.Bounds.Height,
		&c.Location, &inline, &path, &c.Summary, &c.ContentHash,
		&parentID, &splitDir, &startPoint, &previewMode, &createdAt, &modifiedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning cell: %w", err)
	}

	c.Name = name.String
	// NULL and empty blobs both mean empty inline content.
	if c.Location == domain.LocationInline {
		text := string(inline)
		c.InlineText = &text
	}
	if path.Valid {
		c.Path = &path.String
	}
	if parentID.Valid {
		id := domain.CellID(parentID.String)
		c.ParentID = &id
	}
	if splitDir.Valid {
		d := domain.SplitDirection(splitDir.String)
		c.SplitDirection = &d
	}
	if previewMode.Valid {
		m := domain.PreviewMode(previewMode.String)
		c.PreviewMode = &m
	}
	c.IsStartPoint = startPoint != 0
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.ModifiedAt, err = parseTime(modifiedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func getCell(ctx context.Context, q querier, id domain.CellID) (*domain.Cell, error) {
	return scanCell(q.QueryRowContext(ctx, selectCell+" WHERE id = ?", string(id)))
}

func listCells(ctx context.Context, q querier, query string, args ...any) ([]domain.Cell, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cells: %w", err)
	}
	defer rows.Close()

	var cells []domain.Cell //nolint:prealloc // size unknown from query
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		cells = append(cells, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cells: %w", err)
	}
	return cells, nil
}

func listRelationships(ctx context.Context, q querier, query string, args ...any) ([]domain.Relationship, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	var rels []domain.Relationship //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rel domain.Relationship
		var createdAt string
		if err := rows.Scan(&rel.From, &rel.To, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		if rel.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relationships: %w", err)
	}
	return rels, nil
}

// cellArgs returns column values in selectCell order.
func cellArgs(c *domain.Cell) []any {
	var inline any
	if c.Location == domain.LocationInline && c.InlineText != nil {
		inline = []byte(*c.InlineText)
	}
	startPoint := 0
	if c.IsStartPoint {
		startPoint = 1
	}
	return []any{
		string(c.ID), domain.NormalizeShortID(c.ShortID), nullString(c.Name), string(c.Type),
		c.Bounds.X, c.Bounds.Y, c.Bounds.Width, c.Bounds.Height,
		string(c.Location), inline, nullStringPtr(c.Path), c.Summary, c.ContentHash,
		nullStringPtr(c.ParentID), nullStringPtr(c.SplitDirection), startPoint,
		nullStringPtr(c.PreviewMode), formatTime(c.CreatedAt), formatTime(c.ModifiedAt),
	}
}
