package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"reeltrack/models"
)

// ErrDuplicate marks an insert rejected by the (user_id, tmdb_id, type) unique constraint.
var ErrDuplicate = errors.New("duplicate key value violates unique constraint")

// ErrOwnerRequired is returned when a table handle is used without an owner.
var ErrOwnerRequired = errors.New("owner is required")

const pgUniqueViolation = "23505"

const watchlistColumns = "id, user_id, tmdb_id, title, type, poster_path, year, watched_at, created_at"

// Column names that may appear in ORDER BY.
const (
	ColumnWatchedAt = "watched_at"
	ColumnTitle     = "title"
	ColumnCreatedAt = "created_at"
)

// Order is a single ORDER BY term.
type Order struct {
	Column    string
	Ascending bool
}

// Query describes a watchlist select: optional equality filter on type plus ordering.
type Query struct {
	Type  *models.WatchlistType
	Order Order
}

// WatchlistTable gives access to the watchlist table.
type WatchlistTable struct {
	conn    *sql.DB
	dialect string
	now     func() time.Time
}

// NewWatchlistTable creates a table handle for the given connection.
func NewWatchlistTable(conn *sql.DB, dialect string) *WatchlistTable {
	return &WatchlistTable{
		conn:    conn,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ForUser returns a view of the table restricted to rows owned by userID.
// Every statement issued through it carries the owner predicate, the same
// guarantee Supabase row-level security gives with auth.uid() = user_id.
func (t *WatchlistTable) ForUser(userID string) *OwnedWatchlist {
	return &OwnedWatchlist{table: t, owner: strings.TrimSpace(userID)}
}

// OwnedWatchlist is the watchlist table as seen by one user.
type OwnedWatchlist struct {
	table *WatchlistTable
	owner string
}

// Select returns the owner's rows matching q.
func (o *OwnedWatchlist) Select(ctx context.Context, q Query) ([]models.WatchlistItem, error) {
	if o.owner == "" {
		return nil, ErrOwnerRequired
	}

	var (
		where = []string{"user_id = ?"}
		args  = []any{o.owner}
	)
	if q.Type != nil {
		where = append(where, "type = ?")
		args = append(args, string(*q.Type))
	}

	orderBy, err := orderClause(q.Order)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("SELECT %s FROM watchlist WHERE %s ORDER BY %s",
		watchlistColumns, strings.Join(where, " AND "), orderBy)

	rows, err := o.table.conn.QueryContext(ctx, o.table.rebind(stmt), args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	items := []models.WatchlistItem{}
	for rows.Next() {
		item, err := scanWatchlistItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return items, nil
}

// Insert adds a row. The owner of the view always wins over row.UserID.
func (o *OwnedWatchlist) Insert(ctx context.Context, row models.WatchlistRow) (models.WatchlistItem, error) {
	if o.owner == "" {
		return models.WatchlistItem{}, ErrOwnerRequired
	}

	now := o.table.now()
	watchedAt := row.WatchedAt
	if watchedAt.IsZero() {
		watchedAt = now
	}

	item := models.WatchlistItem{
		ID:         uuid.NewString(),
		UserID:     o.owner,
		TMDBID:     row.TMDBID,
		Title:      row.Title,
		Type:       row.Type,
		PosterPath: row.PosterPath,
		Year:       row.Year,
		WatchedAt:  normalizeTime(watchedAt),
		CreatedAt:  normalizeTime(now),
	}

	stmt := "INSERT INTO watchlist (" + watchlistColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := o.table.conn.ExecContext(ctx, o.table.rebind(stmt),
		item.ID, item.UserID, item.TMDBID, item.Title, string(item.Type),
		nullString(item.PosterPath), nullInt(item.Year), item.WatchedAt, item.CreatedAt)
	if err != nil {
		return models.WatchlistItem{}, translateError(err)
	}
	return item, nil
}

// Update applies a partial update to the row with the given id. Rows owned by
// someone else are never touched; like a filtered update that matches nothing,
// that is not reported as an error.
func (o *OwnedWatchlist) Update(ctx context.Context, id string, upd models.WatchlistItemUpdate) error {
	if o.owner == "" {
		return ErrOwnerRequired
	}
	if upd.WatchedAt == nil {
		return nil
	}

	stmt := "UPDATE watchlist SET watched_at = ? WHERE id = ? AND user_id = ?"
	_, err := o.table.conn.ExecContext(ctx, o.table.rebind(stmt), normalizeTime(*upd.WatchedAt), id, o.owner)
	if err != nil {
		return translateError(err)
	}
	return nil
}

// Delete removes the row with the given id if the owner has it.
func (o *OwnedWatchlist) Delete(ctx context.Context, id string) error {
	if o.owner == "" {
		return ErrOwnerRequired
	}

	stmt := "DELETE FROM watchlist WHERE id = ? AND user_id = ?"
	if _, err := o.table.conn.ExecContext(ctx, o.table.rebind(stmt), id, o.owner); err != nil {
		return translateError(err)
	}
	return nil
}

// rebind rewrites ? placeholders into $n for Postgres.
func (t *WatchlistTable) rebind(query string) string {
	if t.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func orderClause(o Order) (string, error) {
	column := o.Column
	if column == "" {
		column = ColumnWatchedAt
	}
	switch column {
	case ColumnWatchedAt, ColumnTitle, ColumnCreatedAt:
	default:
		return "", fmt.Errorf("cannot order by %q", o.Column)
	}

	direction := "DESC"
	if o.Ascending {
		direction = "ASC"
	}
	// id breaks ties so equal sort keys still come back in a stable order
	return fmt.Sprintf("%s %s, id %s", column, direction, direction), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatchlistItem(row rowScanner) (models.WatchlistItem, error) {
	var (
		item       models.WatchlistItem
		itemType   string
		posterPath sql.NullString
		year       sql.NullInt64
	)
	if err := row.Scan(&item.ID, &item.UserID, &item.TMDBID, &item.Title, &itemType,
		&posterPath, &year, &item.WatchedAt, &item.CreatedAt); err != nil {
		return models.WatchlistItem{}, fmt.Errorf("scan watchlist row: %w", err)
	}

	item.Type = models.WatchlistType(itemType)
	if posterPath.Valid {
		p := posterPath.String
		item.PosterPath = &p
	}
	if year.Valid {
		y := int(year.Int64)
		item.Year = &y
	}
	item.WatchedAt = item.WatchedAt.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
	return item, nil
}

// translateError maps driver-specific constraint failures onto ErrDuplicate.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %s", ErrDuplicate, liteErr.Error())
	}

	return err
}

// normalizeTime keeps timestamps in UTC at the precision both backends store.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}
