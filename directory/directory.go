// Package directory is the club's hosted record store adapter. It answers
// two narrow questions for the authorization core: "what role does this
// verified email hold right now?" and "read/write rows by key, stamped with
// the caller's audit identity."
//
// Row-level policy is enforced by the database itself; this adapter is a
// second line, not the only one.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwestre/clubgate/internal/audit"
	"github.com/mwestre/clubgate/role"
)

var (
	// ErrStoreUnavailable wraps transport-level database failures.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrBadIdentifier is returned for table or column names outside the
	// allowed character set.
	ErrBadIdentifier = errors.New("invalid identifier")
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

const (
	createdByColumn = "created_by"
	updatedByColumn = "last_updated_by"
)

// Directory reads and writes the club's membership and finance records.
type Directory struct {
	pool         *pgxpool.Pool
	membersTable string
	audit        *audit.Dispatcher
	logger       *slog.Logger
}

// Option customizes a Directory.
type Option func(*Directory)

// WithMembersTable overrides the table consulted for role lookups.
func WithMembersTable(table string) Option {
	return func(d *Directory) { d.membersTable = table }
}

// WithAudit attaches an audit dispatcher; mutations emit events through it.
func WithAudit(dispatcher *audit.Dispatcher) Option {
	return func(d *Directory) { d.audit = dispatcher }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) { d.logger = logger }
}

// New creates a Directory over the given connection pool.
func New(pool *pgxpool.Pool, opts ...Option) *Directory {
	d := &Directory{
		pool:         pool,
		membersTable: "members",
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ role.Source = (*Directory)(nil)

// RoleByEmail returns the caller's current role from the membership store.
// An email with no membership row yields [role.None] and a nil error: that
// caller is authenticated but unprovisioned, which is not a fault. Whatever
// string the row holds is narrowed through [role.Parse] before it leaves
// this trust boundary.
func (d *Directory) RoleByEmail(ctx context.Context, email string) (role.Role, error) {
	if err := checkIdentifiers(d.membersTable); err != nil {
		return role.None, err
	}
	query := fmt.Sprintf(`SELECT role FROM %s WHERE email = $1`, d.membersTable)

	var raw string
	err := d.pool.QueryRow(ctx, query, email).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return role.None, nil
	}
	if err != nil {
		return role.None, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return role.Parse(raw), nil
}

// Get returns all rows from table where keyColumn equals key.
func (d *Directory) Get(ctx context.Context, table, keyColumn string, key any) ([]map[string]any, error) {
	if err := checkIdentifiers(table, keyColumn); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = $1`, table, keyColumn)
	rows, err := d.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// Insert writes a row into table, stamping created_by and last_updated_by
// with the caller's audit identity. by comes from per-request identity
// resolution, never from client payload.
func (d *Directory) Insert(ctx context.Context, table string, values map[string]any, by string) error {
	if err := checkIdentifiers(table); err != nil {
		return err
	}

	stamped := make(map[string]any, len(values)+2)
	for k, v := range values {
		stamped[k] = v
	}
	stamped[createdByColumn] = nullable(by)
	stamped[updatedByColumn] = nullable(by)

	cols, args, err := sortedColumns(stamped)
	if err != nil {
		return err
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)`,
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)

	_, err = d.pool.Exec(ctx, query, args...)
	d.emitMutation(ctx, "record.insert", table, by, err)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Update modifies rows in table where keyColumn equals key, stamping
// last_updated_by.
func (d *Directory) Update(ctx context.Context, table, keyColumn string, key any, values map[string]any, by string) error {
	if err := checkIdentifiers(table, keyColumn); err != nil {
		return err
	}

	stamped := make(map[string]any, len(values)+1)
	for k, v := range values {
		stamped[k] = v
	}
	stamped[updatedByColumn] = nullable(by)

	cols, args, err := sortedColumns(stamped)
	if err != nil {
		return err
	}

	assignments := make([]string, len(cols))
	for i, col := range cols {
		assignments[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args = append(args, key)

	query := fmt.Sprintf(
		`UPDATE %s SET %s WHERE %s = $%d`,
		table, strings.Join(assignments, ", "), keyColumn, len(args),
	)

	_, err = d.pool.Exec(ctx, query, args...)
	d.emitMutation(ctx, "record.update", table, by, err)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes rows from table where keyColumn equals key.
func (d *Directory) Delete(ctx context.Context, table, keyColumn string, key any, by string) error {
	if err := checkIdentifiers(table, keyColumn); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table, keyColumn)

	_, err := d.pool.Exec(ctx, query, key)
	d.emitMutation(ctx, "record.delete", table, by, err)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (d *Directory) emitMutation(ctx context.Context, action, table, by string, opErr error) {
	event := audit.Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Email:     by,
		Table:     table,
		Success:   opErr == nil,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	d.audit.Emit(ctx, event)
}

// nullable maps an empty audit identity to NULL so that a failed resolution
// is visibly distinct from a real email in the row.
func nullable(by string) any {
	if by == "" {
		return nil
	}
	return by
}

func checkIdentifiers(idents ...string) error {
	for _, ident := range idents {
		if !identPattern.MatchString(ident) {
			return fmt.Errorf("%w: %q", ErrBadIdentifier, ident)
		}
	}
	return nil
}

func sortedColumns(values map[string]any) ([]string, []any, error) {
	cols := make([]string, 0, len(values))
	for col := range values {
		if !identPattern.MatchString(col) {
			return nil, nil, fmt.Errorf("%w: %q", ErrBadIdentifier, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = values[col]
	}
	return cols, args, nil
}
