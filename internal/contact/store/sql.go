package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"contacts/internal/contact/models"
	"contacts/internal/platform/postgres"
	"contacts/internal/platform/sqlite"
	id "contacts/pkg/domain"
	"contacts/pkg/platform/sentinel"
	"contacts/pkg/platform/tx"
)

// dialect captures what differs between SQLite and PostgreSQL.
type dialect struct {
	name       string
	schema     []string
	indexes    []string
	hasColumn  string // counts contacts columns with the given name
	collate    string // byte-order collation for name_folded
	positional bool   // $1 placeholders instead of ?
	forUpdate  string // row lock clause for Execute
	isUnique   func(error) bool
	encodeTime func(time.Time) any
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS contacts (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			name_folded TEXT NOT NULL DEFAULT '',
			email       TEXT NOT NULL UNIQUE,
			phone       TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		)`,
	},
	indexes: []string{
		`DROP INDEX IF EXISTS idx_contacts_name`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_name_folded ON contacts (name_folded, id)`,
	},
	hasColumn:  `SELECT COUNT(*) FROM pragma_table_info('contacts') WHERE name = ?`,
	isUnique:   sqlite.IsUniqueViolation,
	encodeTime: func(t time.Time) any { return t.UnixMicro() },
}

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS contacts (
			id          UUID PRIMARY KEY,
			name        TEXT NOT NULL,
			name_folded TEXT NOT NULL DEFAULT '',
			email       TEXT NOT NULL UNIQUE,
			phone       TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)`,
	},
	indexes: []string{
		`DROP INDEX IF EXISTS idx_contacts_name`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_name_folded ON contacts (name_folded COLLATE "C", id)`,
	},
	hasColumn:  `SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = 'contacts' AND column_name = ?`,
	collate:    ` COLLATE "C"`,
	positional: true,
	forUpdate:  " FOR UPDATE",
	isUnique:   postgres.IsUniqueViolation,
	encodeTime: func(t time.Time) any { return t.UTC() },
}

const contactColumns = "id, name, email, phone, created_at, updated_at"

// SQLStore persists contacts through database/sql.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

// NewSQLite returns a store over a database opened by platform/sqlite.
func NewSQLite(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, d: sqliteDialect}
}

// NewPostgres returns a store over a pgx or lib/pq pool.
func NewPostgres(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, d: postgresDialect}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction carried by ctx, if any, so callers can group
// several store calls with tx.WithTx.
func (s *SQLStore) conn(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// Migrate creates the schema if it does not exist and brings older tables up
// to date: name_folded is added and filled in where missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s contacts: %w", s.d.name, err)
		}
	}

	var n int
	if err := s.db.QueryRowContext(ctx, s.q(s.d.hasColumn), "name_folded").Scan(&n); err != nil {
		return fmt.Errorf("inspect %s contacts: %w", s.d.name, err)
	}
	if n == 0 {
		if _, err := s.db.ExecContext(ctx,
			`ALTER TABLE contacts ADD COLUMN name_folded TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add name_folded: %w", err)
		}
	}
	if err := s.backfillFolded(ctx); err != nil {
		return err
	}

	for _, stmt := range s.d.indexes {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("index %s contacts: %w", s.d.name, err)
		}
	}
	return nil
}

// backfillFolded fills name_folded for rows written before the column
// existed. Names are never empty, so '' marks a row still to do.
func (s *SQLStore) backfillFolded(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM contacts WHERE name_folded = ''`)
	if err != nil {
		return fmt.Errorf("select unfolded names: %w", err)
	}
	type pending struct {
		id   string
		name string
	}
	var todo []pending
	for rows.Next() {
		var (
			rawID uuid.UUID
			p     pending
		)
		if err := rows.Scan(&rawID, &p.name); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan unfolded name: %w", err)
		}
		p.id = rawID.String()
		todo = append(todo, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate unfolded names: %w", err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close unfolded names: %w", err)
	}

	for _, p := range todo {
		if _, err := s.db.ExecContext(ctx, s.q(`UPDATE contacts SET name_folded = ? WHERE id = ?`),
			foldName(p.name), p.id); err != nil {
			return fmt.Errorf("fold name: %w", err)
		}
	}
	return nil
}

// foldName is the search and sort key for a name. It matches the folding the
// in-memory store applies, which SQL lower() does not for non-ASCII text.
func foldName(name string) string {
	return strings.ToLower(name)
}

func (s *SQLStore) Create(ctx context.Context, c *models.Contact) error {
	_, err := s.conn(ctx).ExecContext(ctx, s.q(
		`INSERT INTO contacts (`+contactColumns+`, name_folded) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID.String(), c.Name, c.Email, c.Phone, s.d.encodeTime(c.CreatedAt), s.d.encodeTime(c.UpdatedAt), foldName(c.Name),
	)
	if err != nil {
		if s.d.isUnique(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (s *SQLStore) FindByID(ctx context.Context, contactID id.ContactID) (*models.Contact, error) {
	row := s.conn(ctx).QueryRowContext(ctx, s.q(
		`SELECT `+contactColumns+` FROM contacts WHERE id = ?`), contactID.String())
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find contact: %w", err)
	}
	return c, nil
}

// Execute reads the row (locked on PostgreSQL), applies fn and writes it back
// in one transaction. An error from fn rolls back and is returned unchanged.
// When ctx already carries a transaction Execute joins it and leaves the
// commit to its owner.
func (s *SQLStore) Execute(ctx context.Context, contactID id.ContactID, fn func(*models.Contact) error) (*models.Contact, error) {
	if _, ok := tx.From(ctx); ok {
		return s.execute(ctx, contactID, fn)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	c, err := s.execute(tx.WithTx(ctx, sqlTx), contactID, fn)
	if err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit contact update: %w", err)
	}
	return c, nil
}

func (s *SQLStore) execute(ctx context.Context, contactID id.ContactID, fn func(*models.Contact) error) (*models.Contact, error) {
	conn := s.conn(ctx)
	row := conn.QueryRowContext(ctx, s.q(
		`SELECT `+contactColumns+` FROM contacts WHERE id = ?`+s.d.forUpdate), contactID.String())
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load contact: %w", err)
	}

	if err := fn(c); err != nil {
		return nil, err
	}

	_, err = conn.ExecContext(ctx, s.q(
		`UPDATE contacts SET name = ?, name_folded = ?, email = ?, phone = ?, updated_at = ? WHERE id = ?`),
		c.Name, foldName(c.Name), c.Email, c.Phone, s.d.encodeTime(c.UpdatedAt), contactID.String(),
	)
	if err != nil {
		if s.d.isUnique(err) {
			return nil, sentinel.ErrAlreadyUsed
		}
		return nil, fmt.Errorf("update contact: %w", err)
	}
	return c, nil
}

func (s *SQLStore) Delete(ctx context.Context, contactID id.ContactID) (*models.Contact, error) {
	row := s.conn(ctx).QueryRowContext(ctx, s.q(
		`DELETE FROM contacts WHERE id = ? RETURNING `+contactColumns), contactID.String())
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("delete contact: %w", err)
	}
	return c, nil
}

func (s *SQLStore) List(ctx context.Context, search string, offset, limit int) ([]*models.Contact, int, error) {
	where := ""
	var args []any
	if search != "" {
		where = ` WHERE name_folded LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(foldName(search))+"%")
	}

	var total int
	if err := s.conn(ctx).QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM contacts`+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, s.q(
		`SELECT `+contactColumns+` FROM contacts`+where+` ORDER BY name_folded`+s.d.collate+`, id LIMIT ? OFFSET ?`),
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]*models.Contact, 0, limit)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, total, nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// q rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) q(query string) string {
	if !s.d.positional {
		return query
	}
	var b strings.Builder
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

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(row scanner) (*models.Contact, error) {
	var (
		c                models.Contact
		rawID            uuid.UUID
		created, updated any
	)
	if err := row.Scan(&rawID, &c.Name, &c.Email, &c.Phone, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if c.CreatedAt, err = decodeTime(created); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = decodeTime(updated); err != nil {
		return nil, err
	}
	c.ID = id.ContactID(rawID)
	return &c, nil
}

// decodeTime accepts SQLite unix-micro integers and PostgreSQL timestamps.
func decodeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case int64:
		return time.UnixMicro(t).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes LIKE wildcards in user input match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
