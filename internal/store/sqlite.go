package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/pkg/types"
)

// SQLiteStore implements Store on a SQLite database in WAL mode.
type SQLiteStore struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool
	path   string
	gen    *Generator
	logger *slog.Logger
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(path string, readConns int, gen *Generator, logger *slog.Logger) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, path: path, gen: gen, logger: logging.OrDefault(logger)}
	if s.gen == nil {
		s.gen = NewGenerator(0)
	}

	// Schema first, so the file exists before the readers open it.
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to initialize schema: %w", err)
	}

	if readConns <= 0 {
		readConns = 4
	}
	readDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(readConns)
	readDB.SetMaxIdleConns(readConns)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	s.readDB = readDB

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	for _, stmt := range []string{CreateRecordsTableSQL, CreateReturnsTableSQL} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	for _, stmt := range CreateRecordsIndexesSQL {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, in types.NewRecord) (types.Record, error) {
	if err := in.Validate(); err != nil {
		return types.Record{}, invalidRecord(err)
	}
	r := newRecord(in, time.Now().UTC())
	if err := insertRecord(ctx, s.db, r); err != nil {
		return types.Record{}, queryFailed("insert", err)
	}
	return r, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRecord(ctx context.Context, db execer, r types.Record) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Name, nullString(r.Description), r.PriceCents, r.Quantity, r.Category,
		r.CreatedAt.UnixNano(), r.UpdatedAt.UnixNano())
	return err
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (types.Record, error) {
	row := s.readDB.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id.String())
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return types.Record{}, notFound(id)
	}
	if err != nil {
		return types.Record{}, queryFailed("get", err)
	}
	return r, nil
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, id uuid.UUID, patch types.RecordPatch) (types.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Record{}, queryFailed("begin update", err)
	}
	defer tx.Rollback()

	current, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id.String()))
	if err == sql.ErrNoRows {
		return types.Record{}, notFound(id)
	}
	if err != nil {
		return types.Record{}, queryFailed("select for update", err)
	}

	updated, err := patch.Apply(current, time.Now().UTC())
	if err != nil {
		return types.Record{}, invalidRecord(err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE records SET name = ?, description = ?, price_cents = ?, quantity = ?, category = ?, updated_at = ?
		 WHERE id = ?`,
		updated.Name, nullString(updated.Description), updated.PriceCents, updated.Quantity,
		updated.Category, updated.UpdatedAt.UnixNano(), id.String())
	if err != nil {
		return types.Record{}, queryFailed("update", err)
	}
	if err := tx.Commit(); err != nil {
		return types.Record{}, queryFailed("commit update", err)
	}
	return updated, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id.String())
	if err != nil {
		return queryFailed("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return queryFailed("delete", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

// ListAll implements Store.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]types.Record, error) {
	rows, err := s.readDB.QueryContext(ctx, `SELECT `+recordColumns+` FROM records ORDER BY seq ASC`)
	if err != nil {
		return nil, queryFailed("list all", err)
	}
	return collect(rows)
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]types.Record, error) {
	if err := validatePage(limit, offset); err != nil {
		return nil, err
	}
	rows, err := s.readDB.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records ORDER BY seq ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, queryFailed("list", err)
	}
	return collect(rows)
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.readDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, queryFailed("count", err)
	}
	return n, nil
}

// BulkInsert implements Store. Each batch commits in its own transaction.
func (s *SQLiteStore) BulkInsert(ctx context.Context, n int) (int, time.Duration, error) {
	if err := validateBulk(n); err != nil {
		return 0, 0, err
	}
	base, err := s.Count(ctx)
	if err != nil {
		return 0, 0, err
	}

	start := time.Now()
	inserted := 0
	batches := (n + BatchSize - 1) / BatchSize
	for b := 0; b < batches; b++ {
		size := min(BatchSize, n-inserted)
		if err := s.insertBatch(ctx, s.gen.Batch(base+inserted+1, size)); err != nil {
			return inserted, time.Since(start), err
		}
		inserted += size
		s.logger.Debug("seeded batch", "batch", b+1, "batches", batches, "inserted", inserted)
	}
	return inserted, time.Since(start), nil
}

func (s *SQLiteStore) insertBatch(ctx context.Context, batch []types.NewRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return queryFailed("begin batch", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return queryFailed("prepare batch", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, in := range batch {
		r := newRecord(in, now)
		if _, err := stmt.ExecContext(ctx,
			r.ID.String(), r.Name, nullString(r.Description), r.PriceCents, r.Quantity, r.Category,
			r.CreatedAt.UnixNano(), r.UpdatedAt.UnixNano()); err != nil {
			return queryFailed("insert batch", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return queryFailed("commit batch", err)
	}
	return nil
}

// DeleteAll implements Store.
func (s *SQLiteStore) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records`)
	if err != nil {
		return 0, queryFailed("delete all", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, queryFailed("delete all", err)
	}
	return int(n), nil
}

// CreateReturn implements Store.
func (s *SQLiteStore) CreateReturn(ctx context.Context, in types.NewReturn) (types.ReturnDetail, error) {
	if err := in.Validate(); err != nil {
		return types.ReturnDetail{}, invalidRecord(err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.ReturnDetail{}, queryFailed("begin return", err)
	}
	defer tx.Rollback()

	var name, category string
	err = tx.QueryRowContext(ctx, `SELECT name, category FROM records WHERE id = ?`, in.ProductID.String()).
		Scan(&name, &category)
	if err == sql.ErrNoRows {
		return types.ReturnDetail{}, notFound(in.ProductID)
	}
	if err != nil {
		return types.ReturnDetail{}, queryFailed("select return product", err)
	}

	ret := newReturn(in, time.Now().UTC())
	_, err = tx.ExecContext(ctx,
		`INSERT INTO returns (id, product_id, quantity, reason, returned_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ret.ID.String(), ret.ProductID.String(), ret.Quantity, ret.Reason,
		ret.ReturnedAt.UnixNano(), ret.CreatedAt.UnixNano())
	if err != nil {
		return types.ReturnDetail{}, queryFailed("insert return", err)
	}
	if err := tx.Commit(); err != nil {
		return types.ReturnDetail{}, queryFailed("commit return", err)
	}
	return types.ReturnDetail{Return: ret, ProductName: name, ProductCategory: category}, nil
}

// GetReturn implements Store.
func (s *SQLiteStore) GetReturn(ctx context.Context, id uuid.UUID) (types.ReturnDetail, error) {
	row := s.readDB.QueryRowContext(ctx, returnDetailSelect+` WHERE d.id = ?`, id.String())
	d, err := scanReturn(row)
	if err == sql.ErrNoRows {
		return types.ReturnDetail{}, returnNotFound(id)
	}
	if err != nil {
		return types.ReturnDetail{}, queryFailed("get return", err)
	}
	return d, nil
}

// ListReturns implements Store.
func (s *SQLiteStore) ListReturns(ctx context.Context, limit int) ([]types.ReturnDetail, error) {
	rows, err := s.readDB.QueryContext(ctx,
		returnDetailSelect+` ORDER BY d.returned_at DESC, d.seq DESC LIMIT ?`, clampReturnLimit(limit))
	if err != nil {
		return nil, queryFailed("list returns", err)
	}
	defer rows.Close()

	out := []types.ReturnDetail{}
	for rows.Next() {
		d, err := scanReturn(rows)
		if err != nil {
			return nil, queryFailed("scan return", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed("iterate returns", err)
	}
	return out, nil
}

// Close closes both connection pools.
func (s *SQLiteStore) Close() error {
	var firstErr error
	if s.readDB != nil {
		firstErr = s.readDB.Close()
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (types.Record, error) {
	var (
		r       types.Record
		id      string
		desc    sql.NullString
		created int64
		updated int64
	)
	if err := row.Scan(&id, &r.Name, &desc, &r.PriceCents, &r.Quantity, &r.Category, &created, &updated); err != nil {
		return types.Record{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return types.Record{}, fmt.Errorf("corrupt record id %q: %w", id, err)
	}
	r.ID = parsed
	if desc.Valid {
		d := desc.String
		r.Description = &d
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	r.UpdatedAt = time.Unix(0, updated).UTC()
	return r, nil
}

func scanReturn(row scanner) (types.ReturnDetail, error) {
	var (
		d                 types.ReturnDetail
		id, productID     string
		returned, created int64
	)
	err := row.Scan(&id, &productID, &d.Quantity, &d.Reason, &returned, &created, &d.ProductName, &d.ProductCategory)
	if err != nil {
		return types.ReturnDetail{}, err
	}
	if d.ID, err = uuid.Parse(id); err != nil {
		return types.ReturnDetail{}, fmt.Errorf("corrupt return id %q: %w", id, err)
	}
	if d.ProductID, err = uuid.Parse(productID); err != nil {
		return types.ReturnDetail{}, fmt.Errorf("corrupt product id %q: %w", productID, err)
	}
	d.ReturnedAt = time.Unix(0, returned).UTC()
	d.CreatedAt = time.Unix(0, created).UTC()
	return d, nil
}

func collect(rows *sql.Rows) ([]types.Record, error) {
	defer rows.Close()
	out := []types.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, queryFailed("scan", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed("iterate rows", err)
	}
	return out, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
