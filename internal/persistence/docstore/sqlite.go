package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"agentville.ai/internal/sim/inputs"
)

// SQLite is the durable Store and input log. One connection serializes every
// statement, so input numbering needs no extra locking.
type SQLite struct {
	db   *sql.DB
	once sync.Once
}

var (
	_ Store      = (*SQLite)(nil)
	_ inputs.Log = (*InputLog)(nil)
)

// InputLog is the inputs table of a SQLite store.
type InputLog struct {
	db *sql.DB
}

func (s *SQLite) Inputs() *InputLog { return &InputLog{db: s.db} }

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		// FULL: this is the system of record, not a secondary index.
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			world_id TEXT NOT NULL,
			id TEXT NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			json TEXT NOT NULL,
			PRIMARY KEY (collection, world_id, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(collection, world_id, owner);`,
		`CREATE TABLE IF NOT EXISTS inputs (
			engine_id TEXT NOT NULL,
			number INTEGER NOT NULL,
			name TEXT NOT NULL,
			args_json TEXT NOT NULL,
			received_at INTEGER NOT NULL,
			result_json TEXT,
			PRIMARY KEY (engine_id, number)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}

func (s *SQLite) Get(ctx context.Context, collection, worldID, id string) (Doc, error) {
	d := Doc{Collection: collection, WorldID: worldID, ID: id}
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner, json FROM documents WHERE collection=? AND world_id=? AND id=?`,
		collection, worldID, id,
	).Scan(&d.Owner, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Doc{}, ErrNotFound
	}
	if err != nil {
		return Doc{}, err
	}
	d.Data = json.RawMessage(raw)
	return d, nil
}

func (s *SQLite) Put(ctx context.Context, d Doc) error {
	if err := validKey(d.Collection, d.ID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents(collection,world_id,id,owner,json) VALUES(?,?,?,?,?)`,
		d.Collection, d.WorldID, d.ID, d.Owner, string(d.Data),
	)
	return err
}

func (s *SQLite) Delete(ctx context.Context, collection, worldID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection=? AND world_id=? AND id=?`,
		collection, worldID, id,
	)
	return err
}

func (s *SQLite) List(ctx context.Context, collection, worldID, owner string) ([]Doc, error) {
	q := `SELECT id, owner, json FROM documents WHERE collection=? AND world_id=?`
	args := []any{collection, worldID}
	if owner != "" {
		q += ` AND owner=?`
		args = append(args, owner)
	}
	q += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Doc
	for rows.Next() {
		d := Doc{Collection: collection, WorldID: worldID}
		var raw string
		if err := rows.Scan(&d.ID, &d.Owner, &raw); err != nil {
			return nil, err
		}
		d.Data = json.RawMessage(raw)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLite) DeleteWorld(ctx context.Context, worldID string, collections ...string) error {
	if len(collections) == 0 {
		_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE world_id=?`, worldID)
		return err
	}
	q := `DELETE FROM documents WHERE world_id=? AND collection IN (?` + strings.Repeat(",?", len(collections)-1) + `)`
	args := []any{worldID}
	for _, c := range collections {
		args = append(args, c)
	}
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (l *InputLog) Append(ctx context.Context, engineID, name string, args json.RawMessage, receivedAt int64) (int64, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var last int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number),0) FROM inputs WHERE engine_id=?`, engineID,
	).Scan(&last); err != nil {
		return 0, err
	}
	n := last + 1
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO inputs(engine_id,number,name,args_json,received_at) VALUES(?,?,?,?,?)`,
		engineID, n, name, string(args), receivedAt,
	); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (l *InputLog) After(ctx context.Context, engineID string, watermark int64, limit int) ([]inputs.Input, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT number, name, args_json, received_at, result_json FROM inputs
		 WHERE engine_id=? AND number>? ORDER BY number LIMIT ?`,
		engineID, watermark, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []inputs.Input
	for rows.Next() {
		in, err := scanInput(rows, engineID)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (l *InputLog) SetResult(ctx context.Context, engineID string, number int64, r inputs.Result) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE inputs SET result_json=? WHERE engine_id=? AND number=? AND result_json IS NULL`,
		string(b), engineID, number,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := l.Get(ctx, engineID, number); err != nil {
		return err
	}
	return inputs.ErrResultAlreadySet
}

func (l *InputLog) Get(ctx context.Context, engineID string, number int64) (inputs.Input, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT number, name, args_json, received_at, result_json FROM inputs WHERE engine_id=? AND number=?`,
		engineID, number,
	)
	in, err := scanInput(row, engineID)
	if errors.Is(err, sql.ErrNoRows) {
		return inputs.Input{}, inputs.ErrInputNotFound
	}
	return in, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInput(sc scanner, engineID string) (inputs.Input, error) {
	in := inputs.Input{EngineID: engineID}
	var args string
	var result sql.NullString
	if err := sc.Scan(&in.Number, &in.Name, &args, &in.ReceivedAt, &result); err != nil {
		return inputs.Input{}, err
	}
	in.Args = json.RawMessage(args)
	if result.Valid {
		var r inputs.Result
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return inputs.Input{}, fmt.Errorf("input %d: decode result: %w", in.Number, err)
		}
		in.Result = &r
	}
	return in, nil
}
