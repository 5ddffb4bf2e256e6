package catalog

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS intent_examples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	intent_code TEXT NOT NULL,
	category TEXT NOT NULL,
	example_text TEXT NOT NULL,
	embedding BLOB NOT NULL,
	created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
CREATE INDEX IF NOT EXISTS idx_intent_examples_code ON intent_examples(intent_code);
`

// SQLiteCatalog persists catalog examples and keeps the in-memory Store in
// sync: every write goes through a transaction, then rebuilds and swaps
// the snapshot.
type SQLiteCatalog struct {
	db    *sql.DB
	store *Store
}

// OpenSQLite opens (creating if needed) the catalog database and loads all
// examples into a fresh snapshot.
func OpenSQLite(ctx context.Context, path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}

	c := &SQLiteCatalog{db: db, store: NewStore()}
	if err := c.reload(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Store exposes the live snapshot store for matchers.
func (c *SQLiteCatalog) Store() *Store {
	return c.store
}

// Close closes the underlying database.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

// UpsertExamples replaces an intent's stored examples and swaps in a new
// snapshot once the transaction commits.
func (c *SQLiteCatalog) UpsertExamples(ctx context.Context, intentCode string, examples []Example) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM intent_examples WHERE intent_code = ?`, intentCode); err != nil {
		return fmt.Errorf("delete old examples: %w", err)
	}

	for _, ex := range examples {
		category := ex.Category
		if category == "" {
			category = model.CategoryOf(intentCode)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO intent_examples (intent_code, category, example_text, embedding) VALUES (?, ?, ?, ?)`,
			intentCode, category, ex.Text, encodeEmbedding(ex.Embedding)); err != nil {
			return fmt.Errorf("insert example: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	snap := c.store.UpsertExamples(intentCode, examples)
	logx.Debug().
		Str("intent_code", intentCode).
		Int("examples", len(examples)).
		Uint64("snapshot_version", snap.Version()).
		Msg("Catalog examples upserted")
	return nil
}

func (c *SQLiteCatalog) reload(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx,
		`SELECT intent_code, category, example_text, embedding FROM intent_examples ORDER BY id`)
	if err != nil {
		return fmt.Errorf("load examples: %w", err)
	}
	defer rows.Close()

	var examples []Example
	for rows.Next() {
		var ex Example
		var blob []byte
		if err := rows.Scan(&ex.IntentCode, &ex.Category, &ex.Text, &blob); err != nil {
			return fmt.Errorf("scan example: %w", err)
		}
		ex.Embedding = decodeEmbedding(blob)
		examples = append(examples, ex)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate examples: %w", err)
	}

	c.store.Replace(examples)
	logx.Debug().Int("examples", len(examples)).Msg("Catalog loaded from sqlite")
	return nil
}

// Embeddings are stored as little-endian float32 blobs.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
