// Package vectorstore is the Vector Store (spec §4.3, §6 persisted state):
// a single-writer embedded database holding chunks and their embeddings,
// with top-k cosine similarity computed either by a registered SQL scalar
// function (indexed path) or in memory (fallback path).
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jstevewhite/rsrch/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS summaries (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	title TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS embeddings (
	summary_id TEXT PRIMARY KEY,
	dim INTEGER NOT NULL,
	vec_blob BLOB NOT NULL
);
`

// ScoredChunk pairs a persisted chunk with its cosine score against the
// query embedding used in a TopK call.
type ScoredChunk struct {
	Chunk domain.Chunk
	Score float64
}

// Store is the Vector Store. Only ASSEMBLE is permitted to call Upsert
// (spec §5, §9 design note): this is enforced by architecture. Upsert
// additionally holds mu, and SetMaxOpenConns(1) below makes concurrent
// writes serialize through the single connection rather than
// deadlocking the embedded engine.
type Store struct {
	db           *sql.DB
	indexedPath  bool
	mu           sync.Mutex // serializes Upsert calls
}

// Open opens (creating if absent) the embedded database at path and
// attempts to register the cosine_sim scalar function. If registration
// fails, the store falls back to computing cosine similarity in memory.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer embedded engine

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate vector store schema: %w", err)
	}

	s := &Store{db: db, indexedPath: cosineSimRegistered()}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// IndexedPath reports whether top_k uses the registered SQL function
// (true) or the in-memory fallback (false).
func (s *Store) IndexedPath() bool {
	return s.indexedPath
}

// Upsert persists chunks and their embeddings in one transaction, holding
// mu for its duration; the ASSEMBLE stage is the only caller in this system.
func (s *Store) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO summaries (id, url, title, text, created_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET url=excluded.url, title=excluded.title, text=excluded.text`,
			c.ID, c.SourceURL, "", c.Text, now,
		); err != nil {
			return fmt.Errorf("upsert summary %s: %w", c.ID, err)
		}
		if len(c.Embedding) > 0 {
			blob := encodeVector(c.Embedding)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO embeddings (summary_id, dim, vec_blob) VALUES (?, ?, ?)
				 ON CONFLICT(summary_id) DO UPDATE SET dim=excluded.dim, vec_blob=excluded.vec_blob`,
				c.ID, len(c.Embedding), blob,
			); err != nil {
				return fmt.Errorf("upsert embedding %s: %w", c.ID, err)
			}
		}
	}
	return tx.Commit()
}

// TopK returns the k chunks with the highest cosine similarity to
// queryEmbedding, descending, size min(k, chunks with embedding).
func (s *Store) TopK(ctx context.Context, queryEmbedding []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	if s.indexedPath {
		return s.topKIndexed(ctx, queryEmbedding, k)
	}
	return s.topKFallback(ctx, queryEmbedding, k)
}

func (s *Store) topKIndexed(ctx context.Context, queryEmbedding []float32, k int) ([]ScoredChunk, error) {
	qBlob := encodeVector(queryEmbedding)
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.url, s.title, s.text, e.dim,
		       cosine_sim(?, e.vec_blob, e.dim) AS score
		FROM embeddings e
		JOIN summaries s ON s.id = e.summary_id
		ORDER BY score DESC
		LIMIT ?`, qBlob, k)
	if err != nil {
		// The function may have been registered at connection-open time
		// but still fail at call time for an unanticipated reason; fall
		// back to the in-memory path for this call rather than failing
		// the whole ASSEMBLE stage.
		return s.topKFallback(ctx, queryEmbedding, k)
	}
	defer rows.Close()

	var out []ScoredChunk
	for rows.Next() {
		var c domain.Chunk
		var dim int
		var score float64
		if err := rows.Scan(&c.ID, &c.SourceURL, new(string), &c.Text, &dim, &score); err != nil {
			return nil, fmt.Errorf("scan top_k row: %w", err)
		}
		out = append(out, ScoredChunk{Chunk: c, Score: score})
	}
	return out, rows.Err()
}

func (s *Store) topKFallback(ctx context.Context, queryEmbedding []float32, k int) ([]ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.url, s.text, e.vec_blob, e.dim
		FROM embeddings e
		JOIN summaries s ON s.id = e.summary_id`)
	if err != nil {
		return nil, fmt.Errorf("fallback top_k query: %w", err)
	}
	defer rows.Close()

	var all []ScoredChunk
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		var dim int
		if err := rows.Scan(&c.ID, &c.SourceURL, &c.Text, &blob, &dim); err != nil {
			return nil, fmt.Errorf("scan fallback row: %w", err)
		}
		c.Embedding = decodeVector(blob, dim)
		all = append(all, ScoredChunk{Chunk: c, Score: cosineSimilarity(queryEmbedding, c.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if k < len(all) {
		all = all[:k]
	}
	return all, nil
}

// encodeVector lays out v as little-endian IEEE-754 float32, length dim*4.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte, dim int) []float32 {
	out := make([]float32, dim)
	for i := 0; i < dim && (i+1)*4 <= len(buf); i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// cosineSimilarity always accumulates in 64-bit even though the stored
// vectors are 32-bit, to avoid precision drift affecting order for
// near-ties (spec §9 design note). Negative cosine is left as-is here;
// mapping to [0,1] is the Context Assembler's responsibility (spec §4.9).
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
