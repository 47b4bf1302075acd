// Package knowledge is the assessment knowledge base: security notes,
// methodology documents, and prior findings ingested from a directory,
// chunked, embedded, and searched by similarity. With no embedding
// engine configured the store degrades to keyword search.
package knowledge

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"specter/internal/embedding"
	"specter/internal/logging"
)

// DefaultChunkSize is the chunk length in characters used when the
// config does not set one.
const DefaultChunkSize = 5000

// Store is the SQLite-backed knowledge base. Not goroutine-safe for
// concurrent ingest; the agent reads from a single control flow.
type Store struct {
	db        *sql.DB
	dbPath    string
	engine    embedding.Engine
	chunkSize int

	// vectorExt reports whether the vec0 virtual table module is
	// available (sqlite_vec builds); search falls back to a scan
	// otherwise.
	vectorExt bool
}

// Chunk is one stored knowledge fragment.
type Chunk struct {
	ID         int64
	Source     string
	Seq        int
	Content    string
	Similarity float64
	CreatedAt  time.Time
}

// NewStore opens (creating if needed) the knowledge database. engine
// may be nil for keyword-only operation.
func NewStore(path string, engine embedding.Engine, chunkSize int) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryKnowledge, "NewStore")
	defer timer.Stop()

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.KnowledgeDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.KnowledgeDebug("failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.KnowledgeDebug("failed to set synchronous=NORMAL: %v", err)
	}

	s := &Store{db: db, dbPath: path, engine: engine, chunkSize: chunkSize}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	s.detectVecExtension()

	if s.vectorExt {
		logging.Get(logging.CategoryKnowledge).Info("sqlite-vec extension detected, ANN search enabled")
	} else {
		logging.KnowledgeDebug("sqlite-vec not available, using scan search")
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			seq INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// detectVecExtension probes for vec0 virtual table support.
func (s *Store) detectVecExtension() {
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		if s.engine != nil {
			_, err := s.db.Exec(fmt.Sprintf(
				"CREATE VIRTUAL TABLE IF NOT EXISTS chunks_vec USING vec0(embedding float[%d])",
				s.engine.Dimensions()))
			if err != nil {
				logging.KnowledgeDebug("failed to create ANN index table: %v", err)
				s.vectorExt = false
			}
		}
		return
	}
	s.vectorExt = false
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats describes the store contents.
type Stats struct {
	TotalChunks    int64
	EmbeddedChunks int64
	Sources        int64
	Engine         string
	ANNEnabled     bool
}

// GetStats returns knowledge base statistics.
func (s *Store) GetStats() (Stats, error) {
	var stats Stats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&stats.TotalChunks); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks WHERE embedding IS NOT NULL").Scan(&stats.EmbeddedChunks); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow("SELECT COUNT(DISTINCT source) FROM chunks").Scan(&stats.Sources); err != nil {
		return stats, err
	}
	stats.Engine = "none (keyword search)"
	if s.engine != nil {
		stats.Engine = s.engine.Name()
	}
	stats.ANNEnabled = s.vectorExt
	return stats, nil
}

// serializeVector encodes a vector as little-endian float32 bytes,
// the blob format vec0 expects.
func serializeVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
