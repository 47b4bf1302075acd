package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"specter/internal/logging"
)

// binaryExtensions are file types skipped during ingest.
var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".elf": true,
	".bin": true, ".dat": true, ".zip": true, ".tar": true, ".gz": true,
	".7z": true, ".rar": true, ".pdf": true, ".doc": true, ".docx": true,
	".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true, ".jpg": true,
	".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".ico": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true,
	".flv": true, ".iso": true, ".img": true, ".vmdk": true, ".vdi": true,
}

// embedBatchSize bounds how many chunks are embedded per API call.
const embedBatchSize = 32

// IngestDirectory loads every text file at the top level of dir into
// the store. Each file is chunked and embedded; re-ingesting a file
// replaces its previous chunks. Returns the number of chunks stored.
func (s *Store) IngestDirectory(ctx context.Context, dir string) (int, error) {
	timer := logging.StartTimer(logging.CategoryKnowledge, "IngestDirectory")
	defer timer.Stop()

	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("knowledge directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("knowledge path %s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read knowledge directory: %w", err)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if binaryExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			logging.KnowledgeDebug("skipping binary file %s", entry.Name())
			continue
		}
		n, err := s.IngestFile(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			// One unreadable file should not abort the whole load.
			logging.Get(logging.CategoryKnowledge).Warn("failed to ingest %s: %v", entry.Name(), err)
			continue
		}
		total += n
	}

	logging.Get(logging.CategoryKnowledge).Info("ingested %d chunks from %s", total, dir)
	return total, nil
}

// IngestFile chunks and stores one file, replacing any chunks from a
// prior ingest of the same source name.
func (s *Store) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return 0, nil
	}

	source := filepath.Base(path)
	chunks := splitContent(content, s.chunkSize)

	var vectors [][]float32
	if s.engine != nil {
		vectors, err = s.embedChunks(ctx, chunks)
		if err != nil {
			return 0, fmt.Errorf("failed to embed %s: %w", source, err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks WHERE source = ?", source); err != nil {
		return 0, err
	}

	for i, chunk := range chunks {
		var embeddingJSON interface{}
		if vectors != nil {
			encoded, err := json.Marshal(vectors[i])
			if err != nil {
				return 0, err
			}
			embeddingJSON = string(encoded)
		}
		res, err := tx.Exec(
			"INSERT INTO chunks (source, seq, content, embedding) VALUES (?, ?, ?, ?)",
			source, i, chunk, embeddingJSON,
		)
		if err != nil {
			return 0, err
		}
		if s.vectorExt && vectors != nil {
			id, err := res.LastInsertId()
			if err != nil {
				return 0, err
			}
			if _, err := tx.Exec(
				"INSERT INTO chunks_vec (rowid, embedding) VALUES (?, ?)",
				id, serializeVector(vectors[i]),
			); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	logging.KnowledgeDebug("ingested %s: %d chunks", source, len(chunks))
	return len(chunks), nil
}

func (s *Store) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := s.engine.EmbedBatch(ctx, chunks[i:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// splitContent slices content into fixed-size chunks by rune count.
// No overlap; boundaries fall wherever the count does.
func splitContent(content string, maxLength int) []string {
	runes := []rune(content)
	var chunks []string
	for i := 0; i < len(runes); i += maxLength {
		end := i + maxLength
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
