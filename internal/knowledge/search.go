package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"specter/internal/embedding"
	"specter/internal/logging"
)

// DefaultSearchLimit is how many chunks a search returns when the
// caller does not ask for a specific count.
const DefaultSearchLimit = 3

// Search returns the chunks most relevant to query, best first. With
// an embedding engine it ranks by cosine similarity; without one, or
// when the query cannot be embedded, it degrades to keyword matching.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if s.engine == nil {
		return s.keywordSearch(query, limit)
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		logging.Get(logging.CategoryKnowledge).Warn("query embedding failed, falling back to keyword search: %v", err)
		return s.keywordSearch(query, limit)
	}

	if s.vectorExt {
		chunks, err := s.annSearch(queryVec, limit)
		if err == nil {
			return chunks, nil
		}
		logging.KnowledgeDebug("ANN search failed, scanning instead: %v", err)
	}
	return s.scanSearch(queryVec, limit)
}

// annSearch ranks through the vec0 index table.
func (s *Store) annSearch(queryVec []float32, limit int) ([]Chunk, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.source, c.seq, c.content, c.created_at,
		       vec_distance_cosine(v.embedding, ?) AS distance
		FROM chunks_vec v
		JOIN chunks c ON c.id = v.rowid
		ORDER BY distance ASC
		LIMIT ?`, serializeVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var createdAt sql.NullTime
		var distance float64
		if err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.Seq, &chunk.Content, &createdAt, &distance); err != nil {
			continue
		}
		if createdAt.Valid {
			chunk.CreatedAt = createdAt.Time
		}
		chunk.Similarity = 1.0 - distance
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// scanSearch loads every embedded chunk and ranks in Go. Fine at
// knowledge-base scale; the ANN path exists for larger corpora.
func (s *Store) scanSearch(queryVec []float32, limit int) ([]Chunk, error) {
	rows, err := s.db.Query(`
		SELECT id, source, seq, content, embedding, created_at
		FROM chunks
		WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var createdAt sql.NullTime
		var encoded string
		if err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.Seq, &chunk.Content, &encoded, &createdAt); err != nil {
			continue
		}
		if createdAt.Valid {
			chunk.CreatedAt = createdAt.Time
		}
		var vec []float32
		if err := json.Unmarshal([]byte(encoded), &vec); err != nil {
			logging.KnowledgeDebug("chunk %d has an unreadable embedding: %v", chunk.ID, err)
			continue
		}
		sim, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}
		chunk.Similarity = sim
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Similarity > chunks[j].Similarity
	})
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

// keywordSearch matches chunk content against query keywords.
func (s *Store) keywordSearch(query string, limit int) ([]Chunk, error) {
	keywords := extractKeywords(query, 4)
	if len(keywords) == 0 {
		return nil, nil
	}

	var conditions []string
	var args []interface{}
	for _, kw := range keywords {
		conditions = append(conditions, "LOWER(content) LIKE ?")
		args = append(args, "%"+kw+"%")
	}
	querySQL := fmt.Sprintf(`
		SELECT id, source, seq, content, created_at
		FROM chunks
		WHERE %s
		ORDER BY created_at DESC
		LIMIT ?`, strings.Join(conditions, " OR "))
	args = append(args, limit*3)

	rows, err := s.db.Query(querySQL, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var createdAt sql.NullTime
		if err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.Seq, &chunk.Content, &createdAt); err != nil {
			continue
		}
		if createdAt.Valid {
			chunk.CreatedAt = createdAt.Time
		}
		chunk.Similarity = lexicalScore(chunk.Content, keywords)
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Similarity > chunks[j].Similarity
	})
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

// extractKeywords pulls up to max search terms out of free text,
// skipping short filler words.
func extractKeywords(text string, max int) []string {
	if max <= 0 {
		max = 4
	}
	words := strings.Fields(strings.ToLower(text))
	var keywords []string
	for _, word := range words {
		word = strings.Trim(word, ".,:;()[]{}<>\"'")
		if len(word) < 4 {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) >= max {
			break
		}
	}
	return keywords
}

// lexicalScore is the fraction of keywords present in text.
func lexicalScore(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	textLower := strings.ToLower(text)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(textLower, kw) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}
