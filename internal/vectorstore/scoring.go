package vectorstore

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Hybrid blending weights. Vector similarity dominates; the lexical term
// rescues exact-word matches the embedding space smears out.
const (
	hybridVectorWeight  = 0.7
	hybridTextWeight    = 0.3
	overlapJaccardWt    = 0.7
	overlapPartialWt    = 0.3
	hybridOverFetch     = 2
	hybridThresholdBias = 0.5
)

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// tokenize lowercases, splits on non-letter/digit runes and drops stopwords
// and single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || isStopWord(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// TextOverlapScore measures lexical agreement between a query and a chunk:
// 0.7·jaccard + 0.3·partial-match ratio over stopword-filtered tokens.
func TextOverlapScore(query, chunk string) float64 {
	queryTokens := tokenize(query)
	chunkTokens := tokenize(chunk)
	if len(queryTokens) == 0 || len(chunkTokens) == 0 {
		return 0
	}

	querySet := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		querySet[t] = struct{}{}
	}
	chunkSet := make(map[string]struct{}, len(chunkTokens))
	for _, t := range chunkTokens {
		chunkSet[t] = struct{}{}
	}

	var intersection int
	for t := range querySet {
		if _, ok := chunkSet[t]; ok {
			intersection++
		}
	}
	union := len(querySet) + len(chunkSet) - intersection
	jaccard := 0.0
	if union > 0 {
		jaccard = float64(intersection) / float64(union)
	}

	// Partial matches: query tokens contained in some chunk token or vice
	// versa ("Fehlerprüfung" vs "Fehler").
	var partial int
	for q := range querySet {
		for c := range chunkSet {
			if strings.Contains(c, q) || strings.Contains(q, c) {
				partial++
				break
			}
		}
	}
	partialRatio := float64(partial) / float64(len(querySet))

	return overlapJaccardWt*jaccard + overlapPartialWt*partialRatio
}

// HybridScore blends a vector similarity score with the lexical overlap for
// the given query and chunk text.
func HybridScore(vectorScore float64, query, chunkText string) float64 {
	return hybridVectorWeight*vectorScore + hybridTextWeight*TextOverlapScore(query, chunkText)
}

// blendHybrid rescores vector hits with the lexical term, re-sorts and trims
// to topK, dropping hits below minScore.
func blendHybrid(hits []Hit, queryText string, topK int, minScore float64) []Hit {
	blended := make([]Hit, 0, len(hits))
	for _, h := range hits {
		h.Score = HybridScore(h.Score, queryText, h.Payload.ChunkText)
		if h.Score < minScore {
			continue
		}
		blended = append(blended, h)
	}
	sort.SliceStable(blended, func(i, j int) bool {
		return blended[i].Score > blended[j].Score
	})
	if len(blended) > topK {
		blended = blended[:topK]
	}
	return blended
}
