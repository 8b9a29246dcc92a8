package chunker

import (
	"fmt"
	"unicode/utf8"

	"aura-rag/internal/embedding"
	"aura-rag/internal/models"
)

// Merger joins adjacent chunks whose embeddings are close enough.
type Merger struct {
	Threshold    float64
	MaxChunkSize int
}

// mergeState is the accumulator of the left-to-right fold.
type mergeState struct {
	text      string
	textLen   int
	embedding []float32
	indices   []int
	scores    []float64
}

func newMergeState(i int, text string, emb []float32) mergeState {
	return mergeState{
		text:      text,
		textLen:   utf8.RuneCountInString(text),
		embedding: emb,
		indices:   []int{i},
		scores:    []float64{},
	}
}

func (s mergeState) result() models.MergedChunk {
	return models.MergedChunk{Text: s.text, OriginalIndices: s.indices, SimilarityScores: s.scores}
}

// step folds chunk i into the state, or returns the finished chunk and a fresh
// state when it cannot be merged.
func (m Merger) step(s mergeState, i int, text string, emb []float32) (mergeState, *models.MergedChunk) {
	sim := embedding.CosineSimilarity(s.embedding, emb)
	textLen := utf8.RuneCountInString(text)
	if sim > m.Threshold && s.textLen+1+textLen <= m.MaxChunkSize {
		s.text = s.text + " " + text
		s.textLen += 1 + textLen
		s.embedding = embedding.MeanVector(s.embedding, emb)
		s.indices = append(s.indices, i)
		s.scores = append(s.scores, sim)
		return s, nil
	}
	done := s.result()
	return newMergeState(i, text, emb), &done
}

// Merge runs the greedy merge over chunks and their embeddings, which must be
// the same length.
func (m Merger) Merge(chunks []string, embeddings [][]float32) ([]models.MergedChunk, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("got %d embeddings for %d chunks", len(embeddings), len(chunks))
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	var out []models.MergedChunk
	state := newMergeState(0, chunks[0], embeddings[0])
	for i := 1; i < len(chunks); i++ {
		var done *models.MergedChunk
		state, done = m.step(state, i, chunks[i], embeddings[i])
		if done != nil {
			out = append(out, *done)
		}
	}
	return append(out, state.result()), nil
}
