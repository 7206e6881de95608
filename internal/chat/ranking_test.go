package chat

import (
	"reflect"
	"testing"

	"github.com/kbchat/backend/internal/storage/models"
)

func TestRankPairsOrderingAndTies(t *testing.T) {
	pairs := []models.QAPair{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{0, 1}},
		{ID: "c", Embedding: []float32{1, 0}},
	}

	matches := RankPairs([]float32{1, 0}, pairs, 0)
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}

	// a and c tie at 1.0; corpus order decides.
	wantOrder := []string{"a", "c", "b"}
	for i, want := range wantOrder {
		if matches[i].Pair.ID != want {
			t.Errorf("matches[%d] = %q, want %q", i, matches[i].Pair.ID, want)
		}
	}
	if matches[0].Score < matches[1].Score || matches[1].Score < matches[2].Score {
		t.Errorf("scores not descending: %v %v %v", matches[0].Score, matches[1].Score, matches[2].Score)
	}
}

func TestRankPairsSkipsUnusablePairs(t *testing.T) {
	pairs := []models.QAPair{
		{ID: "no-embedding"},
		{ID: "wrong-dims", Embedding: []float32{1, 0, 0}},
		{ID: "ok", Embedding: []float32{1, 0}},
	}

	matches := RankPairs([]float32{1, 0}, pairs, 0)
	if len(matches) != 1 || matches[0].Pair.ID != "ok" {
		t.Fatalf("matches = %+v, want only the compatible pair", matches)
	}
}

func TestRankPairsLimit(t *testing.T) {
	var pairs []models.QAPair
	for i := 0; i < 7; i++ {
		pairs = append(pairs, models.QAPair{ID: string(rune('a' + i)), Embedding: []float32{1, 0}})
	}

	matches := RankPairs([]float32{1, 0}, pairs, 5)
	if len(matches) != 5 {
		t.Fatalf("got %d matches, want 5", len(matches))
	}
}

func TestRankPairsDeterminism(t *testing.T) {
	pairs := []models.QAPair{
		{ID: "a", Embedding: []float32{0.8, 0.6}},
		{ID: "b", Embedding: []float32{0.6, 0.8}},
		{ID: "c", Embedding: []float32{0, 1}},
	}
	query := []float32{1, 0}

	first := RankPairs(query, pairs, 0)
	second := RankPairs(query, pairs, 0)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated ranking differs:\n%+v\n%+v", first, second)
	}
}
