package chat

import (
	"sort"

	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/storage/models"
	"github.com/kbchat/backend/pkg/logger"
	"github.com/kbchat/backend/pkg/vectormath"
)

// Match is one scored comparison between the query and a stored pair. It is
// a computation artifact, never persisted.
type Match struct {
	Pair  *models.QAPair
	Score float64
}

// RankPairs scores every embedded pair against the query embedding and
// returns the top matches in descending score order. The scan is a full
// brute-force pass; ties keep the original corpus order, so repeated calls
// over the same corpus always produce the same ordering. Pairs without an
// embedding, and pairs embedded in a different space, are skipped.
func RankPairs(queryEmbedding []float32, pairs []models.QAPair, limit int) []Match {
	matches := make([]Match, 0, len(pairs))

	for i := range pairs {
		if len(pairs[i].Embedding) == 0 {
			continue
		}

		score, err := vectormath.CosineSimilarity(queryEmbedding, pairs[i].Embedding)
		if err != nil {
			logger.Warn("Skipping pair with incompatible embedding",
				zap.String("pair_id", pairs[i].ID),
				zap.Error(err),
			)
			continue
		}

		matches = append(matches, Match{Pair: &pairs[i], Score: score})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return matches
}
