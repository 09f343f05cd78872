// Package score converts rank positions into weighted visibility scores and
// competitive gaps.
//
//	score = sum(platform_weight * position_score)
//
// Platform weights: ChatGPT 0.40, Perplexity 0.35, Google AI 0.25.
// Position scores: 1->100, 2->75, 3->50, 4->30, 5->15, 0->0.
package score

import (
	"math"

	"github.com/leapunion/visibility/pkg/model"
)

// PlatformWeights holds each platform's contribution to the weighted score.
// Unknown platforms contribute 0.
var PlatformWeights = map[model.Platform]float64{
	model.PlatformChatGPT:    0.40,
	model.PlatformPerplexity: 0.35,
	model.PlatformGoogleAI:   0.25,
}

// PositionScores maps a rank position to its base score. Unknown positions
// contribute 0.
var PositionScores = map[int]float64{
	1: 100,
	2: 75,
	3: 50,
	4: 30,
	5: 15,
	0: 0,
}

// PlatformRanking is a single brand's rank on one platform.
type PlatformRanking struct {
	Platform     model.Platform
	RankPosition int
}

// Visibility computes the weighted visibility score for one brand on one
// query from its per-platform rankings, rounded to 2 decimals.
func Visibility(rankings []PlatformRanking) float64 {
	if len(rankings) == 0 {
		return 0.0
	}

	total := 0.0
	for _, r := range rankings {
		total += PlatformWeights[r.Platform] * PositionScores[r.RankPosition]
	}
	return round2(total)
}

// CompetitiveGap computes the primary brand's lead over its best competitor.
// With no competitors the gap equals the primary score. Positive means the
// primary brand leads.
func CompetitiveGap(primaryScore float64, competitorScores map[string]float64) float64 {
	if len(competitorScores) == 0 {
		return round2(primaryScore)
	}

	best := math.Inf(-1)
	for _, s := range competitorScores {
		if s > best {
			best = s
		}
	}
	return round2(primaryScore - best)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
