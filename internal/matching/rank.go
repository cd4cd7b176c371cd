package matching

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/david/tender-matcher/internal/models"
	"github.com/david/tender-matcher/internal/policy"
)

type RankedMatch struct {
	Contractor models.ContractorProfile `json:"contractor"`
	Score      models.MatchScore        `json:"score"`
}

// Rank scores every contractor against the tender, drops zero scores and
// sorts the rest by total, highest first. Equal totals keep input order
// unless the engine is configured to break ties by name. Any invalid record
// fails the whole ranking.
func (e *Engine) Rank(ctx context.Context, tender models.TenderRecord, contractors []models.ContractorProfile) ([]RankedMatch, error) {
	scores := make([]models.MatchScore, len(contractors))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range contractors {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := e.Score(tender, contractors[i])
			if err != nil {
				return err
			}
			scores[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := make([]RankedMatch, 0, len(contractors))
	for i, s := range scores {
		if s.Total == 0 {
			continue
		}
		ranked = append(ranked, RankedMatch{Contractor: contractors[i], Score: s})
	}

	byName := e.tieBreak == policy.TieBreakName
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score.Total != b.Score.Total {
			return a.Score.Total > b.Score.Total
		}
		if byName {
			return strings.ToLower(a.Contractor.Name) < strings.ToLower(b.Contractor.Name)
		}
		return false
	})
	return ranked, nil
}
