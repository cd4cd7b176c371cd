package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/david/tender-matcher/internal/matching"
	"github.com/david/tender-matcher/internal/models"
)

type pairRequest struct {
	Tender     models.TenderRecord      `json:"tender"`
	Contractor models.ContractorProfile `json:"contractor"`
}

type rankRequest struct {
	Tender       models.TenderRecord        `json:"tender"`
	Contractors  []models.ContractorProfile `json:"contractors"`
	EligibleOnly bool                       `json:"eligible_only"`
}

func (s *Server) handleScore(c echo.Context) error {
	var req pairRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	score, err := s.Engine.Score(req.Tender, req.Contractor)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, score)
}

func (s *Server) handleRank(c echo.Context) error {
	var req rankRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	ranked, err := s.Engine.Rank(c.Request().Context(), req.Tender, req.Contractors)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, filterEligible(ranked, req.EligibleOnly))
}

func (s *Server) handleAdvice(c echo.Context) error {
	var req pairRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	report, err := s.Advisor.Report(req.Tender, req.Contractor)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// handleTenderMatches ranks every stored contractor against a stored tender.
func (s *Server) handleTenderMatches(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid tender id")
	}
	ctx := c.Request().Context()
	tender, err := s.Store.GetTender(ctx, id)
	if err != nil {
		return s.fail(c, err)
	}
	contractors, err := s.Store.ListContractors(ctx)
	if err != nil {
		return s.fail(c, err)
	}
	ranked, err := s.Engine.Rank(ctx, tender.TenderRecord, contractors)
	if err != nil {
		return s.fail(c, err)
	}

	ranked = filterEligible(ranked, c.QueryParam("eligible_only") == "true")
	if limit := queryInt(c, "limit", 0, 1, 1000); limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return c.JSON(http.StatusOK, ranked)
}

func (s *Server) loadPair(c echo.Context) (*models.Tender, *models.ContractorProfile, error) {
	tenderID, ok := parseID(c, "id")
	if !ok {
		return nil, nil, badRequest(c, "invalid tender id")
	}
	contractorID, ok := parseID(c, "contractor_id")
	if !ok {
		return nil, nil, badRequest(c, "invalid contractor id")
	}
	ctx := c.Request().Context()
	tender, err := s.Store.GetTender(ctx, tenderID)
	if err != nil {
		return nil, nil, s.fail(c, err)
	}
	contractor, err := s.Store.GetContractor(ctx, contractorID)
	if err != nil {
		return nil, nil, s.fail(c, err)
	}
	return tender, contractor, nil
}

func (s *Server) handleTenderScore(c echo.Context) error {
	tender, contractor, err := s.loadPair(c)
	if tender == nil || contractor == nil {
		return err
	}
	score, err := s.Engine.Score(tender.TenderRecord, *contractor)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, score)
}

func (s *Server) handleTenderAdvice(c echo.Context) error {
	tender, contractor, err := s.loadPair(c)
	if tender == nil || contractor == nil {
		return err
	}
	report, err := s.Advisor.Report(tender.TenderRecord, *contractor)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func filterEligible(ranked []matching.RankedMatch, eligibleOnly bool) []matching.RankedMatch {
	if !eligibleOnly {
		return ranked
	}
	out := make([]matching.RankedMatch, 0, len(ranked))
	for _, r := range ranked {
		if r.Score.Eligible {
			out = append(out, r)
		}
	}
	return out
}
