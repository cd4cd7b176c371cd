package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/david/tender-matcher/internal/ingest"
	"github.com/david/tender-matcher/internal/models"
)

// contractorInput normalizes operator-supplied profile fields.
func contractorInput(p models.ContractorProfile) (models.ContractorProfile, string) {
	p.Name = cleanText(p.Name)
	if p.Name == "" {
		return p, "name is required"
	}
	p.VATNumber = strings.ReplaceAll(cleanText(p.VATNumber), " ", "")
	p.OperatingRegions = cleanList(p.OperatingRegions)
	p.OwnedCertifications = cleanList(p.OwnedCertifications)

	certs := make([]models.QualificationCertificate, 0, len(p.QualificationCertificates))
	for _, qc := range p.QualificationCertificates {
		qc.CategoryCode = strings.ToUpper(cleanText(qc.CategoryCode))
		qc.ClassLabel = cleanText(qc.ClassLabel)
		if qc.CategoryCode == "" {
			return p, "certificate category_code is required"
		}
		certs = append(certs, qc)
	}
	p.QualificationCertificates = certs

	r := p.InterestAmountRange
	if r.Min < 0 || r.Max < 0 || (r.Max > 0 && r.Min > r.Max) {
		return p, "invalid interest_amount_range"
	}
	return p, ""
}

func (s *Server) handleListContractors(c echo.Context) error {
	list, err := s.Store.ListContractors(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetContractor(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid contractor id")
	}
	p, err := s.Store.GetContractor(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleCreateContractor(c echo.Context) error {
	var p models.ContractorProfile
	if err := c.Bind(&p); err != nil {
		return badRequest(c, "Invalid request")
	}
	p, problem := contractorInput(p)
	if problem != "" {
		return badRequest(c, problem)
	}
	saved, err := s.Store.CreateContractor(c.Request().Context(), p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, saved)
}

func (s *Server) handleUpdateContractor(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid contractor id")
	}
	var p models.ContractorProfile
	if err := c.Bind(&p); err != nil {
		return badRequest(c, "Invalid request")
	}
	p, problem := contractorInput(p)
	if problem != "" {
		return badRequest(c, problem)
	}
	saved, err := s.Store.UpdateContractor(c.Request().Context(), id, p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) handleDeleteContractor(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid contractor id")
	}
	if err := s.Store.DeleteContractor(c.Request().Context(), id); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type certificateResponse struct {
	Draft   models.CertificateDraft  `json:"draft"`
	Profile models.ContractorProfile `json:"profile"`
}

// handleParseCertificate reads a qualification certificate into a draft
// profile for operator review. Nothing is stored.
func (s *Server) handleParseCertificate(c echo.Context) error {
	u, _, err := readUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	text, err := ingest.ReadText(c.Request().Context(), u)
	if err != nil {
		return s.fail(c, err)
	}
	draft := s.Extractor.ParseCertificate(text)
	return c.JSON(http.StatusOK, certificateResponse{Draft: draft, Profile: draft.Profile()})
}
