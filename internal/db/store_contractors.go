package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/david/tender-matcher/internal/models"
)

const contractorCols = `id, name, vat_number, qualification_certificates, operating_regions,
	owned_certifications, interest_min, interest_max, created_at, updated_at`

func scanContractor(scan func(dest ...any) error) (models.ContractorProfile, error) {
	var p models.ContractorProfile
	var vat *string
	var certsRaw []byte

	err := scan(&p.ID, &p.Name, &vat, &certsRaw, &p.OperatingRegions,
		&p.OwnedCertifications, &p.InterestAmountRange.Min, &p.InterestAmountRange.Max,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if vat != nil {
		p.VATNumber = *vat
	}
	p.QualificationCertificates = []models.QualificationCertificate{}
	if len(certsRaw) > 0 {
		if err := json.Unmarshal(certsRaw, &p.QualificationCertificates); err != nil {
			return p, fmt.Errorf("decode certificates: %w", err)
		}
	}
	return p, nil
}

func contractorArgs(p models.ContractorProfile) ([]any, error) {
	certs := p.QualificationCertificates
	if certs == nil {
		certs = []models.QualificationCertificate{}
	}
	raw, err := json.Marshal(certs)
	if err != nil {
		return nil, fmt.Errorf("encode certificates: %w", err)
	}
	return []any{
		p.Name, nilIfEmpty(p.VATNumber), raw, nonNil(p.OperatingRegions),
		nonNil(p.OwnedCertifications), p.InterestAmountRange.Min, p.InterestAmountRange.Max,
	}, nil
}

func (s *Store) CreateContractor(ctx context.Context, p models.ContractorProfile) (*models.ContractorProfile, error) {
	args, err := contractorArgs(p)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO contractors (name, vat_number, qualification_certificates, operating_regions,
			owned_certifications, interest_min, interest_max)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s`, contractorCols), args...)

	saved, err := scanContractor(row.Scan)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("contractor %s: %w", p.VATNumber, ErrConflict)
		}
		return nil, fmt.Errorf("insert contractor: %w", err)
	}
	return &saved, nil
}

func (s *Store) UpdateContractor(ctx context.Context, id uuid.UUID, p models.ContractorProfile) (*models.ContractorProfile, error) {
	args, err := contractorArgs(p)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE contractors SET
			name = $2, vat_number = $3, qualification_certificates = $4, operating_regions = $5,
			owned_certifications = $6, interest_min = $7, interest_max = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, contractorCols), append([]any{id}, args...)...)

	saved, err := scanContractor(row.Scan)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("contractor %s: %w", p.VATNumber, ErrConflict)
		}
		return nil, notFound(err)
	}
	return &saved, nil
}

func (s *Store) GetContractor(ctx context.Context, id uuid.UUID) (*models.ContractorProfile, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM contractors WHERE id = $1", contractorCols), id)
	p, err := scanContractor(row.Scan)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) ListContractors(ctx context.Context) ([]models.ContractorProfile, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM contractors ORDER BY name, id", contractorCols))
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	out := []models.ContractorProfile{}
	for rows.Next() {
		p, err := scanContractor(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeleteContractor(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM contractors WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contractor %s: %w", id, ErrNotFound)
	}
	return nil
}
