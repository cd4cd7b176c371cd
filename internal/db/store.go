package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/tender-matcher/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type TenderListParams struct {
	Query        string
	Region       []string
	Categories   []string
	MinAmount    float64
	MaxAmount    float64
	EUFunded     *bool
	DeadlineDays int
	SortBy       string // "deadline", "amount_desc" or "newest" (default)
	Limit        int
	Offset       int
}

type TenderListResult struct {
	Tenders []models.Tender `json:"tenders"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

const tenderCols = `id, identifier, identifier_synthetic, secondary_identifier, title, contracting_authority,
	eu_funded, amounts, required_categories, region, province, duration_months,
	procedure_type, award_criterion, required_certifications, cpv_codes, price_revision,
	document_type, confidence_score, deadline_at, source_url, source_run_id::text, created_at, updated_at`

func scanTender(scan func(dest ...any) error) (models.Tender, error) {
	var t models.Tender
	var amountsRaw, categoriesRaw []byte
	var sourceURL *string
	var docType string

	err := scan(
		&t.ID, &t.Identifier, &t.IdentifierSynthetic, &t.SecondaryIdentifier, &t.Title, &t.ContractingAuthority,
		&t.EUFunded, &amountsRaw, &categoriesRaw, &t.Location.Region, &t.Location.Province, &t.DurationMonths,
		&t.ProcedureType, &t.AwardCriterion, &t.RequiredCertifications, &t.CPVCodes, &t.PriceRevision,
		&docType, &t.ConfidenceScore, &t.Deadline, &sourceURL, &t.SourceRunID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}

	t.DocumentType = models.DocumentType(docType)
	if sourceURL != nil {
		t.SourceURL = *sourceURL
	}
	if len(amountsRaw) > 0 {
		if err := json.Unmarshal(amountsRaw, &t.Amounts); err != nil {
			return t, fmt.Errorf("decode amounts: %w", err)
		}
	}
	t.RequiredCategories = []models.CategoryRequirement{}
	if len(categoriesRaw) > 0 {
		if err := json.Unmarshal(categoriesRaw, &t.RequiredCategories); err != nil {
			return t, fmt.Errorf("decode categories: %w", err)
		}
	}
	return t, nil
}

// UpsertTender inserts a tender or refreshes the extracted fields of the
// tender with the same identifier.
func (s *Store) UpsertTender(ctx context.Context, t models.Tender) (*models.Tender, error) {
	amounts, err := json.Marshal(t.Amounts)
	if err != nil {
		return nil, fmt.Errorf("encode amounts: %w", err)
	}
	categories := t.RequiredCategories
	if categories == nil {
		categories = []models.CategoryRequirement{}
	}
	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return nil, fmt.Errorf("encode categories: %w", err)
	}
	codes := make([]string, 0, len(categories))
	for _, c := range categories {
		codes = append(codes, c.Code)
	}

	query := fmt.Sprintf(`
		INSERT INTO tenders (
			identifier, identifier_synthetic, secondary_identifier, title, contracting_authority,
			eu_funded, total_contract_value, amounts, required_categories, category_codes,
			region, province, duration_months, procedure_type, award_criterion,
			required_certifications, cpv_codes, price_revision, document_type, confidence_score,
			deadline_at, source_url, source_run_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23::uuid)
		ON CONFLICT (identifier) DO UPDATE SET
			identifier_synthetic = EXCLUDED.identifier_synthetic,
			secondary_identifier = EXCLUDED.secondary_identifier,
			title = EXCLUDED.title,
			contracting_authority = EXCLUDED.contracting_authority,
			eu_funded = EXCLUDED.eu_funded,
			total_contract_value = EXCLUDED.total_contract_value,
			amounts = EXCLUDED.amounts,
			required_categories = EXCLUDED.required_categories,
			category_codes = EXCLUDED.category_codes,
			region = COALESCE(EXCLUDED.region, tenders.region),
			province = COALESCE(EXCLUDED.province, tenders.province),
			duration_months = EXCLUDED.duration_months,
			procedure_type = EXCLUDED.procedure_type,
			award_criterion = EXCLUDED.award_criterion,
			required_certifications = EXCLUDED.required_certifications,
			cpv_codes = EXCLUDED.cpv_codes,
			price_revision = EXCLUDED.price_revision,
			document_type = EXCLUDED.document_type,
			confidence_score = EXCLUDED.confidence_score,
			deadline_at = COALESCE(EXCLUDED.deadline_at, tenders.deadline_at),
			source_url = COALESCE(EXCLUDED.source_url, tenders.source_url),
			source_run_id = COALESCE(EXCLUDED.source_run_id, tenders.source_run_id),
			updated_at = NOW()
		RETURNING %s`, tenderCols)

	row := s.pool.QueryRow(ctx, query,
		t.Identifier, t.IdentifierSynthetic, t.SecondaryIdentifier, t.Title, t.ContractingAuthority,
		t.EUFunded, t.Amounts.TotalContractValue, amounts, categoriesJSON, codes,
		t.Location.Region, t.Location.Province, t.DurationMonths, t.ProcedureType, t.AwardCriterion,
		nonNil(t.RequiredCertifications), nonNil(t.CPVCodes), t.PriceRevision, string(t.DocumentType), t.ConfidenceScore,
		t.Deadline, nilIfEmpty(t.SourceURL), t.SourceRunID,
	)
	saved, err := scanTender(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("upsert tender %s: %w", t.Identifier, err)
	}
	return &saved, nil
}

func (s *Store) GetTender(ctx context.Context, id uuid.UUID) (*models.Tender, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM tenders WHERE id = $1", tenderCols), id)
	t, err := scanTender(row.Scan)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) GetTenderByIdentifier(ctx context.Context, identifier string) (*models.Tender, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM tenders WHERE identifier = $1", tenderCols), identifier)
	t, err := scanTender(row.Scan)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// buildTenderWhere returns the WHERE clause, its arguments and the next
// free placeholder index.
func buildTenderWhere(params TenderListParams) (string, []any, int) {
	where := "WHERE 1=1"
	var args []any
	argIdx := 1

	if q := strings.TrimSpace(params.Query); q != "" {
		where += fmt.Sprintf(" AND (title ILIKE '%%' || $%d || '%%' OR contracting_authority ILIKE '%%' || $%d || '%%' OR identifier = UPPER($%d))", argIdx, argIdx, argIdx)
		args = append(args, q)
		argIdx++
	}
	if regions := sanitizeStringSlice(params.Region); len(regions) > 0 {
		where += fmt.Sprintf(" AND region = ANY($%d)", argIdx)
		args = append(args, regions)
		argIdx++
	}
	if codes := sanitizeStringSlice(params.Categories); len(codes) > 0 {
		for i := range codes {
			codes[i] = strings.ToUpper(codes[i])
		}
		where += fmt.Sprintf(" AND category_codes && $%d", argIdx)
		args = append(args, codes)
		argIdx++
	}
	if params.MinAmount > 0 {
		where += fmt.Sprintf(" AND total_contract_value >= $%d", argIdx)
		args = append(args, params.MinAmount)
		argIdx++
	}
	if params.MaxAmount > 0 {
		where += fmt.Sprintf(" AND total_contract_value <= $%d", argIdx)
		args = append(args, params.MaxAmount)
		argIdx++
	}
	if params.EUFunded != nil {
		where += fmt.Sprintf(" AND eu_funded = $%d", argIdx)
		args = append(args, *params.EUFunded)
		argIdx++
	}
	if params.DeadlineDays > 0 {
		where += fmt.Sprintf(" AND deadline_at >= NOW() AND deadline_at <= NOW() + make_interval(days => $%d::int)", argIdx)
		args = append(args, params.DeadlineDays)
		argIdx++
	}
	return where, args, argIdx
}

func tenderOrder(sortBy string) string {
	switch sortBy {
	case "deadline":
		return " ORDER BY deadline_at ASC NULLS LAST, created_at DESC"
	case "amount_desc":
		return " ORDER BY total_contract_value DESC NULLS LAST, created_at DESC"
	default:
		return " ORDER BY created_at DESC"
	}
}

func (s *Store) ListTenders(ctx context.Context, params TenderListParams) (*TenderListResult, error) {
	where, args, argIdx := buildTenderWhere(params)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenders "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM tenders %s%s LIMIT $%d OFFSET $%d",
		tenderCols, where, tenderOrder(params.SortBy), argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	tenders := []models.Tender{}
	for rows.Next() {
		t, err := scanTender(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		tenders = append(tenders, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &TenderListResult{Tenders: tenders, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

// UpdateEnrichment applies caller-supplied region, province and deadline
// to a stored tender. Nil fields are left unchanged.
func (s *Store) UpdateEnrichment(ctx context.Context, id uuid.UUID, e models.TenderEnrichment) (*models.Tender, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE tenders SET
			region = COALESCE($2, region),
			province = COALESCE($3, province),
			deadline_at = COALESCE($4, deadline_at),
			updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, tenderCols),
		id, e.Region, e.Province, e.Deadline)
	t, err := scanTender(row.Scan)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

type Stats struct {
	Tenders        int            `json:"tenders"`
	EUFunded       int            `json:"eu_funded"`
	OpenDeadlines  int            `json:"open_deadlines"`
	Synthetic      int            `json:"synthetic_identifiers"`
	Contractors    int            `json:"contractors"`
	ByDocumentType map[string]int `json:"by_document_type"`
}

func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByDocumentType: map[string]int{}}
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE eu_funded),
			COUNT(*) FILTER (WHERE deadline_at > NOW()),
			COUNT(*) FILTER (WHERE identifier_synthetic),
			(SELECT COUNT(*) FROM contractors)
		FROM tenders`).Scan(&stats.Tenders, &stats.EUFunded, &stats.OpenDeadlines, &stats.Synthetic, &stats.Contractors)
	if err != nil {
		return nil, fmt.Errorf("stats failed: %w", err)
	}

	rows, err := s.pool.Query(ctx, "SELECT document_type, COUNT(*) FROM tenders GROUP BY document_type")
	if err != nil {
		return nil, fmt.Errorf("stats failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var docType string
		var count int
		if err := rows.Scan(&docType, &count); err != nil {
			return nil, err
		}
		stats.ByDocumentType[docType] = count
	}
	return stats, rows.Err()
}

// Aggregation represents a single facet count.
type Aggregation struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type AggregationResult struct {
	Regions    []Aggregation `json:"regions"`
	Categories []Aggregation `json:"categories"`
}

// GetAggregations returns region and category facet counts.
func (s *Store) GetAggregations(ctx context.Context) (*AggregationResult, error) {
	regions, err := s.facet(ctx, `
		SELECT region, COUNT(*) FROM tenders
		WHERE region IS NOT NULL
		GROUP BY region ORDER BY COUNT(*) DESC, region`)
	if err != nil {
		return nil, err
	}
	categories, err := s.facet(ctx, `
		SELECT code, COUNT(*) FROM tenders, UNNEST(category_codes) AS code
		GROUP BY code ORDER BY COUNT(*) DESC, code`)
	if err != nil {
		return nil, err
	}
	return &AggregationResult{Regions: regions, Categories: categories}, nil
}

func (s *Store) facet(ctx context.Context, query string) ([]Aggregation, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("aggregation failed: %w", err)
	}
	defer rows.Close()

	out := []Aggregation{}
	for rows.Next() {
		var a Aggregation
		if err := rows.Scan(&a.Value, &a.Count); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func sanitizeStringSlice(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// qualified prefixes each column of a column list with a table name.
func qualified(table, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = table + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
