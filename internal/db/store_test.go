package db

import (
	"context"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/david/tender-matcher/internal/models"
)

func TestBuildTenderWhere(t *testing.T) {
	eu := true
	params := TenderListParams{
		Query:        " scuola ",
		Region:       []string{"Lombardia", " ", "Veneto"},
		Categories:   []string{"og1", "OS30"},
		MinAmount:    150000,
		EUFunded:     &eu,
		DeadlineDays: 30,
	}

	where, args, next := buildTenderWhere(params)

	mustContain := []string{
		"title ILIKE '%' || $1 || '%'",
		"identifier = UPPER($1)",
		"region = ANY($2)",
		"category_codes && $3",
		"total_contract_value >= $4",
		"eu_funded = $5",
		"deadline_at <= NOW() + make_interval(days => $6::int)",
	}
	for _, token := range mustContain {
		if !strings.Contains(where, token) {
			t.Fatalf("where clause missing %q: %s", token, where)
		}
	}
	if strings.Contains(where, "total_contract_value <=") {
		t.Fatalf("max amount filter should be absent: %s", where)
	}

	want := []any{"scuola", []string{"Lombardia", "Veneto"}, []string{"OG1", "OS30"}, 150000.0, true, 30}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %#v, want %#v", args, want)
	}
	if next != 7 {
		t.Fatalf("next placeholder = %d, want 7", next)
	}
	if params.Categories[0] != "og1" {
		t.Fatal("caller slice was modified")
	}
}

func TestBuildTenderWhereEmpty(t *testing.T) {
	where, args, next := buildTenderWhere(TenderListParams{Region: []string{""}})
	if where != "WHERE 1=1" || len(args) != 0 || next != 1 {
		t.Fatalf("unexpected clause %q args=%v next=%d", where, args, next)
	}
}

func TestTenderOrder(t *testing.T) {
	tests := map[string]string{
		"deadline":    "deadline_at ASC NULLS LAST",
		"amount_desc": "total_contract_value DESC NULLS LAST",
		"":            "ORDER BY created_at DESC",
		"bogus":       "ORDER BY created_at DESC",
	}
	for sortBy, want := range tests {
		if got := tenderOrder(sortBy); !strings.Contains(got, want) {
			t.Errorf("tenderOrder(%q) = %q, want it to contain %q", sortBy, got, want)
		}
	}
}

func TestQualified(t *testing.T) {
	got := qualified("t", "id, title,\n\tsource_run_id::text")
	if got != "t.id, t.title, t.source_run_id::text" {
		t.Fatalf("qualified = %q", got)
	}
}

// TestStoreRoundTrip runs against a real database when TEST_DATABASE_URL is set.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	t.Setenv("DATABASE_URL", dsn)

	ctx := context.Background()
	pool, err := Connect(ctx)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if err := ApplyMigrations(ctx, pool, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := NewStore(pool)

	runID, err := store.StartRun(ctx, "store_test")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	identifier := "ZZTEST0001"
	t.Cleanup(func() {
		pool.Exec(context.Background(), "DELETE FROM tenders WHERE identifier = $1", identifier)
	})

	rec := models.TenderRecord{
		Identifier:     identifier,
		Title:          models.StringPtr("Manutenzione strade"),
		Amounts:        models.Amounts{TotalContractValue: models.FloatPtr(250000)},
		ProcedureType:  "open",
		AwardCriterion: "lowest_price",
		DocumentType:   models.DocumentTextual,
		RequiredCategories: []models.CategoryRequirement{
			{Code: "OG3", RequiredClass: models.StringPtr("II"), IsMain: true},
		},
	}
	saved, err := store.UpsertTender(ctx, models.Tender{TenderRecord: rec, SourceRunID: &runID})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if saved.SourceRunID == nil || *saved.SourceRunID != runID {
		t.Fatalf("run id not stored: %v", saved.SourceRunID)
	}

	got, err := store.GetTender(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.RequiredCategories) != 1 || got.RequiredCategories[0].Code != "OG3" {
		t.Fatalf("categories not round-tripped: %+v", got.RequiredCategories)
	}

	list, err := store.ListTenders(ctx, TenderListParams{Categories: []string{"og3"}, Query: identifier, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("expected one listed tender, got %d", list.Total)
	}
}
