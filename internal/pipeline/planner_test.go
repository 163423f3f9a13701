package pipeline

import (
	"reflect"
	"testing"

	"github.com/datadesk/retail-copilot/internal/domain"
	"github.com/datadesk/retail-copilot/internal/vocab"
)

func TestBuildPlanDatePrecedence(t *testing.T) {
	v := vocab.Default()

	tests := []struct {
		name     string
		question string
		evidence []domain.Evidence
		want     *domain.DateRange
	}{
		{
			name:     "alias wins over explicit dates",
			question: "Revenue during Summer Beverages 1997 from 2015-01-01 to 2015-12-31?",
			want:     &domain.DateRange{Start: "2013-06-01", End: "2013-06-30"},
		},
		{
			name:     "specific alias beats bare year",
			question: "Margin during Winter Classics 1997?",
			want:     &domain.DateRange{Start: "2017-12-01", End: "2017-12-31"},
		},
		{
			name:     "bare year alias",
			question: "Which customer had the highest margin in 1997?",
			want:     &domain.DateRange{Start: "2017-01-01", End: "2017-12-31"},
		},
		{
			name:     "explicit range in question",
			question: "Revenue from 2016-03-01 to 2016-03-31?",
			want:     &domain.DateRange{Start: "2016-03-01", End: "2016-03-31"},
		},
		{
			name:     "evidence dates as fallback",
			question: "Revenue during the spring promo?",
			evidence: []domain.Evidence{
				{ChunkID: "promo::chunk0", Text: "The spring promo ran 2016-04-01 until 2016-04-15."},
			},
			want: &domain.DateRange{Start: "2016-04-01", End: "2016-04-15"},
		},
		{
			name:     "single evidence date collapses to one day",
			question: "Sales around the launch?",
			evidence: []domain.Evidence{
				{ChunkID: "launch::chunk0", Text: "The launch happened on 2016-05-10."},
			},
			want: &domain.DateRange{Start: "2016-05-10", End: "2016-05-10"},
		},
		{
			name:     "no dates anywhere",
			question: "Top products by revenue?",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := BuildPlan(tt.question, tt.evidence, v)
			if !reflect.DeepEqual(plan.Range, tt.want) {
				t.Fatalf("Range = %+v, want %+v", plan.Range, tt.want)
			}
		})
	}
}

func TestBuildPlanCategoriesAndKPI(t *testing.T) {
	v := vocab.Default()

	plan := BuildPlan(
		"Total revenue for Beverages during summer 1997?",
		[]domain.Evidence{{ChunkID: "kb::chunk0", Text: "The campaign focused on Condiments too."}},
		v,
	)

	wantCats := []string{"Beverages", "Condiments"}
	if !reflect.DeepEqual(plan.Categories, wantCats) {
		t.Fatalf("Categories = %v, want %v", plan.Categories, wantCats)
	}
	if plan.KPI != domain.KPIRevenue {
		t.Fatalf("KPI = %q, want %q", plan.KPI, domain.KPIRevenue)
	}
}

func TestBuildPlanKPIFromQuestionOnly(t *testing.T) {
	v := vocab.Default()

	// Evidence mentions a KPI phrase but the question does not; the KPI
	// hint must come from the question alone.
	plan := BuildPlan(
		"What happened during summer 1997?",
		[]domain.Evidence{{ChunkID: "kb::chunk0", Text: "Average order value rose sharply."}},
		v,
	)
	if plan.KPI != "" {
		t.Fatalf("KPI = %q, want empty", plan.KPI)
	}
}
