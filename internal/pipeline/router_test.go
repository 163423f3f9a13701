package pipeline

import (
	"testing"

	"github.com/datadesk/retail-copilot/internal/domain"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     domain.Mode
	}{
		{
			name:     "return policy is retrieval only",
			question: "What is the return policy for beverages?",
			want:     domain.ModeRAG,
		},
		{
			name:     "return window phrasing",
			question: "How long is the return window for unopened beverages?",
			want:     domain.ModeRAG,
		},
		{
			name:     "top products is pure sql",
			question: "Top 3 products by revenue all time.",
			want:     domain.ModeSQL,
		},
		{
			name:     "named period needs evidence first",
			question: "Total revenue during Summer Beverages 1997?",
			want:     domain.ModeHybrid,
		},
		{
			name:     "aov during campaign",
			question: "What was the AOV during Winter Classics 1997?",
			want:     domain.ModeHybrid,
		},
		{
			name:     "margin by customer",
			question: "Which customer had the highest margin in 1997?",
			want:     domain.ModeHybrid,
		},
		{
			name:     "policy plus aggregate is hybrid",
			question: "According to the return policy, what is the average order value for returned items?",
			want:     domain.ModeHybrid,
		},
		{
			name:     "aggregate with year is hybrid",
			question: "Total quantity sold in 2016?",
			want:     domain.ModeHybrid,
		},
		{
			name:     "aggregate without period is sql",
			question: "Total revenue for Condiments?",
			want:     domain.ModeSQL,
		},
		{
			name:     "unknown question falls back to retrieval",
			question: "Tell me about the loyalty program.",
			want:     domain.ModeRAG,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.question); got != tt.want {
				t.Fatalf("Route(%q) = %q, want %q", tt.question, got, tt.want)
			}
		})
	}
}
