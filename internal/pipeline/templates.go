package pipeline

import (
	"fmt"

	"github.com/datadesk/retail-copilot/internal/domain"
)

// Intent names for the supported analytic templates.
const (
	IntentTopProducts     = "top_products_by_revenue"
	IntentAOVInPeriod     = "aov_in_period"
	IntentCategoryRevenue = "category_revenue_in_period"
	IntentTopCategoryQty  = "top_category_by_quantity"
	IntentTopCustomer     = "top_customer_by_margin"

	// IntentUnsupported marks a question no template could serve.
	IntentUnsupported = "unsupported"
)

// need names a parameter a template cannot generate without. A template
// whose needs are not all bound is disqualified, falling through to the
// next entry in priority order.
type need string

const (
	needRange    need = "date_range"
	needCategory need = "category"
)

// trigger matches when either every keyword appears in the question or
// the planner's KPI hint equals kpi.
type trigger struct {
	all []string
	kpi string
}

// buildInput carries the bound parameters into a template's builder.
type buildInput struct {
	Range     *domain.DateRange
	Category  string
	TopN      int
	CostRatio float64
}

// template is one entry of the fixed intent registry.
type template struct {
	intent   string
	triggers []trigger
	needs    []need
	build    func(buildInput) string
}

// matches reports whether any trigger fires for the question/KPI pair.
func (t *template) matches(lowered, kpi string) bool {
	for _, tr := range t.triggers {
		if len(tr.all) > 0 && containsAll(lowered, tr.all) {
			return true
		}
		if tr.kpi != "" && kpi != "" && tr.kpi == kpi {
			return true
		}
	}
	return false
}

// bindable reports whether every required parameter is present.
func (t *template) bindable(in buildInput) bool {
	for _, n := range t.needs {
		switch n {
		case needRange:
			if in.Range == nil {
				return false
			}
		case needCategory:
			if in.Category == "" {
				return false
			}
		}
	}
	return true
}

// registry is the fixed intent template catalogue, in priority order.
// Initialized once at process start and read-only thereafter. Every
// template references only parameters it declares as required or that
// it can omit cleanly.
var registry = []template{
	{
		intent: IntentTopProducts,
		triggers: []trigger{
			{all: []string{"top", "product", "revenue"}},
			{all: []string{"top 3 products"}},
		},
		build: buildTopProducts,
	},
	{
		intent: IntentAOVInPeriod,
		triggers: []trigger{
			{all: []string{"average order value"}},
			{all: []string{"aov"}},
			{kpi: domain.KPIAOV},
		},
		needs: []need{needRange},
		build: buildAOV,
	},
	{
		intent: IntentCategoryRevenue,
		triggers: []trigger{
			{all: []string{"revenue"}},
			{kpi: domain.KPIRevenue},
		},
		needs: []need{needCategory},
		build: buildCategoryRevenue,
	},
	{
		intent: IntentTopCategoryQty,
		triggers: []trigger{
			{all: []string{"category", "quantity"}},
			{all: []string{"highest total quantity"}},
			{kpi: domain.KPIQuantity},
		},
		build: buildTopCategoryQty,
	},
	{
		intent: IntentTopCustomer,
		triggers: []trigger{
			{all: []string{"customer", "margin"}},
			{kpi: domain.KPIMargin},
		},
		needs: []need{needRange},
		build: buildTopCustomer,
	},
}

// Top products by all-time revenue, no filters.
func buildTopProducts(in buildInput) string {
	return fmt.Sprintf(
		`SELECT p.ProductName AS product, ROUND(SUM(od.UnitPrice * od.Quantity * (1 - od.Discount)), 2) AS revenue `+
			`FROM "Order Details" od `+
			`JOIN Products p ON p.ProductID = od.ProductID `+
			`GROUP BY p.ProductID `+
			`ORDER BY revenue DESC LIMIT %d;`, in.TopN)
}

// Average order value over a date range.
func buildAOV(in buildInput) string {
	return fmt.Sprintf(
		`SELECT ROUND(SUM(od.UnitPrice * od.Quantity * (1 - od.Discount)) * 1.0 / NULLIF(COUNT(DISTINCT o.OrderID), 0), 2) AS aov `+
			`FROM "Order Details" od `+
			`JOIN Orders o ON o.OrderID = od.OrderID `+
			`WHERE o.OrderDate BETWEEN '%s' AND '%s';`, in.Range.Start, in.Range.End)
}

// Total revenue for one category, optionally bounded by a date range.
func buildCategoryRevenue(in buildInput) string {
	q := fmt.Sprintf(
		`SELECT ROUND(SUM(od.UnitPrice * od.Quantity * (1 - od.Discount)), 2) AS revenue `+
			`FROM "Order Details" od `+
			`JOIN Orders o ON o.OrderID = od.OrderID `+
			`JOIN Products p ON p.ProductID = od.ProductID `+
			`JOIN Categories c ON c.CategoryID = p.CategoryID `+
			`WHERE c.CategoryName = '%s'`, escapeLiteral(in.Category))
	if in.Range != nil {
		q += fmt.Sprintf(` AND o.OrderDate BETWEEN '%s' AND '%s'`, in.Range.Start, in.Range.End)
	}
	return q + ";"
}

// Top category by total quantity sold, optionally within a date range.
func buildTopCategoryQty(in buildInput) string {
	q := `SELECT c.CategoryName AS category, SUM(od.Quantity) AS quantity ` +
		`FROM "Order Details" od ` +
		`JOIN Orders o ON o.OrderID = od.OrderID ` +
		`JOIN Products p ON p.ProductID = od.ProductID ` +
		`JOIN Categories c ON c.CategoryID = p.CategoryID`
	if in.Range != nil {
		q += fmt.Sprintf(` WHERE o.OrderDate BETWEEN '%s' AND '%s'`, in.Range.Start, in.Range.End)
	}
	return q + ` GROUP BY c.CategoryID ORDER BY quantity DESC LIMIT 1;`
}

// Top customer by gross margin in a period. The schema has no cost
// column, so margin uses the documented approximation
// cost = CostRatio * UnitPrice.
func buildTopCustomer(in buildInput) string {
	return fmt.Sprintf(
		`SELECT cu.CompanyName AS customer, ROUND(SUM((od.UnitPrice * %.2f) * od.Quantity * (1 - od.Discount)), 2) AS margin `+
			`FROM "Order Details" od `+
			`JOIN Orders o ON o.OrderID = od.OrderID `+
			`JOIN Customers cu ON cu.CustomerID = o.CustomerID `+
			`WHERE o.OrderDate BETWEEN '%s' AND '%s' `+
			`GROUP BY cu.CustomerID `+
			`ORDER BY margin DESC LIMIT 1;`, 1-in.CostRatio, in.Range.Start, in.Range.End)
}

// escapeLiteral doubles single quotes inside a SQL string literal.
func escapeLiteral(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
