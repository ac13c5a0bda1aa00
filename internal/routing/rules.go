package routing

import (
	"github.com/capitalize-ai/livechat-platform/internal/model"
)

// DefaultRules returns the built-in routing rule table. Each department has a
// high-priority rule for unambiguous phrases and a low-priority rule for
// weaker signals that only add up across several matches. Order is the
// tie-break, so the strong rules come first.
func DefaultRules() []model.RoutingRule {
	return []model.RoutingRule{
		{
			Department: model.DepartmentTechnical,
			Priority:   0.8,
			Keywords: []string{
				"not working", "won't turn", "wont turn", "broken", "crash",
				"error message", "doesn't work", "doesnt work", "stopped working",
				"can't connect", "cant connect", "keeps disconnecting",
			},
		},
		{
			Department: model.DepartmentBilling,
			Priority:   0.8,
			Keywords: []string{
				"charged twice", "overcharged", "billing issue", "payment failed",
				"wrong charge", "double charge", "cancel my subscription",
			},
		},
		{
			Department: model.DepartmentSales,
			Priority:   0.75,
			Keywords: []string{
				"buy", "purchase", "pricing", "quote", "upgrade my plan",
				"book a demo", "new subscription",
			},
		},
		{
			Department: model.DepartmentSupport,
			Priority:   0.75,
			Keywords: []string{
				"order status", "where is my order", "return my", "complaint",
				"cancel my order", "delivery is late", "missing item",
			},
		},
		{
			Department: model.DepartmentTechnical,
			Priority:   0.25,
			Keywords: []string{
				"install", "setup", "configure", "device", "troubleshoot",
				"update", "firmware", "app",
			},
		},
		{
			Department: model.DepartmentBilling,
			Priority:   0.25,
			Keywords: []string{
				"payment", "charge", "invoice", "bill", "subscription", "receipt",
			},
		},
		{
			Department: model.DepartmentSales,
			Priority:   0.25,
			Keywords: []string{
				"price", "plan", "discount", "trial", "offer", "deal",
			},
		},
		{
			Department: model.DepartmentSupport,
			Priority:   0.25,
			Keywords: []string{
				"order", "shipping", "return", "warranty", "exchange",
			},
		},
	}
}
