// Package payments creates checkout orders and verifies their signatures.
package payments

import "adgen/internal/apperrors"

type Plan struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"` // smallest currency unit
	Currency string `json:"currency"`
}

const PlanPremiumMonthly = "premium_monthly"

var plans = map[string]Plan{
	PlanPremiumMonthly: {Key: PlanPremiumMonthly, Name: "Premium (monthly)", Amount: 49900, Currency: "INR"},
}

func LookupPlan(key string) (Plan, error) {
	p, ok := plans[key]
	if !ok {
		return Plan{}, apperrors.NotFound("plan " + key)
	}
	return p, nil
}
