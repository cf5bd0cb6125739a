package billing

import (
	"fmt"
	"strings"
	"sync"
)

// TariffPlan describes a named rate category with a fixed per-unit price.
type TariffPlan struct {
	// Key is the unique lower-case identifier (e.g. "domestic").
	Key string `json:"key"`

	// Name is the display name of the plan.
	Name string `json:"name"`

	// RatePerUnit is the price charged per unit consumed.
	RatePerUnit float64 `json:"rate_per_unit"`
}

var (
	plansMu sync.RWMutex
	plans   = map[string]TariffPlan{
		"domestic":   {Key: "domestic", Name: "Domestic", RatePerUnit: 5},
		"commercial": {Key: "commercial", Name: "Commercial", RatePerUnit: 10},
		"industrial": {Key: "industrial", Name: "Industrial", RatePerUnit: 15},
	}
)

// RegisterPlan registers or replaces a tariff plan. The three standard plans
// are built in; this exists so deployments can add region-specific plans.
func RegisterPlan(p TariffPlan) {
	if p.Key == "" {
		panic("billing: RegisterPlan called with empty key")
	}
	plansMu.Lock()
	defer plansMu.Unlock()
	plans[strings.ToLower(p.Key)] = p
}

// GetPlan looks a plan up by name, case-insensitively.
func GetPlan(name string) (TariffPlan, bool) {
	plansMu.RLock()
	defer plansMu.RUnlock()
	p, ok := plans[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// RateFor returns the per-unit rate for a tariff plan name.
func RateFor(name string) (float64, error) {
	p, ok := GetPlan(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTariffPlan, name)
	}
	return p.RatePerUnit, nil
}

// Plans returns all registered tariff plans.
func Plans() []TariffPlan {
	plansMu.RLock()
	defer plansMu.RUnlock()
	out := make([]TariffPlan, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	return out
}
