package persona

import "strings"

// Generic is the customer profile used for dynamically generated
// modes, where no industry-specific persona exists.
type Generic struct {
	Name                string  `json:"name"`
	CustomerSince       string  `json:"customer_since"`
	AccountValue        float64 `json:"account_value"`
	RecentActivityCount int     `json:"recent_activity_count"`
	LoyaltyPoints       int     `json:"loyalty_points"`
	Status              string  `json:"status"`
	ContextHint         string  `json:"context_hint"`
}

// GenerateGeneric builds a deterministic generic persona from seed.
// The mode ID only shapes the context hint.
func GenerateGeneric(modeID string, seed int64) *Generic {
	rng := newRand(seed)

	modeName := displayName(modeID)
	return &Generic{
		Name:                pick(rng, firstNames) + " " + pick(rng, lastNames),
		CustomerSince:       dateBetween(rng, -5*365, -365).Format("January 2006"),
		AccountValue:        randFloat(rng, 1000, 50000),
		RecentActivityCount: randInt(rng, 5, 30),
		LoyaltyPoints:       randInt(rng, 100, 10000),
		Status:              pick(rng, []string{"Bronze", "Silver", "Gold", "Platinum"}),
		ContextHint:         "This is a " + modeName + " customer dashboard.",
	}
}

// displayName turns "pet_store" into "Pet Store".
func displayName(modeID string) string {
	words := strings.Split(strings.ReplaceAll(modeID, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
