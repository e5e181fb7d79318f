package persona

import "strconv"

// Policy is one active insurance policy.
type Policy struct {
	Type         string  `json:"type"`
	Coverage     float64 `json:"coverage"`
	Premium      float64 `json:"premium"`
	Deductible   float64 `json:"deductible"`
	PolicyNumber string  `json:"policy_number"`
	RenewalDate  string  `json:"renewal_date"`
}

// Claim is a past or in-flight insurance claim.
type Claim struct {
	ClaimID string  `json:"claim_id"`
	Date    string  `json:"date"`
	Type    string  `json:"type"`
	Amount  float64 `json:"amount"`
	Status  string  `json:"status"`
}

// Insurance is an insurance member profile with policies and claims.
type Insurance struct {
	Name           string   `json:"name"`
	MemberSince    string   `json:"member_since"`
	ActivePolicies []Policy `json:"active_policies"`
	ClaimsHistory  []Claim  `json:"claims_history"`
	TotalCoverage  float64  `json:"total_coverage"`
	MonthlyPremium float64  `json:"monthly_premium"`
	RiskScore      string   `json:"risk_score"`
}

// GenerateInsurance builds a deterministic insurance persona from seed.
func GenerateInsurance(seed int64) *Insurance {
	rng := newRand(seed)

	policyTypes := []string{"Auto", "Home", "Life", "Umbrella"}
	numPolicies := randInt(rng, 1, 3)
	selected := sample(rng, policyTypes, numPolicies)

	policies := make([]Policy, 0, numPolicies)
	var totalCoverage, totalPremium float64
	for _, policyType := range selected {
		var coverage, premium, deductible float64
		switch policyType {
		case "Auto":
			coverage = float64(randInt(rng, 25000, 100000))
			premium = randFloat(rng, 80, 250)
			deductible = float64(pick(rng, []int{250, 500, 1000}))
		case "Home":
			coverage = float64(randInt(rng, 200000, 750000))
			premium = randFloat(rng, 100, 400)
			deductible = float64(pick(rng, []int{500, 1000, 2500}))
		case "Life":
			coverage = float64(randInt(rng, 100000, 1000000))
			premium = randFloat(rng, 30, 150)
		default: // Umbrella
			coverage = float64(randInt(rng, 1000000, 5000000))
			premium = randFloat(rng, 20, 80)
		}
		totalCoverage += coverage
		totalPremium += premium

		policies = append(policies, Policy{
			Type:         policyType,
			Coverage:     coverage,
			Premium:      premium,
			Deductible:   deductible,
			PolicyNumber: bothify(rng, "POL-####-????"),
			RenewalDate:  isoDate(dateBetween(rng, 30, 365)),
		})
	}

	numClaims := randInt(rng, 0, 2)
	claimTypes := []string{"Collision", "Property Damage", "Medical", "Theft", "Weather"}
	claimStatuses := []string{"approved", "pending", "in_review", "denied"}
	claims := make([]Claim, 0, numClaims)
	for i := 0; i < numClaims; i++ {
		claims = append(claims, Claim{
			ClaimID: bothify(rng, "CLM-########"),
			Date:    isoDate(dateBetween(rng, -2*365, -30)),
			Type:    pick(rng, claimTypes),
			Amount:  randFloat(rng, 500, 15000),
			Status:  pick(rng, claimStatuses),
		})
	}

	var riskScore string
	switch numClaims {
	case 0:
		riskScore = "low"
	case 1:
		riskScore = pick(rng, []string{"low", "medium"})
	default:
		riskScore = pick(rng, []string{"medium", "high"})
	}

	return &Insurance{
		Name:           demoName,
		MemberSince:    strconv.Itoa(dateBetween(rng, -20*365, -365).Year()),
		ActivePolicies: policies,
		ClaimsHistory:  claims,
		TotalCoverage:  totalCoverage,
		MonthlyPremium: round2(totalPremium),
		RiskScore:      riskScore,
	}
}
