package persona

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/prestolabs/presto/pkg/gateway/modes"
)

// moneyPrinter groups thousands the way the dashboard shows balances.
var moneyPrinter = message.NewPrinter(language.English)

func money(v float64) string {
	return moneyPrinter.Sprintf("%.2f", v)
}

// BuildSystemPrompt appends the persona profile to the mode's system
// prompt so the assistant can reference the customer naturally. A nil
// or unknown persona leaves the prompt untouched.
func BuildSystemPrompt(mode *modes.Mode, p any) string {
	base := mode.SystemPrompt
	block := contextBlock(p)
	if block == "" {
		return base
	}
	return base + "\n\n" + block
}

func contextBlock(p any) string {
	switch v := p.(type) {
	case *Banking:
		return fmt.Sprintf(`Current Customer Profile:
- Name: %s
- Member Since: %s
- Checking Balance: $%s
- Savings Balance: $%s
- Credit Score: %d

Reference this customer's information naturally in your responses.`,
			v.Name, v.MemberSince, money(v.CheckingBalance),
			money(v.SavingsBalance), v.CreditScore)

	case *Insurance:
		return fmt.Sprintf(`Current Customer Profile:
- Name: %s
- Member Since: %s
- Active Policies: %d
- Total Coverage: $%s
- Monthly Premium: $%s

Reference this customer's information naturally in your responses.`,
			v.Name, v.MemberSince, len(v.ActivePolicies),
			money(v.TotalCoverage), money(v.MonthlyPremium))

	case *Healthcare:
		return fmt.Sprintf(`Current Patient Profile:
- Name: %s
- Member ID: %s
- Primary Care Provider: %s
- Deductible Progress: $%s of $%s
- Active Prescriptions: %d

Reference this patient's information naturally in your responses.`,
			v.Name, v.MemberID, v.PrimaryCareProvider,
			money(v.DeductibleMet), money(v.Deductible),
			len(v.ActivePrescriptions))

	case *Generic:
		return fmt.Sprintf(`Current Customer Profile:
- Name: %s
- Customer Since: %s
- Account Value: $%s
- Loyalty Status: %s (%d points)

Reference this customer's information naturally in your responses.`,
			v.Name, v.CustomerSince, money(v.AccountValue),
			v.Status, v.LoyaltyPoints)

	default:
		return ""
	}
}
