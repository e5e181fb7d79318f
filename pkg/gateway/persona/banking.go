package persona

import (
	"sort"
	"strconv"
)

// Transaction is a single account ledger entry.
type Transaction struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}

// Banking is a bank customer profile with balances and recent activity.
type Banking struct {
	Name               string        `json:"name"`
	MemberSince        string        `json:"member_since"`
	CheckingBalance    float64       `json:"checking_balance"`
	SavingsBalance     float64       `json:"savings_balance"`
	AccountNumberLast4 string        `json:"account_number_last4"`
	CreditScore        int           `json:"credit_score"`
	CreditLimit        float64       `json:"credit_limit"`
	RecentTransactions []Transaction `json:"recent_transactions"`
}

// GenerateBanking builds a deterministic banking persona from seed.
func GenerateBanking(seed int64) *Banking {
	rng := newRand(seed)

	numTransactions := randInt(rng, 5, 10)
	transactions := make([]Transaction, 0, numTransactions)
	for i := 0; i < numTransactions; i++ {
		isDebit := rng.Intn(2) == 0
		tx := Transaction{
			Date: isoDate(dateBetween(rng, -30, 0)),
		}
		if isDebit {
			tx.Description = pick(rng, companyNames)
			tx.Amount = randFloat(rng, 5, 500)
			tx.Category = "debit"
		} else {
			tx.Description = pick(rng, creditDescriptions)
			tx.Amount = randFloat(rng, 100, 3000)
			tx.Category = "credit"
		}
		transactions = append(transactions, tx)
	}
	// Most recent first.
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].Date > transactions[j].Date
	})

	return &Banking{
		Name:               demoName,
		MemberSince:        strconv.Itoa(dateBetween(rng, -15*365, -365).Year()),
		CheckingBalance:    randFloat(rng, 500, 15000),
		SavingsBalance:     randFloat(rng, 1000, 50000),
		AccountNumberLast4: bothify(rng, "####"),
		CreditScore:        randInt(rng, 620, 820),
		CreditLimit:        randFloat(rng, 2000, 25000),
		RecentTransactions: transactions,
	}
}
