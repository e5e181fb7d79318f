// Package persona generates deterministic demo customer profiles for
// dashboard modes. The same seed always yields the same profile, so a
// session keeps one consistent customer across mode switches and
// reconnects. Built-in modes get rich typed personas; generated modes
// fall back to a generic customer profile.
package persona

import (
	"crypto/md5"
	"encoding/binary"
	"math/rand"
	"strings"
	"time"
)

// DefaultSeedKey seeds the demo persona so every session shows the
// same customer until per-user sessions exist.
const DefaultSeedKey = "demo-session"

// demoName is the fixed customer name used by the built-in personas.
const demoName = "Marco Casalaina"

// timeNow is stubbed in tests to keep generated dates stable.
var timeNow = time.Now

// SessionSeed derives a deterministic seed from a key by taking the
// first four bytes of its MD5 digest.
func SessionSeed(key string) int64 {
	sum := md5.Sum([]byte(key))
	return int64(binary.BigEndian.Uint32(sum[:4]))
}

// Generate returns the persona for a mode. Unknown mode IDs get a
// generic profile so dynamically generated industries still have a
// customer to talk about.
func Generate(modeID string, seed int64) any {
	switch strings.ToLower(modeID) {
	case "banking":
		return GenerateBanking(seed)
	case "insurance":
		return GenerateInsurance(seed)
	case "healthcare":
		return GenerateHealthcare(seed)
	default:
		return GenerateGeneric(modeID, seed)
	}
}

var (
	companyNames = []string{
		"Northwind Traders", "Acme Market", "Blue Harbor Cafe",
		"Summit Outfitters", "Cedar & Vine", "Lakeside Grocers",
		"Orbit Fuel", "Maple Street Books", "Canyon Hardware",
		"Harborview Pharmacy",
	}
	creditDescriptions = []string{
		"Direct Deposit", "Payroll Deposit", "Transfer From Savings",
		"Refund Issued", "Interest Payment", "Mobile Check Deposit",
	}
	firstNames = []string{
		"Avery", "Jordan", "Riley", "Maya", "Theo",
		"Priya", "Marcus", "Elena", "Sam", "Nadia",
	}
	lastNames = []string{
		"Chen", "Okafor", "Ramirez", "Patel", "Novak",
		"Kim", "Haddad", "Lindqvist", "Moreau", "Silva",
	}
	cities = []string{
		"Fairview", "Riverton", "Oakdale", "Brookfield", "Lakewood",
		"Summit", "Georgetown", "Clayton", "Madison", "Auburn",
	}
)

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func randInt(rng *rand.Rand, min, max int) int {
	return min + rng.Intn(max-min+1)
}

func randFloat(rng *rand.Rand, min, max float64) float64 {
	return round2(min + rng.Float64()*(max-min))
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.Intn(len(items))]
}

// sample returns n distinct elements in random order.
func sample[T any](rng *rand.Rand, items []T, n int) []T {
	idx := rng.Perm(len(items))[:n]
	out := make([]T, n)
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}

// bothify replaces '#' with a digit and '?' with an uppercase letter.
func bothify(rng *rand.Rand, pattern string) string {
	const digits = "0123456789"
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	out := make([]byte, len(pattern))
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '#':
			out[i] = digits[rng.Intn(len(digits))]
		case '?':
			out[i] = letters[rng.Intn(len(letters))]
		default:
			out[i] = pattern[i]
		}
	}
	return string(out)
}

// dateBetween returns a date offset from today by a day count drawn
// from [fromDays, toDays].
func dateBetween(rng *rand.Rand, fromDays, toDays int) time.Time {
	return timeNow().AddDate(0, 0, randInt(rng, fromDays, toDays))
}

func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}
