package persona

import "sort"

// Appointment is an upcoming healthcare visit.
type Appointment struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Provider  string `json:"provider"`
	Specialty string `json:"specialty"`
	Location  string `json:"location"`
}

// Prescription is an active medication.
type Prescription struct {
	Medication       string `json:"medication"`
	Dosage           string `json:"dosage"`
	Frequency        string `json:"frequency"`
	RefillsRemaining int    `json:"refills_remaining"`
}

// Healthcare is a patient profile with plan, appointment, and
// prescription data.
type Healthcare struct {
	Name                 string         `json:"name"`
	MemberID             string         `json:"member_id"`
	DateOfBirth          string         `json:"date_of_birth"`
	PrimaryCareProvider  string         `json:"primary_care_provider"`
	PlanName             string         `json:"plan_name"`
	Deductible           float64        `json:"deductible"`
	DeductibleMet        float64        `json:"deductible_met"`
	OutOfPocketMax       float64        `json:"out_of_pocket_max"`
	OutOfPocketSpent     float64        `json:"out_of_pocket_spent"`
	UpcomingAppointments []Appointment  `json:"upcoming_appointments"`
	ActivePrescriptions  []Prescription `json:"active_prescriptions"`
}

type medication struct {
	name      string
	dosage    string
	frequency string
}

var medications = []medication{
	{"Lisinopril", "10mg", "Once daily"},
	{"Metformin", "500mg", "Twice daily"},
	{"Atorvastatin", "20mg", "Once daily at bedtime"},
	{"Omeprazole", "20mg", "Once daily before breakfast"},
	{"Amlodipine", "5mg", "Once daily"},
	{"Levothyroxine", "50mcg", "Once daily on empty stomach"},
	{"Sertraline", "50mg", "Once daily"},
	{"Gabapentin", "300mg", "Three times daily"},
}

// GenerateHealthcare builds a deterministic healthcare persona from
// seed.
func GenerateHealthcare(seed int64) *Healthcare {
	rng := newRand(seed)

	numAppointments := randInt(rng, 0, 2)
	specialties := []string{
		"Primary Care", "Cardiology", "Dermatology",
		"Orthopedics", "Ophthalmology", "Dentistry",
	}
	times := []string{"9:00 AM", "10:30 AM", "1:00 PM", "2:30 PM", "4:00 PM"}
	appointments := make([]Appointment, 0, numAppointments)
	for i := 0; i < numAppointments; i++ {
		appointments = append(appointments, Appointment{
			Date:      isoDate(dateBetween(rng, 1, 90)),
			Time:      pick(rng, times),
			Provider:  "Dr. " + pick(rng, lastNames),
			Specialty: pick(rng, specialties),
			Location:  pick(rng, cities) + " Medical Center",
		})
	}
	sort.Slice(appointments, func(i, j int) bool {
		return appointments[i].Date < appointments[j].Date
	})

	numPrescriptions := randInt(rng, 1, 3)
	prescriptions := make([]Prescription, 0, numPrescriptions)
	for _, med := range sample(rng, medications, numPrescriptions) {
		prescriptions = append(prescriptions, Prescription{
			Medication:       med.name,
			Dosage:           med.dosage,
			Frequency:        med.frequency,
			RefillsRemaining: randInt(rng, 0, 5),
		})
	}

	planNames := []string{"Gold PPO", "Silver HMO", "Bronze HDHP", "Platinum PPO"}
	deductible := float64(pick(rng, []int{500, 1000, 1500, 2500, 3000, 5000}))
	deductibleMet := randFloat(rng, 0, deductible)
	outOfPocketMax := float64(pick(rng, []int{3000, 5000, 6500, 8000}))
	outOfPocketSpent := randFloat(rng, 0, outOfPocketMax*0.6)

	dob := timeNow().AddDate(-randInt(rng, 25, 75), 0, -randInt(rng, 0, 364))

	return &Healthcare{
		Name:                 demoName,
		MemberID:             bothify(rng, "MBR-#########"),
		DateOfBirth:          isoDate(dob),
		PrimaryCareProvider:  "Dr. " + pick(rng, lastNames),
		PlanName:             pick(rng, planNames),
		Deductible:           deductible,
		DeductibleMet:        deductibleMet,
		OutOfPocketMax:       outOfPocketMax,
		OutOfPocketSpent:     outOfPocketSpent,
		UpcomingAppointments: appointments,
		ActivePrescriptions:  prescriptions,
	}
}
