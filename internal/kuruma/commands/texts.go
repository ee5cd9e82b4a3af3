package commands

import (
	"strings"
)

// TermsText is shown by TERMS.
const TermsText = `SECURE CAR RENTAL TERMS AND CONDITIONS

1. RENTAL AGREEMENT
   This agreement is the entire rental contract between the customer and the rental company.

2. DRIVER REQUIREMENTS
   - Must be at least 21 years of age
   - Valid driver's license required
   - Clean driving record preferred

3. VEHICLE CONDITION
   - Vehicle must be returned in the condition it was received
   - Interior and exterior cleaning required
   - Fuel level must match pickup level

4. SECURITY DEPOSIT
   - Required for all rentals
   - Refunded upon satisfactory vehicle return
   - May be used for damages or violations

5. INSURANCE COVERAGE
   - Basic coverage included
   - Additional coverage available
   - Customer responsible for deductibles

6. PROHIBITED USES
   - No smoking in vehicles
   - No pets without prior approval
   - No off-road driving
   - No racing or competitive events

7. CANCELLATION POLICY
   - Bookings can be cancelled up to 24 hours before the start date
   - Cancellations inside that window are not accepted

8. LIABILITY
   - Customer liable for traffic violations
   - Customer liable for parking tickets
   - Customer liable for vehicle damage

9. LATE RETURNS
   - Grace period: 30 minutes
   - Late fees apply after the grace period
   - Daily rate charged for overnight delays

10. AGREEMENT ACCEPTANCE
    By booking a vehicle the customer agrees to all terms and conditions herein.

Type 'accept terms' to agree.`

type helpEntry struct {
	verb  string
	usage string
}

var userHelp = []helpEntry{
	{"login", "log in with email and password"},
	{"register", "create an account"},
	{"show cars", "list cars available for rent"},
	{"book car", "book a car (car id, start date YYYY-MM-DD, number of days)"},
	{"my bookings", "list your bookings"},
	{"cancel booking", "cancel a booking at least 24 hours before it starts"},
	{"terms", "read the rental terms"},
	{"accept terms", "accept the rental terms"},
	{"logout", "end your session"},
	{"help", "show this list"},
	{"exit", "leave the application"},
}

var adminHelp = []helpEntry{
	{"all users", "list every registered user"},
	{"all bookings", "list every booking"},
	{"search bookings", "find bookings by user email"},
	{"car status", "fleet availability"},
	{"maintenance", "take a car out of service or return it"},
	{"revenue", "revenue between two dates"},
	{"view assets", "fleet value and upcoming road tax, insurance and maintenance"},
	{"audit log", "most recent audit entries"},
}

// HelpText lists the available verbs; admin verbs only when admin is true.
func HelpText(admin bool) string {
	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	writeHelp(&sb, userHelp)
	if admin {
		sb.WriteString("\nAdmin commands:\n")
		writeHelp(&sb, adminHelp)
	}
	sb.WriteString("\nAnything else is passed to the assistant once you are logged in.")
	return sb.String()
}

func writeHelp(sb *strings.Builder, entries []helpEntry) {
	for _, e := range entries {
		sb.WriteString("  ")
		sb.WriteString(e.verb)
		sb.WriteString(strings.Repeat(" ", 17-len(e.verb)))
		sb.WriteString(e.usage)
		sb.WriteString("\n")
	}
}
