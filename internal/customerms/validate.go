package customerms

import "regexp"

// Singapore formats: mobile/landline numbers start with 6, 8 or 9 and carry
// eight digits, optionally prefixed with +65; postal codes are six digits.
var (
	contactRx = regexp.MustCompile(`^(\+65)?[689]\d{7}$`)
	postalRx  = regexp.MustCompile(`^\d{6}$`)
)

// HousingTypes is the accepted housing_type enum.
var HousingTypes = []string{"HDB", "Condo", "Landed", "Commercial"}

func validHousingType(t string) bool {
	for _, v := range HousingTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Validate checks a customer payload and returns every failure at once, so
// callers can fix a bad form in one round trip.
func Validate(in *CustomerInput) []string {
	var errs []string
	if in.Contact == "" {
		errs = append(errs, "Missing required field: customer_contact")
	} else if !contactRx.MatchString(in.Contact) {
		errs = append(errs, "Invalid Singapore contact number format (+65XXXXXXXX)")
	}
	if in.PostalCode == "" {
		errs = append(errs, "Missing required field: customer_postal_code")
	} else if !postalRx.MatchString(in.PostalCode) {
		errs = append(errs, "Invalid Singapore postal code format (6 digits)")
	}
	if in.HousingType != "" && !validHousingType(in.HousingType) {
		errs = append(errs, "Invalid housing type. Must be one of: HDB, Condo, Landed, Commercial")
	}
	return errs
}
