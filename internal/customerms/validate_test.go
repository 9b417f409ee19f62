package customerms

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormedInput(t *testing.T) {
	in := &CustomerInput{
		Contact:     "+6591234567",
		Street:      "123 Orchard Road",
		Unit:        "#05-01",
		PostalCode:  "238123",
		HousingType: "Condo",
	}
	require.Empty(t, Validate(in))
}

func TestValidateContactFormats(t *testing.T) {
	valid := []string{"91234567", "81234567", "61234567", "+6591234567", "+6581234567"}
	for _, c := range valid {
		require.Empty(t, Validate(&CustomerInput{Contact: c, PostalCode: "238123"}), "contact %q", c)
	}

	invalid := []string{"71234567", "9123456", "912345678", "+6071234567", "abc12345", "+65 9123 4567"}
	for _, c := range invalid {
		errs := Validate(&CustomerInput{Contact: c, PostalCode: "238123"})
		require.Len(t, errs, 1, "contact %q", c)
		require.Contains(t, errs[0], "contact number")
	}
}

func TestValidatePostalCode(t *testing.T) {
	errs := Validate(&CustomerInput{Contact: "91234567", PostalCode: "1234"})
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "postal code")

	errs = Validate(&CustomerInput{Contact: "91234567", PostalCode: "12345a"})
	require.Len(t, errs, 1)
}

func TestValidateHousingType(t *testing.T) {
	for _, h := range HousingTypes {
		require.Empty(t, Validate(&CustomerInput{Contact: "91234567", PostalCode: "238123", HousingType: h}))
	}
	errs := Validate(&CustomerInput{Contact: "91234567", PostalCode: "238123", HousingType: "Mansion"})
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "housing type")
}

func TestValidateReportsAllFailuresAtOnce(t *testing.T) {
	errs := Validate(&CustomerInput{})
	require.Len(t, errs, 2) // missing contact and postal code

	errs = Validate(&CustomerInput{Contact: "bad", PostalCode: "bad", HousingType: "bad"})
	require.Len(t, errs, 3)
}

func TestGeocodeKnownAndUnknownPostal(t *testing.T) {
	lat, lon := Geocode("730123")
	require.InDelta(t, 1.4491, lat, 1e-9)
	require.InDelta(t, 103.8198, lon, 1e-9)

	lat, lon = Geocode("999999")
	require.InDelta(t, 1.3521, lat, 1e-9)
	require.InDelta(t, 103.8198, lon, 1e-9)
}
