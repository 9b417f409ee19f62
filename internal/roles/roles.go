// Package roles defines the fixed role set shared by both services.
package roles

// Role names, as stored on the user record and stamped into token claims.
const (
	Admin           = "admin"
	Warehouse       = "warehouse"
	Driver          = "driver"
	HQ              = "hq"
	CustomerService = "customer_service"
)

// All lists every assignable role.
var All = []string{Admin, Warehouse, Driver, HQ, CustomerService}

// Valid reports whether r is an assignable role.
func Valid(r string) bool {
	for _, v := range All {
		if v == r {
			return true
		}
	}
	return false
}
