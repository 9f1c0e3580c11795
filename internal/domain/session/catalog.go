package session

// Roles.
const (
	RoleAdmin      = "ADMIN"
	RoleAccountant = "ACCOUNTANT"
	RoleDriver     = "DRIVER"
	RoleUser       = "USER"
)

// Roles lists every role a new account may ask for.
var Roles = []string{RoleUser, RoleDriver, RoleAccountant, RoleAdmin}

// IsKnownRole reports whether r is one of Roles.
func IsKnownRole(r string) bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Capabilities as sent by the server.
const (
	// Users
	CapCreateUser = "CREATE_USER"
	CapUpdateUser = "UPDATE_USER"
	CapDeleteUser = "DELETE_USER"

	// Companies
	CapManageCompanies = "MANAGE_COMPANIES"

	// Trips
	CapCreateTrip   = "CREATE_TRIP"
	CapManageTrip   = "MANAGE_TRIP"
	CapViewAllTrips = "VIEW_ALL_TRIPS"
	CapViewOwnTrips = "VIEW_OWN_TRIPS"

	// Expenses
	CapManageExpenses  = "MANAGE_EXPENSES"
	CapViewOwnExpenses = "VIEW_OWN_EXPENSES"
	CapCreateExpense   = "CREATE_EXPENSE"

	// Reports
	CapViewReports = "VIEW_REPORTS"
)

// Capability groups used by navigation sections.
var (
	GroupTrips     = []string{CapViewAllTrips, CapViewOwnTrips, CapCreateTrip, CapManageTrip}
	GroupExpenses  = []string{CapManageExpenses, CapViewOwnExpenses, CapCreateExpense, CapViewReports}
	GroupUsers     = []string{CapCreateUser, CapUpdateUser, CapDeleteUser}
	GroupCompanies = []string{CapManageCompanies}
)
