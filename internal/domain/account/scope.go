package account

import "strings"

// Scope is a subscription filter: either a single vehicle (user id) or
// a whole (company, route) fleet.
type Scope struct {
	VehicleID string // set for vehicle-level scopes
	CompanyID string // set together with RouteID for fleet-level scopes
	RouteID   string
}

// VehicleScope builds a vehicle-level scope.
func VehicleScope(vehicleID string) Scope {
	return Scope{VehicleID: strings.TrimSpace(vehicleID)}
}

// FleetScope builds a fleet-level (company, route) scope.
func FleetScope(companyID, routeID string) Scope {
	return Scope{
		CompanyID: strings.TrimSpace(companyID),
		RouteID:   strings.TrimSpace(routeID),
	}
}

// IsVehicle reports whether the scope targets a single vehicle.
func (scope Scope) IsVehicle() bool {
	return scope.VehicleID != ""
}

// Valid reports whether the scope is one of the two allowed shapes.
func (scope Scope) Valid() bool {
	if scope.IsVehicle() {
		return scope.CompanyID == "" && scope.RouteID == ""
	}
	return scope.CompanyID != "" && scope.RouteID != ""
}

// Matches reports whether the given account falls inside the scope.
func (scope Scope) Matches(acct *Account) bool {
	if acct == nil {
		return false
	}
	if scope.IsVehicle() {
		return scope.VehicleID == acct.UserID
	}
	return scope.CompanyID == acct.CompanyID && scope.RouteID == acct.RouteID
}

// String renders the scope for logs and routing keys.
func (scope Scope) String() string {
	if scope.IsVehicle() {
		return "vehicle:" + scope.VehicleID
	}
	return "fleet:" + scope.CompanyID + "/" + scope.RouteID
}
