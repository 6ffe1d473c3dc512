package enum

// ── State machines (derived, not stored) ──

// Order lifecycle derived from the (is_finished, is_paid) pair.
const (
	OrderStateOpen           = "OPEN"
	OrderStateFinishedUnpaid = "FINISHED_UNPAID"
	OrderStateFinishedPaid   = "FINISHED_PAID"
)

// ── Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin = "ADMIN"
	UserRoleStaff = "STAFF"
)

const (
	UnitDraft  = "draft"
	UnitBottle = "bottle"
	UnitCan    = "can"
	UnitGlass  = "glass"
	UnitBowl   = "bowl"
	UnitPlate  = "plate"
)

// IsValidUnit reports whether s is a recognized unit of sale.
func IsValidUnit(s string) bool {
	switch s {
	case UnitDraft, UnitBottle, UnitCan, UnitGlass, UnitBowl, UnitPlate:
		return true
	}
	return false
}

// IsValidRole reports whether s is a recognized staff role.
func IsValidRole(s string) bool {
	switch s {
	case UserRoleAdmin, UserRoleStaff:
		return true
	}
	return false
}
