package domain

// Role is a user role id as issued by the identity service.
type Role int

const (
	RoleAdmin     Role = 1
	RoleModerator Role = 2
	RoleManager   Role = 3
)

// Status is a user account status id.
type Status int

const (
	StatusWait   Status = 1
	StatusActive Status = 2
)

// HiddenLabel is returned for role and status codes missing from the tables.
const HiddenLabel = "hidden"

var roleLabels = map[Role]string{
	RoleAdmin:     "admin",
	RoleModerator: "moderator",
	RoleManager:   "manager",
}

var statusLabels = map[Status]string{
	StatusWait:   "wait",
	StatusActive: "active",
}

// RoleName resolves a role id to its label, or HiddenLabel when unknown.
func RoleName(id Role) string {
	if label, ok := roleLabels[id]; ok {
		return label
	}
	return HiddenLabel
}

// StatusName resolves a status id to its label, or HiddenLabel when unknown.
func StatusName(id Status) string {
	if label, ok := statusLabels[id]; ok {
		return label
	}
	return HiddenLabel
}

// UserProfile is the last profile returned by the identity service's
// who-am-I endpoint.
type UserProfile struct {
	ID       int64
	Name     string
	Email    string
	RoleID   Role
	StatusID Status
	Locale   string

	// Fields keeps every attribute of the profile payload, including the ones
	// mapped above, so screens can read fields the shell does not model.
	Fields map[string]any
}

func (u UserProfile) IsAdmin() bool     { return u.RoleID == RoleAdmin }
func (u UserProfile) IsModerator() bool { return u.RoleID == RoleModerator }
func (u UserProfile) IsManager() bool   { return u.RoleID == RoleManager }

// RoleName returns the label of the user's role.
func (u UserProfile) RoleName() string { return RoleName(u.RoleID) }

// StatusName returns the label of the user's status.
func (u UserProfile) StatusName() string { return StatusName(u.StatusID) }

// HasAnyRole reports whether the user's role is one of roles.
func (u UserProfile) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if u.RoleID == r {
			return true
		}
	}
	return false
}
