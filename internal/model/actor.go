package model

// Actor is the authenticated user on whose behalf a request runs. It is
// built per request by the auth middleware and passed down explicitly.
type Actor struct {
	UserID   uint
	Email    string
	Name     string
	Role     Role
	AgencyID string
}
