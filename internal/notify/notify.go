// Package notify pushes toast notifications and refresh requests to the
// browser sessions of a user.
package notify

// Variant selects how a toast is styled.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Message types sent over the websocket.
const (
	TypeToast   = "toast"
	TypeRefresh = "refresh"
)

// Notification is a transient toast.
type Notification struct {
	Variant     Variant `json:"variant"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
}

// Message is the envelope written to clients.
type Message struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
	// Scope names the data to reload on refresh, e.g. "permissions".
	Scope string `json:"scope,omitempty"`
}

//go:generate go run go.uber.org/mock/mockgen -package mocks -destination mocks/notifier_mock.go agency-hub/internal/notify Notifier

// Notifier delivers user-facing outcomes.
type Notifier interface {
	Notify(userID uint, n Notification)
	Refresh(userID uint, scope string)
}

// Success is the toast shown when a request completed.
func Success(description string) Notification {
	return Notification{Variant: VariantDefault, Title: "Success", Description: description}
}

// Failure is the destructive toast shown when a request failed.
func Failure(description string) Notification {
	return Notification{Variant: VariantDestructive, Title: "Failed", Description: description}
}
