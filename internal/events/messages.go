package events

import (
	"encoding/json"
	"errors"
	"time"
)

// Type names an activity event. It doubles as the routing key suffix.
type Type string

const (
	SessionLogin    Type = "session.login"
	SessionLogout   Type = "session.logout"
	SessionExpired  Type = "session.expired"
	SessionRestored Type = "session.restored"
	ExpenseCreated  Type = "expense.created"
	ExpenseUpdated  Type = "expense.updated"
	ExpenseDeleted  Type = "expense.deleted"
)

var knownTypes = map[Type]bool{
	SessionLogin: true, SessionLogout: true, SessionExpired: true, SessionRestored: true,
	ExpenseCreated: true, ExpenseUpdated: true, ExpenseDeleted: true,
}

// Event is the JSON body published for every activity.
type Event struct {
	Type      Type              `json:"type"`
	SID       string            `json:"sid,omitempty"`
	Username  string            `json:"username,omitempty"`
	ExpenseID int64             `json:"expenseId,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// New stamps an event with the current time.
func New(t Type, sid, username string) Event {
	return Event{Type: t, SID: sid, Username: username, Timestamp: time.Now().UTC()}
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes and checks an event body.
func FromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if !knownTypes[e.Type] {
		return Event{}, errors.New("unknown event type: " + string(e.Type))
	}
	return e, nil
}
