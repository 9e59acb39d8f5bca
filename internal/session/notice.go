package session

// Notice types, matching the show-notification event the templates listen for.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
	NoticeInfo    = "info"
	NoticeWarning = "warning"
)

// Notice is a transient user-facing message.
type Notice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Notify queues a notice for the next response.
func (s *Store) Notify(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Type: kind, Message: message})
}

// DrainNotices returns and forgets every queued notice.
func (s *Store) DrainNotices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}
