package conversation

// Snapshot is an immutable view of a conversation. Reconcile hands back the same
// pointer when nothing visible changed, so callers can skip re-rendering on pointer equality.
type Snapshot struct {
	Messages []Message `json:"messages"`
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Messages)
}

// Reconcile compares fetched against prev by id, content and sender name at each index.
// It returns prev unchanged when every position matches and a new snapshot holding
// fetched otherwise; there is no partial patching.
func Reconcile(prev *Snapshot, fetched []Message) *Snapshot {
	if prev != nil && sameMessages(prev.Messages, fetched) {
		return prev
	}

	messages := make([]Message, len(fetched))
	copy(messages, fetched)
	return &Snapshot{Messages: messages}
}

func sameMessages(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Content != b[i].Content || a[i].SenderName != b[i].SenderName {
			return false
		}
	}
	return true
}

// withLocal returns a new snapshot with m appended after the messages of s.
func withLocal(s *Snapshot, m Message) *Snapshot {
	messages := make([]Message, 0, s.Len()+1)
	if s != nil {
		messages = append(messages, s.Messages...)
	}
	messages = append(messages, m)
	return &Snapshot{Messages: messages}
}
