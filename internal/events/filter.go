package events

// Filter selects the events a subscriber receives. Zero values match all.
type Filter struct {
	UserID    string
	ProjectID string
	Types     map[Type]bool
}

// Match reports whether evt passes the filter. Events without a user are
// broadcast to everyone.
func (f Filter) Match(evt Event) bool {
	if f.UserID != "" && evt.UserID != "" && evt.UserID != f.UserID {
		return false
	}
	if f.ProjectID != "" && evt.ProjectID != "" && evt.ProjectID != f.ProjectID {
		return false
	}
	if len(f.Types) > 0 && !f.Types[evt.Type] {
		return false
	}
	return true
}

// Apply returns the events matching f.
func (f Filter) Apply(evts []Event) []Event {
	out := make([]Event, 0, len(evts))
	for _, evt := range evts {
		if f.Match(evt) {
			out = append(out, evt)
		}
	}
	return out
}
