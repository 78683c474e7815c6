package domain

// Activity is an extracurricular offering and its participant roster.
type Activity struct {
	Description     string   `json:"description" yaml:"description"`
	Schedule        string   `json:"schedule" yaml:"schedule"`
	MaxParticipants int      `json:"max_participants" yaml:"max_participants"`
	Participants    []string `json:"participants" yaml:"participants"`
}

// HasParticipant reports whether email is already on the roster.
func (a Activity) HasParticipant(email string) bool {
	return a.indexOf(email) >= 0
}

// Clone returns a copy that shares no memory with a.
func (a Activity) Clone() Activity {
	out := a
	out.Participants = make([]string, len(a.Participants))
	copy(out.Participants, a.Participants)
	return out
}

// WithParticipant returns a copy of a with email appended to the roster.
func (a Activity) WithParticipant(email string) Activity {
	out := a.Clone()
	out.Participants = append(out.Participants, email)
	return out
}

// WithoutParticipant returns a copy of a with email removed. Remaining
// participants keep their relative order.
func (a Activity) WithoutParticipant(email string) Activity {
	out := a.Clone()
	idx := out.indexOf(email)
	if idx < 0 {
		return out
	}
	out.Participants = append(out.Participants[:idx], out.Participants[idx+1:]...)
	return out
}

func (a Activity) indexOf(email string) int {
	for i, p := range a.Participants {
		if p == email {
			return i
		}
	}
	return -1
}

// Catalog maps activity names to activities.
type Catalog map[string]Activity

// Clone deep-copies the catalog.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for name, activity := range c {
		out[name] = activity.Clone()
	}
	return out
}
