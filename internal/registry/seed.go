package registry

import "example.com/mergington/internal/domain"

// DefaultCatalog returns a fresh copy of the built-in activity list. Every
// call allocates new rosters, so tests can reset state without sharing slices.
func DefaultCatalog() domain.Catalog {
	return domain.Catalog{
		"Chess Club": {
			Description:     "Learn strategies and compete in chess tournaments",
			Schedule:        "Fridays, 3:30 PM - 5:00 PM",
			MaxParticipants: 12,
			Participants:    []string{"michael@mergington.edu", "daniel@mergington.edu"},
		},
		"Programming Class": {
			Description:     "Learn programming fundamentals and build software projects",
			Schedule:        "Tuesdays and Thursdays, 3:30 PM - 4:30 PM",
			MaxParticipants: 20,
			Participants:    []string{"emma@mergington.edu", "sophia@mergington.edu"},
		},
		"Gym Class": {
			Description:     "Physical education and sports activities",
			Schedule:        "Mondays, Wednesdays, Fridays, 2:00 PM - 3:00 PM",
			MaxParticipants: 30,
			Participants:    []string{"john@mergington.edu", "olivia@mergington.edu"},
		},
		"Basketball": {
			Description:     "Practice fundamentals and play in the school league",
			Schedule:        "Mondays and Wednesdays, 4:00 PM - 5:30 PM",
			MaxParticipants: 15,
			Participants:    []string{"james@mergington.edu"},
		},
		"Tennis Club": {
			Description:     "Improve your serve and compete in singles and doubles matches",
			Schedule:        "Tuesdays and Thursdays, 4:00 PM - 5:30 PM",
			MaxParticipants: 10,
			Participants:    []string{"lucas@mergington.edu"},
		},
		"Drama Club": {
			Description:     "Act, direct and produce the school plays",
			Schedule:        "Wednesdays, 3:30 PM - 5:30 PM",
			MaxParticipants: 25,
			Participants:    []string{"ava@mergington.edu", "mia@mergington.edu"},
		},
		"Art Studio": {
			Description:     "Explore painting, drawing and sculpture",
			Schedule:        "Thursdays, 3:30 PM - 5:00 PM",
			MaxParticipants: 18,
			Participants:    []string{"amelia@mergington.edu"},
		},
		"Math Club": {
			Description:     "Solve challenging problems and prepare for math competitions",
			Schedule:        "Tuesdays, 3:30 PM - 4:30 PM",
			MaxParticipants: 20,
			Participants:    []string{"ethan@mergington.edu", "harper@mergington.edu"},
		},
		"Science Club": {
			Description:     "Run experiments and build projects for the science fair",
			Schedule:        "Fridays, 3:30 PM - 5:00 PM",
			MaxParticipants: 16,
			Participants:    []string{"benjamin@mergington.edu"},
		},
	}
}
