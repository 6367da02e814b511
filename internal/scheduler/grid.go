package scheduler

import "fmt"

const (
	// DefaultDays covers Monday to Friday.
	DefaultDays = 5
	// DefaultPeriods is the number of lessons per day.
	DefaultPeriods = 5
)

// Grid is the weekly coordinate space: days are zero based, periods start at 1.
type Grid struct {
	Days    int `json:"days"`
	Periods int `json:"periods"`
}

// Slot identifies one cell of the grid.
type Slot struct {
	Day    int `json:"day"`
	Period int `json:"period"`
}

// DefaultGrid returns the 5x5 school week.
func DefaultGrid() Grid {
	return Grid{Days: DefaultDays, Periods: DefaultPeriods}
}

// Validate rejects non-positive shapes.
func (g Grid) Validate() error {
	if g.Days <= 0 || g.Periods <= 0 {
		return fmt.Errorf("grid shape must be positive, got %dx%d", g.Days, g.Periods)
	}
	return nil
}

// IsValidSlot reports whether (day, period) lies inside the grid.
func (g Grid) IsValidSlot(day, period int) bool {
	return day >= 0 && day < g.Days && period >= 1 && period <= g.Periods
}

// IsValidDay reports whether day is a valid zero based day index.
func (g Grid) IsValidDay(day int) bool {
	return day >= 0 && day < g.Days
}

// Capacity is the number of slots in the grid.
func (g Grid) Capacity() int {
	if g.Days <= 0 || g.Periods <= 0 {
		return 0
	}
	return g.Days * g.Periods
}

// Slots enumerates the grid day-major, period-minor.
func (g Grid) Slots() []Slot {
	slots := make([]Slot, 0, g.Capacity())
	for day := 0; day < g.Days; day++ {
		for period := 1; period <= g.Periods; period++ {
			slots = append(slots, Slot{Day: day, Period: period})
		}
	}
	return slots
}
