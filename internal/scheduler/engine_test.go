package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertInvariants(t *testing.T, in Input, res *Result) {
	t.Helper()
	checker := NewChecker(in.Grid, in.Teachers)
	subjects := make(map[string]Subject, len(in.Subjects))
	for _, s := range in.Subjects {
		subjects[s.ID] = s
	}

	slots := make(map[Slot]string)
	teacherSlots := make(map[string]map[Slot]bool)
	counts := make(map[string]int)
	for i, session := range res.Sessions {
		if i > 0 {
			prev := res.Sessions[i-1]
			require.True(t, prev.Day < session.Day || (prev.Day == session.Day && prev.Period < session.Period), "sessions must be sorted by day then period")
		}
		require.True(t, in.Grid.IsValidSlot(session.Day, session.Period))
		_, taken := slots[session.Slot()]
		require.False(t, taken, "slot %v double booked", session.Slot())
		slots[session.Slot()] = session.SubjectID

		subject, ok := subjects[session.SubjectID]
		require.True(t, ok)
		assert.True(t, checker.DayAllowed(subject, session.Day), "subject %s placed on forbidden day %d", subject.ID, session.Day)
		if subject.TeacherID != "" {
			if teacherSlots[subject.TeacherID] == nil {
				teacherSlots[subject.TeacherID] = make(map[Slot]bool)
			}
			require.False(t, teacherSlots[subject.TeacherID][session.Slot()], "teacher %s double booked", subject.TeacherID)
			teacherSlots[subject.TeacherID][session.Slot()] = true
			for _, reserved := range in.Reserved[subject.TeacherID] {
				assert.NotEqual(t, reserved, session.Slot(), "teacher %s placed on a reserved slot", subject.TeacherID)
			}
		}
		counts[session.SubjectID]++
	}

	for _, subject := range in.Subjects {
		assert.LessOrEqual(t, counts[subject.ID], subject.WeeklyHours)
		assert.Equal(t, subject.WeeklyHours, counts[subject.ID]+res.UnmetHours[subject.ID], "accounting for %s", subject.ID)
	}
	for id, unmet := range res.UnmetHours {
		assert.Greater(t, unmet, 0, "zero unmet entry for %s", id)
	}
}

func daysOf(sessions []Session, subjectID string) []int {
	var days []int
	for _, s := range sessions {
		if s.SubjectID == subjectID {
			days = append(days, s.Day)
		}
	}
	return days
}

func TestGenerateSingleSubjectSpreadsAcrossDays(t *testing.T) {
	in := Input{
		Grid:     DefaultGrid(),
		Subjects: []Subject{{ID: "math", WeeklyHours: 3}},
	}

	res, err := Generate(in)
	require.NoError(t, err)
	assertInvariants(t, in, res)

	require.Len(t, res.Sessions, 3)
	assert.Equal(t, []int{0, 1, 2}, daysOf(res.Sessions, "math"))
	assert.Empty(t, res.UnmetHours)
	assert.Equal(t, "greedy", res.Strategy)
}

func TestGenerateOnlyFridayAllowed(t *testing.T) {
	in := Input{
		Grid:     DefaultGrid(),
		Subjects: []Subject{{ID: "art", WeeklyHours: 3, RestrictedDays: []int{0, 1, 2, 3}}},
	}

	res, err := Generate(in)
	require.NoError(t, err)
	assertInvariants(t, in, res)
	assert.Equal(t, []int{4, 4, 4}, daysOf(res.Sessions, "art"))
	assert.Empty(t, res.UnmetHours)
}

func TestGenerateOnlyFridayAllowedOverDemand(t *testing.T) {
	in := Input{
		Grid:     DefaultGrid(),
		Subjects: []Subject{{ID: "art", WeeklyHours: 6, RestrictedDays: []int{0, 1, 2, 3}}},
	}

	res, err := Generate(in)
	require.NoError(t, err)
	assertInvariants(t, in, res)
	assert.Equal(t, []int{4, 4, 4, 4, 4}, daysOf(res.Sessions, "art"))
	assert.Equal(t, 1, res.Unmet("art"))
}

func TestGenerateSharedTeacherNeverOverlaps(t *testing.T) {
	in := Input{
		Grid: DefaultGrid(),
		Subjects: []Subject{
			{ID: "algebra", WeeklyHours: 5, TeacherID: "t1"},
			{ID: "geometry", WeeklyHours: 5, TeacherID: "t1"},
		},
		Teachers: map[string]Teacher{"t1": {ID: "t1"}},
	}

	res, err := Generate(in)
	require.NoError(t, err)
	assertInvariants(t, in, res)
	require.Len(t, res.Sessions, 10)
	assert.Empty(t, res.UnmetHours)

	seen := map[Slot]bool{}
	for _, s := range res.Sessions {
		require.False(t, seen[s.Slot()])
		seen[s.Slot()] = true
	}
}

func TestGenerateTeacherRestrictedEveryDay(t *testing.T) {
	in := Input{
		Grid:     DefaultGrid(),
		Subjects: []Subject{{ID: "music", WeeklyHours: 2, TeacherID: "t1"}},
		Teachers: map[string]Teacher{"t1": {ID: "t1", RestrictedDays: []int{0, 1, 2, 3, 4}}},
	}

	res, err := Generate(in)
	require.NoError(t, err)
	assert.Empty(t, res.Sessions)
	assert.Equal(t, 2, res.Unmet("music"))
	assertInvariants(t, in, res)
}

func TestGenerateSkipsDayWhereTeacherIsReserved(t *testing.T) {
	in := Input{
		Grid:     DefaultGrid(),
		Subjects: []Subject{{ID: "chem", WeeklyHours: 1, TeacherID: "t1"}},
		Teachers: map[string]Teacher{"t1": {ID: "t1"}},
		Reserved: map[string][]Slot{"t1": {{0, 1}, {0, 2}, {0, 3}, {0, 4}, {0, 5}}},
	}

	res, err := Generate(in)
	require.NoError(t, err)
	assertInvariants(t, in, res)
	require.Len(t, res.Sessions, 1)
	assert.Equal(t, Session{SubjectID: "chem", Day: 1, Period: 1}, res.Sessions[0])
}

func TestGenerateLargerDemandGoesFirst(t *testing.T) {
	in := Input{
		Grid: Grid{Days: 2, Periods: 1},
		Subjects: []Subject{
			{ID: "small", WeeklyHours: 1},
			{ID: "big", WeeklyHours: 2},
		},
	}

	res, err := Generate(in)
	require.NoError(t, err)
	assertInvariants(t, in, res)
	assert.Equal(t, []int{0, 1}, daysOf(res.Sessions, "big"))
	assert.Equal(t, 1, res.Unmet("small"))
}

// Same-day placement is a deliberate last resort: it only happens once every
// other admissible slot in the grid is gone.
func TestGenerateSameDayOnlyAsLastResort(t *testing.T) {
	in := Input{
		Grid:     Grid{Days: 1, Periods: 3},
		Subjects: []Subject{{ID: "pe", WeeklyHours: 3}},
	}

	res, err := Generate(in)
	require.NoError(t, err)
	assertInvariants(t, in, res)
	assert.Equal(t, []Session{
		{SubjectID: "pe", Day: 0, Period: 1},
		{SubjectID: "pe", Day: 0, Period: 2},
		{SubjectID: "pe", Day: 0, Period: 3},
	}, res.Sessions)
}

func TestGenerateOneSessionPerDayWhileFreshDaysRemain(t *testing.T) {
	in := Input{
		Grid: DefaultGrid(),
		Subjects: []Subject{
			{ID: "a", WeeklyHours: 4, TeacherID: "t1"},
			{ID: "b", WeeklyHours: 3, TeacherID: "t2", RestrictedDays: []int{4}},
			{ID: "c", WeeklyHours: 2, TeacherID: "t1"},
		},
		Teachers: map[string]Teacher{"t1": {ID: "t1"}, "t2": {ID: "t2", RestrictedDays: []int{0}}},
	}

	res, err := Generate(in)
	require.NoError(t, err)
	assertInvariants(t, in, res)
	assert.Empty(t, res.UnmetHours)
	for _, id := range []string{"a", "b", "c"} {
		seen := map[int]bool{}
		for _, day := range daysOf(res.Sessions, id) {
			assert.False(t, seen[day], "subject %s repeated on day %d", id, day)
			seen[day] = true
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	in := Input{
		Grid: DefaultGrid(),
		Subjects: []Subject{
			{ID: "s1", WeeklyHours: 4, TeacherID: "t1"},
			{ID: "s2", WeeklyHours: 4, TeacherID: "t1", RestrictedDays: []int{2}},
			{ID: "s3", WeeklyHours: 6, TeacherID: "t2"},
			{ID: "s4", WeeklyHours: 3},
			{ID: "s5", WeeklyHours: 5, TeacherID: "t3"},
			{ID: "s6", WeeklyHours: 7, TeacherID: "t2", RestrictedDays: []int{0, 1}},
		},
		Teachers: map[string]Teacher{
			"t1": {ID: "t1", RestrictedDays: []int{4}},
			"t2": {ID: "t2"},
			"t3": {ID: "t3", RestrictedDays: []int{1, 3}},
		},
	}

	first, err := Generate(in)
	require.NoError(t, err)
	second, err := Generate(in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assertInvariants(t, in, first)
	assert.LessOrEqual(t, len(first.Sessions), in.Grid.Capacity())
}

func TestGenerateOverCapacity(t *testing.T) {
	in := Input{
		Grid: Grid{Days: 2, Periods: 2},
		Subjects: []Subject{
			{ID: "x", WeeklyHours: 3},
			{ID: "y", WeeklyHours: 3},
		},
	}

	res, err := Generate(in)
	require.NoError(t, err)
	assertInvariants(t, in, res)
	assert.Len(t, res.Sessions, 4)
	assert.Equal(t, 2, res.Unmet("x")+res.Unmet("y"))
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"empty grid", Input{Grid: Grid{Days: 0, Periods: 5}, Subjects: []Subject{{ID: "a", WeeklyHours: 1}}}},
		{"zero hours", Input{Grid: DefaultGrid(), Subjects: []Subject{{ID: "a", WeeklyHours: 0}}}},
		{"restricted day out of range", Input{Grid: DefaultGrid(), Subjects: []Subject{{ID: "a", WeeklyHours: 1, RestrictedDays: []int{5}}}}},
		{"unknown teacher", Input{Grid: DefaultGrid(), Subjects: []Subject{{ID: "a", WeeklyHours: 1, TeacherID: "ghost"}}}},
		{"duplicate subject", Input{Grid: DefaultGrid(), Subjects: []Subject{{ID: "a", WeeklyHours: 1}, {ID: "a", WeeklyHours: 2}}}},
		{"missing id", Input{Grid: DefaultGrid(), Subjects: []Subject{{WeeklyHours: 1}}}},
		{"teacher day out of range", Input{
			Grid:     DefaultGrid(),
			Subjects: []Subject{{ID: "a", WeeklyHours: 1, TeacherID: "t"}},
			Teachers: map[string]Teacher{"t": {ID: "t", RestrictedDays: []int{-1}}},
		}},
		{"reserved slot outside grid", Input{
			Grid:     DefaultGrid(),
			Subjects: []Subject{{ID: "a", WeeklyHours: 1}},
			Reserved: map[string][]Slot{"t": {{Day: 0, Period: 0}}},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Generate(tc.in)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, ErrInvalidInput))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.NotEmpty(t, verr.Problems)
		})
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	err := Validate(Input{
		Grid: DefaultGrid(),
		Subjects: []Subject{
			{ID: "a", WeeklyHours: -1, RestrictedDays: []int{9}},
			{ID: "b", WeeklyHours: 1, TeacherID: "nobody"},
		},
	})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 3)
}

func TestRandomStrategyIsReproducibleWithSeed(t *testing.T) {
	in := Input{
		Grid: DefaultGrid(),
		Subjects: []Subject{
			{ID: "s1", WeeklyHours: 5, TeacherID: "t1"},
			{ID: "s2", WeeklyHours: 4, TeacherID: "t1"},
			{ID: "s3", WeeklyHours: 6, RestrictedDays: []int{0}},
			{ID: "s4", WeeklyHours: 3, TeacherID: "t2"},
		},
		Teachers: map[string]Teacher{"t1": {ID: "t1", RestrictedDays: []int{3}}, "t2": {ID: "t2"}},
	}

	first, err := Run(in, Random(42))
	require.NoError(t, err)
	second, err := Run(in, Random(42))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "random", first.Strategy)
	assertInvariants(t, in, first)
}

func TestRandomStrategyKeepsInvariantsAcrossSeeds(t *testing.T) {
	in := Input{
		Grid: DefaultGrid(),
		Subjects: []Subject{
			{ID: "s1", WeeklyHours: 8, TeacherID: "t1"},
			{ID: "s2", WeeklyHours: 8, TeacherID: "t1"},
			{ID: "s3", WeeklyHours: 8, TeacherID: "t2", RestrictedDays: []int{1}},
			{ID: "s4", WeeklyHours: 6},
		},
		Teachers: map[string]Teacher{"t1": {ID: "t1"}, "t2": {ID: "t2", RestrictedDays: []int{4}}},
	}

	for seed := int64(0); seed < 25; seed++ {
		res, err := Run(in, Random(seed))
		require.NoError(t, err)
		assertInvariants(t, in, res)
	}
}

func TestRunDefaultsToGreedy(t *testing.T) {
	res, err := Run(Input{Grid: DefaultGrid(), Subjects: []Subject{{ID: "a", WeeklyHours: 1}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "greedy", res.Strategy)
	assert.Equal(t, 1, res.Placed("a"))
}
