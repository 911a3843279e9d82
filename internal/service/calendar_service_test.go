package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-loan-api/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func testSemesters() []models.Semester {
	return []models.Semester{
		{
			ID:             "2026-ADVENT",
			Year:           2026,
			Type:           models.SemesterAdvent,
			StartDate:      date(2026, time.January, 12),
			EndDate:        date(2026, time.April, 10),
			NextSemesterID: strPtr("2026-EASTER"),
		},
		{
			ID:             "2026-EASTER",
			Year:           2026,
			Type:           models.SemesterEaster,
			StartDate:      date(2026, time.April, 27),
			EndDate:        date(2026, time.July, 24),
			NextSemesterID: strPtr("2026-TRINITY"),
		},
		{
			ID:        "2026-TRINITY",
			Year:      2026,
			Type:      models.SemesterTrinity,
			StartDate: date(2026, time.September, 7),
			EndDate:   date(2026, time.December, 4),
		},
	}
}

func TestNewCalendarService_RejectsInvalidTables(t *testing.T) {
	_, err := NewCalendarService([]models.Semester{
		{ID: "bad", StartDate: date(2026, time.April, 10), EndDate: date(2026, time.January, 12)},
	})
	assert.Error(t, err)

	_, err = NewCalendarService([]models.Semester{
		{ID: "a", StartDate: date(2026, time.January, 1), EndDate: date(2026, time.February, 1), NextSemesterID: strPtr("missing")},
	})
	assert.Error(t, err)

	_, err = NewCalendarService([]models.Semester{
		{ID: "a", StartDate: date(2026, time.January, 1), EndDate: date(2026, time.February, 1)},
		{ID: "a", StartDate: date(2026, time.March, 1), EndDate: date(2026, time.April, 1)},
	})
	assert.Error(t, err)
}

func TestCalendarService_CurrentSemester(t *testing.T) {
	svc, err := NewCalendarService(testSemesters())
	require.NoError(t, err)

	// Boundaries are inclusive on both ends.
	sem := svc.CurrentSemester(date(2026, time.January, 12))
	require.NotNil(t, sem)
	assert.Equal(t, "2026-ADVENT", sem.ID)

	sem = svc.CurrentSemester(date(2026, time.April, 10))
	require.NotNil(t, sem)
	assert.Equal(t, "2026-ADVENT", sem.ID)

	// A gap between semesters is a valid "no semester" outcome.
	assert.Nil(t, svc.CurrentSemester(date(2026, time.April, 15)))
	assert.Nil(t, svc.CurrentSemester(date(2025, time.June, 1)))
}

func TestCalendarService_GracePeriodEnd(t *testing.T) {
	svc, err := NewCalendarService(testSemesters())
	require.NoError(t, err)

	// Loan taken in ADVENT: due at the start of EASTER.
	end := svc.GracePeriodEnd(date(2026, time.February, 1))
	require.NotNil(t, end)
	assert.Equal(t, date(2026, time.April, 27), *end)

	// Loan taken in the last defined semester has no deadline yet.
	assert.Nil(t, svc.GracePeriodEnd(date(2026, time.October, 1)))

	// Loan taken outside the calendar has no deadline either.
	assert.Nil(t, svc.GracePeriodEnd(date(2026, time.April, 15)))
}

func TestCalendarService_IsLoanOverdue(t *testing.T) {
	svc, err := NewCalendarService(testSemesters())
	require.NoError(t, err)

	loanDate := date(2026, time.February, 1)

	// One day before the next semester starts: still inside the grace period.
	assert.False(t, svc.IsLoanOverdue(loanDate, date(2026, time.April, 26)))

	// The grace period ends the moment the next semester starts.
	assert.True(t, svc.IsLoanOverdue(loanDate, date(2026, time.April, 27)))
	assert.True(t, svc.IsLoanOverdue(loanDate, date(2026, time.June, 1)))

	// Undefined deadlines fail safe: never overdue.
	assert.False(t, svc.IsLoanOverdue(date(2026, time.October, 1), date(2030, time.January, 1)))
	assert.False(t, svc.IsLoanOverdue(date(2026, time.April, 15), date(2030, time.January, 1)))
}

func TestCalendarService_NextSemester(t *testing.T) {
	svc, err := NewCalendarService(testSemesters())
	require.NoError(t, err)

	next := svc.NextSemester("2026-ADVENT")
	require.NotNil(t, next)
	assert.Equal(t, "2026-EASTER", next.ID)

	assert.Nil(t, svc.NextSemester("2026-TRINITY"))
	assert.Nil(t, svc.NextSemester("unknown"))
}
