package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/campus-loan-api/internal/models"
)

// CalendarService answers semester and grace-period questions from an
// injected, immutable semester table. The grace-period rule lives here and
// nowhere else: a loan taken in semester X is due at the start of semester
// X+1. Dates outside the defined calendar resolve to "undefined", which
// callers treat as "not yet due".
type CalendarService struct {
	semesters []models.Semester
	byID      map[string]models.Semester
}

// NewCalendarService validates and indexes the semester table. The table is
// treated as read-only reference data after construction.
func NewCalendarService(semesters []models.Semester) (*CalendarService, error) {
	ordered := make([]models.Semester, len(semesters))
	copy(ordered, semesters)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].StartDate.Before(ordered[j].StartDate) })

	byID := make(map[string]models.Semester, len(ordered))
	for _, s := range ordered {
		if s.ID == "" {
			return nil, fmt.Errorf("semester with empty id")
		}
		if !s.StartDate.Before(s.EndDate) {
			return nil, fmt.Errorf("semester %s: start_date must precede end_date", s.ID)
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate semester id %s", s.ID)
		}
		byID[s.ID] = s
	}

	// The next-semester chain must move strictly forward in time.
	for _, s := range ordered {
		if s.NextSemesterID == nil {
			continue
		}
		next, ok := byID[*s.NextSemesterID]
		if !ok {
			return nil, fmt.Errorf("semester %s links to unknown semester %s", s.ID, *s.NextSemesterID)
		}
		if !next.StartDate.After(s.StartDate) {
			return nil, fmt.Errorf("semester chain %s -> %s does not advance in time", s.ID, next.ID)
		}
	}

	return &CalendarService{semesters: ordered, byID: byID}, nil
}

// Semesters returns the full table in chronological order.
func (s *CalendarService) Semesters() []models.Semester {
	out := make([]models.Semester, len(s.semesters))
	copy(out, s.semesters)
	return out
}

// CurrentSemester returns the semester containing the given date, or nil when
// the date falls in a gap between defined semesters. A gap is a valid outcome.
func (s *CalendarService) CurrentSemester(date time.Time) *models.Semester {
	for i := range s.semesters {
		if s.semesters[i].Contains(date) {
			sem := s.semesters[i]
			return &sem
		}
	}
	return nil
}

// SemesterByID looks up a semester, or nil when undefined.
func (s *CalendarService) SemesterByID(id string) *models.Semester {
	if sem, ok := s.byID[id]; ok {
		return &sem
	}
	return nil
}

// NextSemester follows the chain link, or nil when the semester is the last
// defined one. The chain end is an expected condition, not an error.
func (s *CalendarService) NextSemester(id string) *models.Semester {
	sem, ok := s.byID[id]
	if !ok || sem.NextSemesterID == nil {
		return nil
	}
	if next, ok := s.byID[*sem.NextSemesterID]; ok {
		return &next
	}
	return nil
}

// GracePeriodEnd derives the repayment deadline for a loan taken on loanDate:
// the start of the semester following the one containing loanDate. Returns nil
// when the loan date falls outside the calendar or the chain is exhausted.
func (s *CalendarService) GracePeriodEnd(loanDate time.Time) *time.Time {
	origin := s.CurrentSemester(loanDate)
	if origin == nil {
		return nil
	}
	next := s.NextSemester(origin.ID)
	if next == nil {
		return nil
	}
	end := next.StartDate
	return &end
}

// IsLoanOverdue reports whether a loan taken on loanDate has crossed its
// grace-period deadline as of asOfDate. An undefined deadline fails safe:
// the loan is never judged overdue.
func (s *CalendarService) IsLoanOverdue(loanDate, asOfDate time.Time) bool {
	end := s.GracePeriodEnd(loanDate)
	if end == nil {
		return false
	}
	return !asOfDate.Before(*end)
}
