package models

import "time"

// SemesterType represents the recurring academic terms within a year.
type SemesterType string

const (
	SemesterAdvent  SemesterType = "ADVENT"
	SemesterEaster  SemesterType = "EASTER"
	SemesterTrinity SemesterType = "TRINITY"
)

// Semester models one academic term in the institution calendar. Semesters are
// reference data: defined once at deployment time and never mutated at runtime.
// NextSemesterID links semesters into a singly linked chronological chain.
type Semester struct {
	ID                   string       `db:"id" json:"id"`
	Year                 int          `db:"year" json:"year"`
	Type                 SemesterType `db:"type" json:"type"`
	StartDate            time.Time    `db:"start_date" json:"start_date"`
	EndDate              time.Time    `db:"end_date" json:"end_date"`
	RegistrationDeadline time.Time    `db:"registration_deadline" json:"registration_deadline"`
	TuitionDeadline      time.Time    `db:"tuition_deadline" json:"tuition_deadline"`
	ExamStartDate        time.Time    `db:"exam_start_date" json:"exam_start_date"`
	NextSemesterID       *string      `db:"next_semester_id" json:"next_semester_id,omitempty"`
}

// Contains reports whether the given date falls within the semester interval.
// Both endpoints are inclusive.
func (s Semester) Contains(date time.Time) bool {
	return !date.Before(s.StartDate) && !date.After(s.EndDate)
}
