package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-loan-api/internal/models"
)

const semesterColumns = `id, year, type, start_date, end_date, registration_deadline, tuition_deadline, exam_start_date, next_semester_id`

// SemesterRepository loads the semester reference table. Semesters are seeded
// at deployment time; this repository exposes no write operations.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository instantiates a semester repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// ListAll returns every defined semester ordered chronologically.
func (r *SemesterRepository) ListAll(ctx context.Context) ([]models.Semester, error) {
	query := fmt.Sprintf("SELECT %s FROM semesters ORDER BY start_date ASC", semesterColumns)
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}
