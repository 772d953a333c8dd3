package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/repositories"
	"github.com/yigit/placement/internal/pkg/apperrors"
)

// StudentService exposes student lookups
type StudentService struct {
	students StudentStore
}

// NewStudentService creates a new student service instance
func NewStudentService(students StudentStore) *StudentService {
	return &StudentService{students: students}
}

// GetByRollNumber returns a student by roll number
func (s *StudentService) GetByRollNumber(ctx context.Context, rollNumber string) (*models.Student, error) {
	student, err := s.students.GetByRollNumber(ctx, rollNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

// List returns one page of students
func (s *StudentService) List(ctx context.Context, filter repositories.StudentFilter, offset, limit uint64) ([]*models.Student, int64, error) {
	students, total, err := s.students.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing students: %w", err)
	}
	return students, total, nil
}
