package seed

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	appModels "github.com/yigit/placement/internal/app/models"
	appRepos "github.com/yigit/placement/internal/app/repositories"
)

// DemoStudents are inserted by CreateDefaultData
func DemoStudents() []*appModels.Student {
	return []*appModels.Student{
		{ID: "stu-1", RollNumber: "21CS001", Name: "Asha Raman", Email: "asha@campus.edu", CGPA: 8.4,
			Batch: "2025", Department: "CSE", Gender: "female", Skills: []string{"Go", "SQL", "Docker"}},
		{ID: "stu-2", RollNumber: "21CS002", Name: "Vikram Iyer", Email: "vikram@campus.edu", CGPA: 6.9,
			CurrentArrears: 1, HistoryArrears: 2, Batch: "2025", Department: "CSE", Gender: "male", Skills: []string{"Java"}},
		{ID: "stu-3", RollNumber: "21EC014", Name: "Meera Das", Email: "meera@campus.edu", CGPA: 9.1,
			Batch: "2025", Department: "ECE", Gender: "female", Skills: []string{"Python", "SQL"}},
	}
}

// DemoJobs are inserted by CreateDefaultData. Deadlines are relative to now.
func DemoJobs(now time.Time) []*appModels.Job {
	soon := now.Add(14 * 24 * time.Hour)
	return []*appModels.Job{
		{
			ID: "acme-sde", Company: "Acme", Title: "Software Engineer", Location: "Bengaluru", Package: "18 LPA",
			Status: appModels.JobStatusActive, Deadline: &soon,
			Rounds: []appModels.Round{{Name: "Aptitude"}, {Name: "Technical"}, {Name: "HR"}},
			Criteria: appModels.EligibilityCriteria{
				MinCGPA: 7, RequiredSkills: []string{"Go", "SQL"}, EligibleBatches: []string{"2025"},
				GenderPreference: appModels.GenderAny, MaxCurrentArrears: 0, MaxHistoryArrears: 1,
			},
			ScreeningQuestions: []string{"Are you willing to relocate?"},
		},
		{
			ID: "globex-intern", Company: "Globex", Title: "Data Intern", Location: "Remote", Stipend: "40000/month",
			Status: appModels.JobStatusActive, Deadline: &soon,
			Rounds: []appModels.Round{{Name: "Interview"}},
			Criteria: appModels.EligibilityCriteria{
				RequiredSkills: []string{"SQL"}, EligibleBatches: []string{}, GenderPreference: appModels.GenderAny,
			},
			ScreeningQuestions: []string{},
		},
	}
}

// CreateDefaultData inserts demo students and jobs if they don't exist.
func CreateDefaultData(ctx context.Context, repos *appRepos.Repositories, lgr zerolog.Logger) error {
	lgr.Info().Msg("Checking/Creating default data (Students/Jobs)...")
	var finalErr error // To collect potential errors without stopping the process

	for _, s := range DemoStudents() {
		err := repos.StudentRepository.Create(ctx, s)
		if err != nil && !errors.Is(err, appRepos.ErrAlreadyExists) {
			lgr.Error().Err(err).Str("studentID", s.ID).Msg("Error creating demo student")
			finalErr = errors.Join(finalErr, err)
		}
	}

	for _, j := range DemoJobs(time.Now().UTC()) {
		err := repos.JobRepository.Create(ctx, j)
		if err != nil && !errors.Is(err, appRepos.ErrAlreadyExists) {
			lgr.Error().Err(err).Str("jobID", j.ID).Msg("Error creating demo job")
			finalErr = errors.Join(finalErr, err)
		}
	}

	if finalErr == nil {
		lgr.Info().Msg("Default data ready")
	}
	return finalErr
}
