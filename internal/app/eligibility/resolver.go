// Package eligibility decides whether a student meets a job's academic criteria.
package eligibility

import (
	"fmt"
	"math"
	"strings"

	"github.com/yigit/placement/internal/app/models"
)

// Result is the verdict of Resolve. Reasons has one entry per failed criterion.
type Result struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

// Resolve evaluates all criteria independently so every blocking factor is reported at once
func Resolve(student *models.Student, job *models.Job) Result {
	c := job.Criteria
	reasons := make([]string, 0)

	cgpa := student.CGPA
	if math.IsNaN(cgpa) {
		cgpa = 0
	}
	if cgpa < c.MinCGPA {
		reasons = append(reasons, fmt.Sprintf("CGPA %.2f is below the required %.2f", cgpa, c.MinCGPA))
	}

	if missing := missingSkills(student.Skills, c.RequiredSkills); len(missing) > 0 {
		reasons = append(reasons, "Missing required skills: "+strings.Join(missing, ", "))
	}

	if len(c.EligibleBatches) > 0 && !batchMatches(student.Batch, c.EligibleBatches) {
		reasons = append(reasons, fmt.Sprintf("Batch %q is not in the eligible batches (%s)", student.Batch, strings.Join(c.EligibleBatches, ", ")))
	}

	if !genderMatches(student.Gender, c.GenderPreference) {
		reasons = append(reasons, fmt.Sprintf("This job is open to %s candidates only", c.GenderPreference))
	}

	if c.MaxCurrentArrears > 0 && student.CurrentArrears > c.MaxCurrentArrears {
		reasons = append(reasons, fmt.Sprintf("Current arrears %d exceed the allowed %d", student.CurrentArrears, c.MaxCurrentArrears))
	}

	if c.MaxHistoryArrears > 0 && student.HistoryArrears > c.MaxHistoryArrears {
		reasons = append(reasons, fmt.Sprintf("History of arrears %d exceeds the allowed %d", student.HistoryArrears, c.MaxHistoryArrears))
	}

	return Result{Eligible: len(reasons) == 0, Reasons: reasons}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// missingSkills returns the required skills absent from have, in requirement order
func missingSkills(have, required []string) []string {
	if len(required) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(have))
	for _, s := range have {
		set[normalize(s)] = struct{}{}
	}

	var missing []string
	for _, r := range required {
		if normalize(r) == "" {
			continue
		}
		if _, ok := set[normalize(r)]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// batchMatches uses containment in both directions so "2024" and "2024-A" match
func batchMatches(batch string, eligible []string) bool {
	b := normalize(batch)
	if b == "" {
		return false
	}
	for _, e := range eligible {
		e = normalize(e)
		if e == "" {
			continue
		}
		if strings.Contains(b, e) || strings.Contains(e, b) {
			return true
		}
	}
	return false
}

func genderMatches(gender, preference string) bool {
	p := normalize(preference)
	if p == "" || p == models.GenderAny {
		return true
	}
	return normalize(gender) == p
}
