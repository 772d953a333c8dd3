package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplicationKey(t *testing.T) {
	s := &Student{ID: "u-9", RollNumber: "21CS001"}
	assert.Equal(t, "job42_21CS001", ApplicationKey("job42", s.Key()))

	s.RollNumber = ""
	assert.Equal(t, "job42_u-9", ApplicationKey("job42", s.Key()))
}

func TestFreezeStateExpiry(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	var none *FreezeState
	assert.False(t, none.IsActive())
	assert.False(t, none.ExpiredAt(now))

	assert.True(t, (&FreezeState{Active: true, Until: &past}).ExpiredAt(now))
	assert.True(t, (&FreezeState{Active: true, Until: &now}).ExpiredAt(now))
	assert.False(t, (&FreezeState{Active: true, Until: &future}).ExpiredAt(now))
	assert.False(t, (&FreezeState{Active: true}).ExpiredAt(now), "indefinite freezes never expire")
	assert.False(t, (&FreezeState{Active: false, Until: &past}).ExpiredAt(now))
}

func TestStudentIsFrozen(t *testing.T) {
	var s *Student
	assert.False(t, s.IsFrozen())
	assert.False(t, (&Student{}).IsFrozen())
	assert.True(t, (&Student{Freeze: &FreezeState{Active: true}}).IsFrozen())
}

func TestJobDeadlineAndRounds(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	j := &Job{Status: JobStatusActive, Rounds: []Round{{Name: "Online Test"}, {Name: "Interview"}}}

	assert.False(t, j.DeadlinePassed(now))
	j.Deadline = &past
	assert.True(t, j.DeadlinePassed(now))

	assert.Equal(t, []string{"Online Test", "Interview"}, j.RoundNames())
	assert.Equal(t, 1, j.RoundIndex(" interview "))
	assert.Equal(t, -1, j.RoundIndex("HR"))
}

func TestStatusIsValid(t *testing.T) {
	assert.True(t, StatusInterviewScheduled.IsValid())
	assert.False(t, ApplicationStatus("hired").IsValid())
}
