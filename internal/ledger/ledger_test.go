package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/mindengage-ead/internal/ledger"
)

func TestSummarize(t *testing.T) {
	sum := ledger.Summarize([]ledger.Attempt{
		{CourseID: "teologia", InstallationID: "norte", Score: 8, Approved: true},
		{CourseID: "teologia", InstallationID: "sul", Score: 4},
		{CourseID: "lideranca", InstallationID: "norte", Score: 6},
	})
	assert.Equal(t, ledger.Stats{Attempts: 3, Approved: 1, Failed: 2, AverageScore: 6}, sum.Total)

	assert.Equal(t, []ledger.GroupStats{
		{Key: "lideranca", Stats: ledger.Stats{Attempts: 1, Failed: 1, AverageScore: 6}},
		{Key: "teologia", Stats: ledger.Stats{Attempts: 2, Approved: 1, Failed: 1, AverageScore: 6}},
	}, sum.ByCourse)
	assert.Len(t, sum.ByInstallation, 2)
	assert.Equal(t, "norte", sum.ByInstallation[0].Key)
	assert.Equal(t, 7.0, sum.ByInstallation[0].AverageScore)
}

func TestSummarizeEmpty(t *testing.T) {
	sum := ledger.Summarize(nil)
	assert.Zero(t, sum.Total.Attempts)
	assert.Zero(t, sum.Total.AverageScore)
	assert.Empty(t, sum.ByCourse)
}

func TestListOpts(t *testing.T) {
	o := ledger.ListOpts{Limit: 10000, Offset: -3}.Normalize()
	assert.Equal(t, 500, o.Limit)
	assert.Equal(t, 0, o.Offset)
	assert.Equal(t, 50, ledger.ListOpts{}.Normalize().Limit)

	a := ledger.Attempt{EnrollmentID: "e1", ModuleID: "m1", StudentID: "s1", CourseID: "c1", InstallationID: "i1"}
	assert.True(t, ledger.ListOpts{}.Matches(a))
	assert.True(t, ledger.ListOpts{StudentID: "s1", CourseID: "c1"}.Matches(a))
	assert.False(t, ledger.ListOpts{ModuleID: "m2"}.Matches(a))
}
