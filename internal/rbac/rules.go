package rbac

const (
	PermSessionStart  = "session:start"
	PermSessionView   = "session:view"
	PermSessionAnswer = "session:answer"
	PermSessionSubmit = "session:submit"
	PermProgressOwn   = "progress:view-own"
	PermProgressAll   = "progress:view-all"
	PermAttemptOwn    = "attempt:view-own"
	PermAttemptAll    = "attempt:view-all"
	PermReportView    = "report:view"
)

// RolePermissions is the default policy. Learners sit exams; tutors and
// coordinators read progress and reports across enrollments.
var RolePermissions = map[string][]string{
	"student": {
		"session:*",
		PermProgressOwn,
		PermAttemptOwn,
	},
	"teacher": {
		PermProgressAll,
		PermAttemptAll,
		PermReportView,
	},
	"admin": {
		"*", // everything
	},
}
