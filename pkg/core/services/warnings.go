package services

// Warning codes for data-quality and referential problems surfaced by a
// materialization run. Warnings never abort a run; they are counted and
// reported alongside whatever was successfully created.
const (
	WarnConflictingExceptions = "conflicting-exceptions"
	WarnEmptyRotationGroup    = "empty-rotation-group"
	WarnMissingFixedAssignee  = "missing-fixed-assignee"
	WarnMemberDirectory       = "member-directory"
	WarnHolidayLookup         = "holiday-lookup"
)

// Warning is one non-fatal problem encountered during a run
type Warning struct {
	Code    string
	Date    string
	Message string
}
