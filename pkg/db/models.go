package db

import "time"

// DateFormat is the canonical format for schedule dates throughout the engine.
const DateFormat = "2006-01-02"

// Frequency is the repeat frequency of a recurrence pattern
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

// AssignmentMode decides how an assignee is picked for each generated instance
type AssignmentMode string

const (
	ModeFixed            AssignmentMode = "fixed"
	ModeRotation         AssignmentMode = "rotation"
	ModeFairDistribution AssignmentMode = "fair-distribution"
	ModeUnassigned       AssignmentMode = "unassigned"
)

// AssignmentOrigin records how an instance got its assignee at creation time
type AssignmentOrigin string

const (
	OriginFixed            AssignmentOrigin = "fixed"
	OriginRotation         AssignmentOrigin = "rotation"
	OriginFairDistribution AssignmentOrigin = "fair-distribution"
	OriginManualOverride   AssignmentOrigin = "manual-override"
	OriginUnassigned       AssignmentOrigin = "unassigned"
	OriginAdd              AssignmentOrigin = "add"
)

// DefinitionStatus is the lifecycle status of a duty definition
type DefinitionStatus string

const (
	DefinitionActive   DefinitionStatus = "active"
	DefinitionPaused   DefinitionStatus = "paused"
	DefinitionArchived DefinitionStatus = "archived"
)

// InstanceStatus is the lifecycle status of a materialized duty instance.
// scheduled -> in-progress -> completed is the user-driven path; missed,
// cancelled and skipped are terminal side exits.
type InstanceStatus string

const (
	StatusScheduled  InstanceStatus = "scheduled"
	StatusInProgress InstanceStatus = "in-progress"
	StatusCompleted  InstanceStatus = "completed"
	StatusMissed     InstanceStatus = "missed"
	StatusCancelled  InstanceStatus = "cancelled"
	StatusSkipped    InstanceStatus = "skipped"
)

// IsTerminal reports whether the status permits no further transitions
func (s InstanceStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusMissed, StatusCancelled, StatusSkipped:
		return true
	}
	return false
}

// ExceptionType classifies a per-date override of a duty definition
type ExceptionType string

const (
	ExceptionSkip   ExceptionType = "skip"
	ExceptionModify ExceptionType = "modify"
	ExceptionAdd    ExceptionType = "add"
)

// RecurrencePattern is a declarative repeat rule for a duty definition.
// ByDays is only meaningful for weekly frequency and is ignored otherwise.
type RecurrencePattern struct {
	Frequency Frequency `yaml:"frequency" validate:"required,oneof=daily weekly monthly yearly"`
	Interval  int       `yaml:"interval,omitempty" validate:"omitempty,min=1"`
	ByDays    []string  `yaml:"byDays,omitempty" validate:"dive,oneof=MO TU WE TH FR SA SU"`
	Until     string    `yaml:"until,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// DutyDefinition is a recurring duty template owned by a stable
type DutyDefinition struct {
	ID                string            `yaml:"id"`
	StableID          string            `yaml:"stableID" validate:"required"`
	Title             string            `yaml:"title" validate:"required"`
	Category          string            `yaml:"category" validate:"required"`
	Pattern           RecurrencePattern `yaml:"pattern" validate:"required"`
	TimeOfDay         string            `yaml:"timeOfDay" validate:"required,datetime=15:04"`
	DurationMinutes   int               `yaml:"durationMinutes" validate:"required,min=1,max=1440"`
	Mode              AssignmentMode    `yaml:"mode" validate:"required,oneof=fixed rotation fair-distribution unassigned"`
	RotationGroup     []string          `yaml:"rotationGroup,omitempty"`
	FixedAssigneeID   string            `yaml:"fixedAssigneeID,omitempty"`
	HorseID           string            `yaml:"horseID,omitempty"`
	Weight            int               `yaml:"weight" validate:"required,min=1,max=4"`
	HolidayWeighting  bool              `yaml:"holidayWeighting,omitempty"`
	GenerateDaysAhead int               `yaml:"generateDaysAhead" validate:"required,min=1,max=365"`
	StartDate         string            `yaml:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate           string            `yaml:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Status            DefinitionStatus  `yaml:"status,omitempty"`

	// RotationCursor is the persisted round-robin position for rotation
	// mode. It advances once per generated instance, inside the same
	// transaction that creates the instance, so pausing and resuming a
	// duty continues the rotation where it left off.
	RotationCursor int `yaml:"-"`
}

// DutyException is a per-date override of a definition's schedule.
// It never mutates the definition; it is consulted at materialization time.
type DutyException struct {
	ID           string
	DefinitionID string
	Date         string
	Type         ExceptionType
	Title        string
	TimeOfDay    string
	AssigneeID   string
	CreatedAt    time.Time
}

// DutyInstance is one concrete, assignable occurrence of a duty
type DutyInstance struct {
	ID              string
	DefinitionID    *string
	StableID        string
	Title           string
	Date            string
	TimeOfDay       string
	DurationMinutes int
	AssigneeID      *string
	AssigneeName    string
	Origin          AssignmentOrigin
	// Weight is captured at generation time so historical fairness
	// accounting stays stable if the definition's weight later changes.
	Weight   int
	Status   InstanceStatus
	Progress int
}

// ScheduledAt returns the instance's scheduled start as a UTC time
func (i *DutyInstance) ScheduledAt() (time.Time, error) {
	return time.Parse(DateFormat+" 15:04", i.Date+" "+i.TimeOfDay)
}

// FairnessLedgerEntry is the accumulated weighted workload of one member of
// one definition's rotation group within one accounting period. Entries are
// created lazily on first assignment and never deleted; a new period key
// supersedes the old one.
type FairnessLedgerEntry struct {
	DefinitionID      string
	MemberID          string
	Period            string
	RawWeightSum      int
	AdjustedWeightSum int
	InstanceCount     int
}

// LedgerDelta is the fairness accumulation to apply when an instance is
// created. It is applied inside the same transaction as the instance upsert
// and only when the upsert actually inserts a row, which is what makes
// re-materialization safe.
type LedgerDelta struct {
	DefinitionID   string
	MemberID       string
	Period         string
	RawWeight      int
	AdjustedWeight int
}

// InstanceWrite is one unit of idempotent materialization work: the instance
// row plus the bookkeeping that must land with it or not at all.
type InstanceWrite struct {
	Instance      DutyInstance
	Ledger        *LedgerDelta
	AdvanceCursor bool
}

// Member is a stable member eligible for duty assignment
type Member struct {
	ID        string
	FirstName string
	LastName  string
}
