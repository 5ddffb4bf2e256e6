package model

// ConstraintType tags what a constraint is about.
type ConstraintType string

const (
	ConstraintDeadline   ConstraintType = "deadline"
	ConstraintPolicy     ConstraintType = "policy"
	ConstraintInventory  ConstraintType = "inventory"
	ConstraintPreference ConstraintType = "preference"
)

// Constraint is a requirement attached to a resolved intent (IntentCode set)
// or to the whole request (IntentCode empty). Hard constraints must be
// satisfied before the related action executes; soft ones should be.
type Constraint struct {
	Type        ConstraintType `json:"type"`
	Description string         `json:"description"`
	Value       string         `json:"value,omitempty"`
	Hard        bool           `json:"hard"`
	IntentCode  string         `json:"intent_code,omitempty"`
}

// ConstraintStatus is the solver's verdict on one constraint.
type ConstraintStatus string

const (
	ConstraintSatisfied ConstraintStatus = "satisfied"
	ConstraintViolable  ConstraintStatus = "violable"
	ConstraintBlocked   ConstraintStatus = "blocked"
)

// SolvedConstraint pairs a constraint with its solved status.
type SolvedConstraint struct {
	Constraint
	Status ConstraintStatus `json:"status"`
	Reason string           `json:"reason,omitempty"`
}

// PlanSketch is an alternative the solver proposes when a hard constraint
// is blocked: drop the blocking intent, or substitute a compatible action,
// instead of failing the whole request.
type PlanSketch struct {
	DroppedIntent    string `json:"dropped_intent,omitempty"`
	SubstituteAction string `json:"substitute_action,omitempty"`
	Note             string `json:"note"`
}
