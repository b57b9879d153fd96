package auth

import "fmt"

// Section is a functional area of the application guarded by the permission matrix.
type Section string

// Action is an operation on a section.
type Action string

// Sections
const (
	SectionDashboard Section = "dashboard"
	SectionTables    Section = "tables"
	SectionSessions  Section = "sessions"
	SectionInventory Section = "inventory"
	SectionPOS       Section = "pos"
	SectionFinance   Section = "finance"
	SectionReports   Section = "reports"
	SectionUsers     Section = "users"
	SectionSettings  Section = "settings"
	SectionCompanies Section = "companies"
)

// Actions
const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

var knownSections = map[Section]struct{}{
	SectionDashboard: {},
	SectionTables:    {},
	SectionSessions:  {},
	SectionInventory: {},
	SectionPOS:       {},
	SectionFinance:   {},
	SectionReports:   {},
	SectionUsers:     {},
	SectionSettings:  {},
	SectionCompanies: {},
}

var knownActions = map[Action]struct{}{
	ActionView:   {},
	ActionCreate: {},
	ActionEdit:   {},
	ActionDelete: {},
}

// ParseSection validates a section name.
func ParseSection(s string) (Section, error) {
	if _, ok := knownSections[Section(s)]; !ok {
		return "", fmt.Errorf("unknown section %q", s)
	}
	return Section(s), nil
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	if _, ok := knownActions[Action(s)]; !ok {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return Action(s), nil
}

// IsWrite reports whether the action mutates data.
func (a Action) IsWrite() bool {
	return a == ActionCreate || a == ActionEdit || a == ActionDelete
}
