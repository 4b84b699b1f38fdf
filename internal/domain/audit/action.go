package audit

// Action represents the category of audited user action
// Following typed-constant pattern for domain values
type Action string

// User and session actions
const (
	ActionUserLogin     Action = "user.login"
	ActionUserLogout    Action = "user.logout"
	ActionUserCreate    Action = "user.create"
	ActionUserUpdate    Action = "user.update"
	ActionUserDelete    Action = "user.delete"
	ActionSessionRevoke Action = "session.revoke"
)

// Contact actions
const (
	ActionContactCreate Action = "contact.create"
	ActionContactUpdate Action = "contact.update"
	ActionContactDelete Action = "contact.delete"
	ActionContactView   Action = "contact.view"
	ActionContactExport Action = "contact.export"
	ActionContactImport Action = "contact.import"
)

// Settings actions
const (
	ActionSettingsUpdate Action = "settings.update"
)

// Compliance workflow actions
const (
	ActionKYCCreate         Action = "kyc.create"
	ActionKYCTransition     Action = "kyc.transition"
	ActionKYCDocumentUpload Action = "kyc.document_upload"
	ActionKYCDocumentVerify Action = "kyc.document_verify"
	ActionKYCCheckComplete  Action = "kyc.check_complete"
)

var validActions = map[Action]struct{}{
	ActionUserLogin:         {},
	ActionUserLogout:        {},
	ActionUserCreate:        {},
	ActionUserUpdate:        {},
	ActionUserDelete:        {},
	ActionSessionRevoke:     {},
	ActionContactCreate:     {},
	ActionContactUpdate:     {},
	ActionContactDelete:     {},
	ActionContactView:       {},
	ActionContactExport:     {},
	ActionContactImport:     {},
	ActionSettingsUpdate:    {},
	ActionKYCCreate:         {},
	ActionKYCTransition:     {},
	ActionKYCDocumentUpload: {},
	ActionKYCDocumentVerify: {},
	ActionKYCCheckComplete:  {},
}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// IsValid checks the action against the closed enum
func (a Action) IsValid() bool {
	_, ok := validActions[a]
	return ok
}

// TargetType identifies the kind of entity an action was applied to
type TargetType string

const (
	TargetTypeUser     TargetType = "user"
	TargetTypeContact  TargetType = "contact"
	TargetTypeSettings TargetType = "settings"
	TargetTypeSession  TargetType = "session"
)

// String returns the string representation of the target type
func (t TargetType) String() string {
	return string(t)
}

// IsValid checks the target type against the closed enum
func (t TargetType) IsValid() bool {
	switch t {
	case TargetTypeUser, TargetTypeContact, TargetTypeSettings, TargetTypeSession:
		return true
	}
	return false
}
