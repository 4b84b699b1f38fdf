package compliance

import (
	"time"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
)

// ApprovalValidity is how long an approval stays valid before the record
// expires.
const ApprovalValidity = 365 * 24 * time.Hour

// WorkflowAction is one of the closed set of workflow transitions
type WorkflowAction string

const (
	ActionSubmitForReview    WorkflowAction = "submit_for_review"
	ActionApproveReview      WorkflowAction = "approve_review"
	ActionRejectReview       WorkflowAction = "reject_review"
	ActionRequestChanges     WorkflowAction = "request_changes"
	ActionCompleteCompliance WorkflowAction = "complete_compliance"
	ActionFailCompliance     WorkflowAction = "fail_compliance"
	ActionFinalApprove       WorkflowAction = "final_approve"
	ActionFinalReject        WorkflowAction = "final_reject"
	ActionExpire             WorkflowAction = "expire"
	ActionSuspend            WorkflowAction = "suspend"
	ActionReactivate         WorkflowAction = "reactivate"
)

// String returns the string representation of the workflow action
func (a WorkflowAction) String() string {
	return string(a)
}

// AvailableActions returns the actions legal from the given status. The
// switch is exhaustive over the closed status enum; an unknown status has
// no legal actions.
func AvailableActions(status Status) []WorkflowAction {
	switch status {
	case StatusDraft:
		return []WorkflowAction{ActionSubmitForReview}
	case StatusPendingReview:
		return []WorkflowAction{ActionApproveReview, ActionRejectReview, ActionRequestChanges}
	case StatusComplianceCheck:
		return []WorkflowAction{ActionCompleteCompliance, ActionFailCompliance, ActionFinalApprove, ActionFinalReject}
	case StatusApproved:
		return []WorkflowAction{ActionExpire, ActionSuspend, ActionReactivate}
	case StatusRejected:
		return []WorkflowAction{ActionReactivate}
	case StatusExpired:
		return []WorkflowAction{ActionReactivate}
	case StatusSuspended:
		return []WorkflowAction{ActionReactivate}
	default:
		return nil
	}
}

// TargetStatus returns the status an action transitions to. The switch is
// exhaustive over the closed action enum.
func TargetStatus(action WorkflowAction) (Status, error) {
	switch action {
	case ActionSubmitForReview:
		return StatusPendingReview, nil
	case ActionApproveReview:
		return StatusComplianceCheck, nil
	case ActionRejectReview, ActionRequestChanges, ActionReactivate:
		return StatusDraft, nil
	case ActionCompleteCompliance, ActionFinalApprove:
		return StatusApproved, nil
	case ActionFailCompliance, ActionFinalReject:
		return StatusRejected, nil
	case ActionExpire:
		return StatusExpired, nil
	case ActionSuspend:
		return StatusSuspended, nil
	default:
		return "", errors.NewValidationError("INVALID_ACTION",
			"action must be one of the registered workflow actions")
	}
}

// IsValidTransition reports whether an action is legal from a status
func IsValidTransition(status Status, action WorkflowAction) bool {
	for _, a := range AvailableActions(status) {
		if a == action {
			return true
		}
	}
	return false
}

// actionNames renders the action list for error messages
func actionNames(actions []WorkflowAction) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return names
}

// ApplyTransition applies a workflow action to the record: legality check,
// history entry, status change and the approval side effects, as one
// in-memory unit. An illegal action leaves the record untouched.
func (r *Record) ApplyTransition(action WorkflowAction, actor Actor, reason string) error {
	if err := actor.Validate(); err != nil {
		return err
	}

	if !IsValidTransition(r.Status, action) {
		return errors.NewInvalidTransitionError(string(action), string(r.Status),
			actionNames(AvailableActions(r.Status)))
	}

	target, err := TargetStatus(action)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	r.History = append(r.History, TransitionEntry{
		Action:     string(action),
		FromStatus: r.Status,
		ToStatus:   target,
		UserID:     actor.ID,
		UserName:   actor.Name,
		Reason:     reason,
		Timestamp:  now,
	})

	r.Status = target
	r.UpdatedAt = now

	if target == StatusApproved {
		expiresAt := now.Add(ApprovalValidity)
		r.ApprovedAt = &now
		r.ApprovedBy = actor.ID
		r.ExpiresAt = &expiresAt
	}

	return nil
}
