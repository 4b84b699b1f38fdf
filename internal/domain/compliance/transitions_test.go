package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
)

func TestAvailableActions(t *testing.T) {
	tests := []struct {
		status  Status
		actions []WorkflowAction
	}{
		{StatusDraft, []WorkflowAction{ActionSubmitForReview}},
		{StatusPendingReview, []WorkflowAction{ActionApproveReview, ActionRejectReview, ActionRequestChanges}},
		{StatusComplianceCheck, []WorkflowAction{ActionCompleteCompliance, ActionFailCompliance, ActionFinalApprove, ActionFinalReject}},
		{StatusApproved, []WorkflowAction{ActionExpire, ActionSuspend, ActionReactivate}},
		{StatusRejected, []WorkflowAction{ActionReactivate}},
		{StatusExpired, []WorkflowAction{ActionReactivate}},
		{StatusSuspended, []WorkflowAction{ActionReactivate}},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.actions, AvailableActions(tt.status))
		})
	}

	assert.Nil(t, AvailableActions(Status("unknown")))
}

func TestTargetStatus(t *testing.T) {
	tests := []struct {
		action WorkflowAction
		target Status
	}{
		{ActionSubmitForReview, StatusPendingReview},
		{ActionApproveReview, StatusComplianceCheck},
		{ActionRejectReview, StatusDraft},
		{ActionRequestChanges, StatusDraft},
		{ActionCompleteCompliance, StatusApproved},
		{ActionFailCompliance, StatusRejected},
		{ActionFinalApprove, StatusApproved},
		{ActionFinalReject, StatusRejected},
		{ActionExpire, StatusExpired},
		{ActionSuspend, StatusSuspended},
		{ActionReactivate, StatusDraft},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			target, err := TargetStatus(tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.target, target)
		})
	}

	_, err := TargetStatus(WorkflowAction("escalate"))
	require.Error(t, err)
}

func TestIsValidTransition(t *testing.T) {
	assert.True(t, IsValidTransition(StatusDraft, ActionSubmitForReview))
	assert.False(t, IsValidTransition(StatusDraft, ActionReactivate))
	assert.True(t, IsValidTransition(StatusSuspended, ActionReactivate))
	assert.False(t, IsValidTransition(StatusApproved, ActionSubmitForReview))
}

// Full approval path: draft -> pending_review -> compliance_check ->
// approved, with the approval side effects.
func TestApplyTransitionApprovalPath(t *testing.T) {
	record, err := NewRecord("contact-1", "Acme", reviewer())
	require.NoError(t, err)

	require.NoError(t, record.ApplyTransition(ActionSubmitForReview, reviewer(), "docs ready"))
	assert.Equal(t, StatusPendingReview, record.Status)

	require.NoError(t, record.ApplyTransition(ActionApproveReview, reviewer(), "initial review ok"))
	assert.Equal(t, StatusComplianceCheck, record.Status)

	require.NoError(t, record.ApplyTransition(ActionCompleteCompliance, reviewer(), "all checks passed"))
	assert.Equal(t, StatusApproved, record.Status)

	require.NotNil(t, record.ApprovedAt)
	assert.Equal(t, "reviewer-1", record.ApprovedBy)
	require.NotNil(t, record.ExpiresAt)
	assert.Equal(t, record.ApprovedAt.Add(365*24*time.Hour), *record.ExpiresAt)

	// create + 3 transitions
	require.Len(t, record.History, 4)
	last := record.History[len(record.History)-1]
	assert.Equal(t, string(ActionCompleteCompliance), last.Action)
	assert.Equal(t, StatusComplianceCheck, last.FromStatus)
	assert.Equal(t, StatusApproved, last.ToStatus)
	assert.Equal(t, "all checks passed", last.Reason)
}

// Illegal action from approved must list the legal alternatives and leave
// the record untouched.
func TestApplyTransitionIllegalAction(t *testing.T) {
	record, err := NewRecord("contact-1", "Acme", reviewer())
	require.NoError(t, err)
	require.NoError(t, record.ApplyTransition(ActionSubmitForReview, reviewer(), ""))
	require.NoError(t, record.ApplyTransition(ActionApproveReview, reviewer(), ""))
	require.NoError(t, record.ApplyTransition(ActionFinalApprove, reviewer(), ""))

	historyLen := len(record.History)

	err = record.ApplyTransition(ActionSubmitForReview, reviewer(), "")
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_TRANSITION", appErr.Code)
	assert.Contains(t, appErr.Message, "expire")
	assert.Contains(t, appErr.Message, "suspend")
	assert.Contains(t, appErr.Message, "reactivate")

	assert.Equal(t, StatusApproved, record.Status)
	assert.Len(t, record.History, historyLen)
}

func TestApplyTransitionReactivate(t *testing.T) {
	for _, path := range [][]WorkflowAction{
		{ActionSubmitForReview, ActionRejectReview},
		{ActionSubmitForReview, ActionApproveReview, ActionFailCompliance, ActionReactivate},
		{ActionSubmitForReview, ActionApproveReview, ActionFinalApprove, ActionSuspend, ActionReactivate},
		{ActionSubmitForReview, ActionApproveReview, ActionFinalApprove, ActionExpire, ActionReactivate},
	} {
		record, err := NewRecord("contact-1", "Acme", reviewer())
		require.NoError(t, err)

		for _, action := range path {
			require.NoError(t, record.ApplyTransition(action, reviewer(), ""), "action %s", action)
		}
		assert.Equal(t, StatusDraft, record.Status)
	}
}
