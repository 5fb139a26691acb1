package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflowStateStartsBeforeFirstStep(t *testing.T) {
	t.Parallel()

	state := NewWorkflowState("thread-1")

	assert.Equal(t, "thread-1", state.ThreadID)
	assert.Equal(t, -1, state.CurrentStepIndex)
	assert.Empty(t, state.Messages)
	assert.Nil(t, state.CurrentStep())
}

func TestCurrentStepFollowsIndex(t *testing.T) {
	t.Parallel()

	state := NewWorkflowState("thread-1")
	state.Plan = &WorkflowPlan{
		Steps: []*WorkflowStep{
			{StepNumber: 1, Description: "first"},
			{StepNumber: 2, Description: "second"},
		},
	}

	state.CurrentStepIndex = 1

	step := state.CurrentStep()
	require.NotNil(t, step)
	assert.Equal(t, 2, step.StepNumber)

	state.CurrentStepIndex = 2
	assert.Nil(t, state.CurrentStep())
}

func TestClearApprovalDropsAllApprovalFields(t *testing.T) {
	t.Parallel()

	state := NewWorkflowState("thread-1")
	state.AwaitingApproval = true
	state.ApprovalStepInfo = &ApprovalRequest{StepNumber: 1}
	state.ApprovalDecision = &ApprovalDecision{Action: ApprovalActionApprove}

	state.ClearApproval()

	assert.False(t, state.AwaitingApproval)
	assert.Nil(t, state.ApprovalStepInfo)
	assert.Nil(t, state.ApprovalDecision)
}

func TestStepResetKeepsIdentityAndApprovalSettings(t *testing.T) {
	t.Parallel()

	step := &WorkflowStep{
		StepNumber:            3,
		Description:           "send the email",
		RequiresHumanApproval: true,
		ApprovalReason:        "sends external communication",
		Status:                StepStatusFailed,
		Result:                "partial",
		Error:                 "smtp timeout",
		ToolsUsed:             []string{"gmail.send"},
		ThinkingDurationMS:    1200,
	}

	step.Reset()

	assert.Equal(t, StepStatusPending, step.Status)
	assert.Empty(t, step.Result)
	assert.Empty(t, step.Error)
	assert.Nil(t, step.ToolsUsed)
	assert.Zero(t, step.ThinkingDurationMS)

	assert.Equal(t, 3, step.StepNumber)
	assert.Equal(t, "send the email", step.Description)
	assert.True(t, step.RequiresHumanApproval)
	assert.Equal(t, "sends external communication", step.ApprovalReason)
}

func TestPlanStepBounds(t *testing.T) {
	t.Parallel()

	var nilPlan *WorkflowPlan

	assert.Nil(t, nilPlan.Step(0))

	plan := &WorkflowPlan{Steps: []*WorkflowStep{{StepNumber: 1}}}

	assert.Nil(t, plan.Step(-1))
	assert.NotNil(t, plan.Step(0))
	assert.Nil(t, plan.Step(1))
}

func TestApprovalActionsOffersAllThree(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{ApprovalActionApprove, ApprovalActionEdit, ApprovalActionSkip}, ApprovalActions())
}
