package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgreementLifecycle_Transitions(t *testing.T) {
	tests := []struct {
		name       string
		from       AgreementState
		transition Transition
		want       AgreementState
		wantErr    bool
	}{
		{"init to created", AgreementStateInit, TransitionCreate, AgreementStateCreated, false},
		{"created to approved", AgreementStateCreated, TransitionApprove, AgreementStateApproved, false},
		{"created to cancelled", AgreementStateCreated, TransitionCancel, AgreementStateCancelled, false},
		{"approved to cancelled", AgreementStateApproved, TransitionCancel, AgreementStateCancelled, false},
		{"any to erred", AgreementStateApproved, TransitionErr, AgreementStateErred, false},
		{"init cannot cancel", AgreementStateInit, TransitionCancel, AgreementStateInit, true},
		{"cancelled cannot approve", AgreementStateCancelled, TransitionApprove, AgreementStateCancelled, true},
		{"cancelled cannot cancel again", AgreementStateCancelled, TransitionCancel, AgreementStateCancelled, true},
		{"erred cannot approve", AgreementStateErred, TransitionApprove, AgreementStateErred, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Agreement{State: tt.from}

			err := a.Apply(tt.transition, testNow)

			if tt.wantErr {
				assert.True(t, IsInvalidStateTransition(err))
				assert.Equal(t, tt.from, a.State)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.State)
		})
	}
}

func TestAgreement_FullLifecycle(t *testing.T) {
	a := &Agreement{State: AgreementStateInit}

	require.NoError(t, a.MarkCreated("P-1", "https://example.test/approve?token=EC-9", "EC-9", testNow))
	require.NoError(t, a.MarkApproved("I-ABC", testNow))
	require.NoError(t, a.MarkCancelled(true, testNow))

	assert.Equal(t, AgreementStateCancelled, a.State)
	assert.Equal(t, "P-1", a.PlanID)
	assert.Equal(t, "I-ABC", *a.BackendID)
	assert.True(t, a.CancelledByApp)
}

func TestAgreement_MarkCancelledObserved(t *testing.T) {
	a := &Agreement{State: AgreementStateApproved}

	require.NoError(t, a.MarkCancelled(false, testNow))

	assert.Equal(t, AgreementStateCancelled, a.State)
	assert.False(t, a.CancelledByApp)
}

func TestAgreement_MarkApproved_RequiresCreated(t *testing.T) {
	a := &Agreement{State: AgreementStateInit}

	err := a.MarkApproved("I-ABC", testNow)

	assert.True(t, IsInvalidStateTransition(err))
	assert.Nil(t, a.BackendID)
}
