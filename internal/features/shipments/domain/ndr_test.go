package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNDRActionInput_Validate(t *testing.T) {
	date := now.Add(48 * time.Hour)

	assert.NoError(t, NDRActionInput{Action: NDRActionReattempt}.Validate())
	assert.NoError(t, NDRActionInput{Action: NDRActionReschedule, NewDeliveryDate: &date}.Validate())
	assert.ErrorIs(t, NDRActionInput{Action: NDRActionReschedule}.Validate(), ErrInvalidNDR)
	assert.ErrorIs(t, NDRActionInput{Action: "refund"}.Validate(), ErrInvalidNDR)
}

func TestNDRRecord_ApplyAction(t *testing.T) {
	date := now.Add(48 * time.Hour)
	rec := &NDRRecord{ID: "n1", Reason: NDRCustomerUnavailable, AttemptNumber: 1}

	err := rec.ApplyAction(NDRActionInput{
		Action:            NDRActionReschedule,
		Notes:             "call before noon",
		CustomerContacted: true,
		CustomerResponse:  "available Monday",
		NewDeliveryDate:   &date,
	}, "ops@example.com", now)

	require.NoError(t, err)
	assert.Equal(t, NDRActionReschedule, rec.Action)
	assert.Equal(t, "ops@example.com", rec.ActionBy)
	assert.Equal(t, now, *rec.ActionDate)
	assert.True(t, rec.CustomerContacted)
	assert.Equal(t, "available Monday", rec.CustomerResponse)
	assert.Equal(t, date, *rec.NewDeliveryDate)
	assert.False(t, rec.IsResolved)

	require.NoError(t, rec.ApplyAction(NDRActionInput{Action: NDRActionRTO, Resolve: true}, "ops", now.Add(time.Hour)))
	assert.True(t, rec.IsResolved)
	assert.Equal(t, now.Add(time.Hour), *rec.ResolutionDate)
	assert.True(t, rec.CustomerContacted, "contact flag is sticky")
}

func TestNDRRecord_InvalidActionLeavesRecord(t *testing.T) {
	rec := &NDRRecord{ID: "n1"}

	err := rec.ApplyAction(NDRActionInput{Action: NDRActionReschedule}, "ops", now)

	assert.ErrorIs(t, err, ErrInvalidNDR)
	assert.Empty(t, rec.Action)
	assert.Nil(t, rec.ActionDate)
}

func TestNDRRecord_ResolvedRejectsFurtherActions(t *testing.T) {
	rec := &NDRRecord{ID: "n1", Reason: NDRWrongAddress, AttemptNumber: 2}
	require.NoError(t, rec.ApplyAction(NDRActionInput{Action: NDRActionRTO, Notes: "return it", Resolve: true}, "ops", now))

	err := rec.ApplyAction(NDRActionInput{Action: NDRActionReattempt, Notes: "try again"}, "someone-else", now.Add(time.Hour))

	assert.ErrorIs(t, err, ErrInvalidNDR)
	assert.Equal(t, NDRActionRTO, rec.Action)
	assert.Equal(t, "return it", rec.ActionNotes)
	assert.Equal(t, "ops", rec.ActionBy)
	assert.Equal(t, now, *rec.ActionDate)
	assert.Equal(t, now, *rec.ResolutionDate)
}

func TestNDRReason_Valid(t *testing.T) {
	assert.True(t, NDRCODNotReady.Valid())
	assert.False(t, NDRReason("weather").Valid())
}
