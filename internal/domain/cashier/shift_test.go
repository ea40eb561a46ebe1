package cashier

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShift_Lifecycle(t *testing.T) {
	shift, err := OpenShift(uuid.New(), uuid.New(), uuid.New(), shiftStart)
	require.NoError(t, err)
	assert.True(t, shift.IsOpen())

	now := shiftStart.Add(time.Hour)
	window, err := shift.Window(now)
	require.NoError(t, err)
	assert.Equal(t, shiftStart, window.Start)
	assert.Equal(t, now, window.End)

	end := shiftStart.Add(6 * time.Hour)
	require.NoError(t, shift.Close(end))
	assert.False(t, shift.IsOpen())

	window, err = shift.Window(now)
	require.NoError(t, err)
	assert.Equal(t, end, window.End)

	assert.Equal(t, "SHIFT_CLOSED", shared.ErrorCode(shift.Close(end.Add(time.Hour))))
}

func TestShift_CloseBeforeStart(t *testing.T) {
	shift, err := OpenShift(uuid.New(), uuid.New(), uuid.Nil, shiftStart)
	require.NoError(t, err)

	assert.True(t, errors.Is(shift.Close(shiftStart), shared.ErrInvalidWindow))
	assert.True(t, shift.IsOpen())
}

func TestShift_WindowOfFutureShift(t *testing.T) {
	shift, err := OpenShift(uuid.New(), uuid.New(), uuid.Nil, shiftStart)
	require.NoError(t, err)

	_, err = shift.Window(shiftStart.Add(-time.Hour))
	assert.True(t, errors.Is(err, shared.ErrInvalidWindow))
}
