package validation

import (
	"errors"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	Quantity int64  `json:"quantity" validate:"ne=0"`
	Price    string `json:"unit_price" validate:"required,numeric"`
}

type request struct {
	Type  string `json:"movement_type" validate:"required,oneof=SALE PURCHASE"`
	Ref   string `json:"reference_id" validate:"max=5"`
	Lines []line `json:"lines" validate:"min=1,dive"`
}

func TestStruct_Valid(t *testing.T) {
	req := request{Type: "SALE", Lines: []line{{Quantity: 1, Price: "2.50"}}}
	assert.NoError(t, Struct(req))
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	req := request{Type: "GIFT", Ref: "too-long", Lines: []line{{Quantity: 0, Price: "x"}}}

	err := Struct(req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	var verr *Error
	require.True(t, errors.As(err, &verr))
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "Must be one of: SALE PURCHASE", fields["movement_type"])
	assert.Equal(t, "Must be at most 5 characters", fields["reference_id"])
	assert.Equal(t, "Must not be 0", fields["lines[0].quantity"])
	assert.Equal(t, "Must be numeric", fields["lines[0].unit_price"])
}

func TestStruct_EmptySlice(t *testing.T) {
	err := Struct(request{Type: "SALE"})
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "lines", verr.Fields[0].Field)
	assert.Equal(t, "Must contain at least 1 items", verr.Fields[0].Message)
}
