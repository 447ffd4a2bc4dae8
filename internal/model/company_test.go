package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTri_JSON(t *testing.T) {
	tests := []struct {
		tri  Tri
		want string
	}{
		{TriTrue, "true"},
		{TriFalse, "false"},
		{TriUnknown, "null"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			data, err := json.Marshal(tt.tri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))

			var back Tri
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.tri, back)
		})
	}
}

func TestTri_Known(t *testing.T) {
	assert.True(t, TriTrue.Known())
	assert.True(t, TriFalse.Known())
	assert.False(t, TriUnknown.Known())
	assert.Equal(t, TriTrue, TriOf(true))
	assert.Equal(t, TriFalse, TriOf(false))
}

func TestCompanyRecord_Accredited(t *testing.T) {
	rec := CompanyRecord{INN: "1"}
	assert.False(t, rec.Accredited())

	rec.Accreditation = &Accreditation{Status: AccreditationNotFound}
	assert.False(t, rec.Accredited())

	rec.Accreditation = &Accreditation{Status: AccreditationActive}
	assert.True(t, rec.Accredited())
}
