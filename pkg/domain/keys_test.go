package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pps/pkg/domain-errors"
)

func TestParseObjectiveID(t *testing.T) {
	t.Run("accepts stage::area::subline", func(t *testing.T) {
		id, err := ParseObjectiveID("puberty::corporality::2.3")
		require.NoError(t, err)
		assert.Equal(t, StagePuberty, id.Stage)
		assert.Equal(t, AreaCorporality, id.Area)
		assert.Equal(t, "2.3", id.Subline)
		assert.Equal(t, "puberty::corporality::2.3", id.String())
	})

	for name, input := range map[string]string{
		"too few parts":  "puberty::corporality",
		"too many parts": "puberty::corporality::2::3",
		"unknown stage":  "adult::corporality::1.1",
		"unknown area":   "puberty::cooking::1.1",
		"empty subline":  "puberty::corporality::",
		"empty":          "",
	} {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := ParseObjectiveID(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestDates(t *testing.T) {
	d, err := ParseDate("01-01-2015")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "01-01-2015", FormatDate(d))

	_, err = ParseDate("2015-01-01")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestZeroLedger(t *testing.T) {
	ledger := ZeroLedger()
	assert.Len(t, ledger, len(Areas))
	for _, a := range Areas {
		assert.Zero(t, ledger[string(a)])
	}
}
