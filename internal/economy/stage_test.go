package economy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pps/pkg/domain"
)

func TestClassifyStage(t *testing.T) {
	mustDate := func(s string) time.Time {
		d, err := domain.ParseDate(s)
		require.NoError(t, err)
		return d
	}
	birth := mustDate("01-01-2015")

	tests := []struct {
		asOf  string
		age   int
		stage domain.Stage
	}{
		{"01-01-2028", 13, domain.StagePuberty},
		{"31-12-2027", 12, domain.StagePrepuberty},
		{"01-01-2015", 0, domain.StagePrepuberty},
		{"15-06-2040", 25, domain.StagePuberty},
	}
	for _, tt := range tests {
		t.Run(tt.asOf, func(t *testing.T) {
			asOf := mustDate(tt.asOf)
			assert.Equal(t, tt.age, Age(birth, asOf))
			assert.Equal(t, tt.stage, ClassifyStage(birth, asOf))
		})
	}
}

func TestAgeMonthDayBoundary(t *testing.T) {
	birth := time.Date(2010, time.March, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 12, Age(birth, time.Date(2023, time.March, 14, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, 13, Age(birth, time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 12, Age(birth, time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC)))
}
