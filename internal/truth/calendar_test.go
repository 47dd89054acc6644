package truth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/fredqa/internal/model"
)

func TestShiftMonths(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{"back one", d(2020, time.April, 1), -1, d(2020, time.March, 1)},
		{"across year", d(2020, time.January, 15), -1, d(2019, time.December, 15)},
		{"leap clamp", d(2020, time.March, 31), -1, d(2020, time.February, 29)},
		{"non-leap clamp", d(2021, time.March, 31), -1, d(2021, time.February, 28)},
		{"back twelve", d(2020, time.February, 29), -12, d(2019, time.February, 28)},
		{"quarter", d(2020, time.May, 31), -3, d(2020, time.February, 29)},
		{"forward", d(2020, time.November, 30), 3, d(2021, time.February, 28)},
		{"long back", d(2020, time.January, 1), -25, d(2017, time.December, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShiftMonths(tt.in, tt.n))
		})
	}
}

func TestShiftForYoYAndMoM(t *testing.T) {
	date := d(2020, time.March, 1)
	assert.Equal(t, d(2019, time.March, 2), ShiftForYoY(date, model.FrequencyDaily), "365 days back across a leap day")
	assert.Equal(t, d(2019, time.March, 1), ShiftForYoY(date, model.FrequencyMonthly))
	assert.Equal(t, d(2019, time.March, 1), ShiftForYoY(date, model.FrequencyUnknown))

	assert.Equal(t, d(2019, time.December, 1), ShiftForMoM(date, model.FrequencyQuarterly))
	assert.Equal(t, d(2020, time.February, 29), ShiftForMoM(date, model.FrequencyDaily))
	assert.Equal(t, d(2020, time.February, 1), ShiftForMoM(date, model.FrequencyMonthly))
	assert.Equal(t, d(2020, time.February, 1), ShiftForMoM(date, model.FrequencyUnknown))
}

func TestFrequencyCache_FirstWriterWins(t *testing.T) {
	c := NewFrequencyCache()
	assert.Equal(t, model.FrequencyMonthly, c.Store("UNRATE", model.FrequencyMonthly))
	assert.Equal(t, model.FrequencyMonthly, c.Store("UNRATE", model.FrequencyDaily))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			freq := model.FrequencyDaily
			if i%2 == 0 {
				freq = model.FrequencyQuarterly
			}
			c.Store("GDPC1", freq)
		}(i)
	}
	wg.Wait()

	first, ok := c.Get("GDPC1")
	assert.True(t, ok)
	for range 10 {
		assert.Equal(t, first, c.Store("GDPC1", model.FrequencyMonthly))
	}
}
