package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRawReading(t *testing.T) {
	t.Run("complete record", func(t *testing.T) {
		data := []byte(`{"id":"S-07","time":"2022-03-15T08:30:00Z","lat":40.76,"lon":-111.89,"pm2_5":14.2,"sensor_model":"PMS5003","sensor_source":"PurpleAir","area":"slc_ut"}`)

		r, err := ParseRawReading(data)
		require.NoError(t, err)
		assert.Equal(t, "S-07", r.ID)
		assert.Equal(t, time.Date(2022, 3, 15, 8, 30, 0, 0, time.UTC), r.Time)
		assert.Equal(t, 40.76, r.Lat)
		assert.Equal(t, -111.89, r.Lon)
		assert.Equal(t, 14.2, r.PM25)
		assert.Equal(t, "PMS5003", r.SensorModel)
		assert.Equal(t, "PurpleAir", r.SensorSource)
		assert.Equal(t, "slc_ut", r.Area)
		assert.Nil(t, r.Elevation)
	})

	t.Run("reported elevation kept", func(t *testing.T) {
		data := []byte(`{"id":"S-07","time":"2022-03-15T08:30:00Z","lat":40.76,"lon":-111.89,"pm2_5":14.2,"elevation":1431.5}`)

		r, err := ParseRawReading(data)
		require.NoError(t, err)
		require.NotNil(t, r.Elevation)
		assert.Equal(t, 1431.5, *r.Elevation)
	})

	t.Run("offset timestamps normalized to UTC", func(t *testing.T) {
		data := []byte(`{"id":"S-07","time":"2022-03-15T01:30:00-07:00","lat":40.76,"lon":-111.89,"pm2_5":1}`)

		r, err := ParseRawReading(data)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2022, 3, 15, 8, 30, 0, 0, time.UTC), r.Time)
	})

	t.Run("rejects bad records", func(t *testing.T) {
		tests := []struct {
			name string
			data string
		}{
			{"invalid json", `{not json`},
			{"missing id", `{"time":"2022-03-15T08:30:00Z","pm2_5":1}`},
			{"missing time", `{"id":"S-07","pm2_5":1}`},
			{"unparseable time", `{"id":"S-07","time":"03/15/2022","pm2_5":1}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ParseRawReading([]byte(tt.data))
				assert.Error(t, err)
			})
		}
	})
}

func TestDayBucket(t *testing.T) {
	assert.Equal(t, 0, DayBucket(time.Date(1970, 1, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, DayBucket(time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 19066, DayBucket(time.Date(2022, 3, 15, 23, 59, 59, 0, time.UTC)))

	// Same UTC day regardless of hour.
	a := DayBucket(time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC))
	b := DayBucket(time.Date(2022, 3, 15, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, a, b)
}
