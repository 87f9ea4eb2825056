package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf(t *testing.T) {
	east := time.FixedZone("UTC+8", 8*3600)
	west := time.FixedZone("UTC-5", -5*3600)

	assert.Equal(t, "2026-10-15", DateOf(time.Date(2026, 10, 15, 0, 30, 0, 0, east)).String())
	assert.Equal(t, "2026-10-15", DateOf(time.Date(2026, 10, 15, 23, 30, 0, 0, west)).String())

	d := DateOf(time.Date(2026, 3, 9, 23, 30, 0, 0, east))
	assert.Equal(t, d, DateOf(d.Time))
}

func TestDate_Value(t *testing.T) {
	// 绑定值是纯日期文本，驱动不会按连接时区换算
	for _, loc := range []*time.Location{time.UTC, time.FixedZone("UTC+8", 8*3600), time.FixedZone("UTC-5", -5*3600)} {
		v, err := DateOf(time.Date(2026, 10, 15, 1, 0, 0, 0, loc)).Value()
		require.NoError(t, err)
		assert.Equal(t, "2026-10-15", v, loc.String())
	}
}

func TestDate_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
		want string
	}{
		{"mysql loc=Local", time.Date(2026, 10, 15, 0, 0, 0, 0, time.FixedZone("UTC-5", -5*3600)), "2026-10-15"},
		{"postgres date", time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), "2026-10-15"},
		{"text", "2026-10-15", "2026-10-15"},
		{"text with time", "2026-10-15 00:00:00+08:00", "2026-10-15"},
		{"bytes", []byte("2026-10-15"), "2026-10-15"},
	}
	for _, tt := range tests {
		var d Date
		require.NoError(t, d.Scan(tt.src), tt.name)
		assert.Equal(t, tt.want, d.String(), tt.name)
	}

	var d Date
	assert.Error(t, d.Scan("15/10"))
	assert.Error(t, d.Scan(42))
	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())
}

func TestDate_JSON(t *testing.T) {
	var got struct {
		Start Date `json:"start"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"start":"2026-05-01"}`), &got))
	assert.Equal(t, "2026-05-01", got.Start.String())

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2026-05-01"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"start":"May 1"}`), &got))
}

func TestNewBookStats(t *testing.T) {
	st := NewBookStats(&Book{ID: 3, BookPrice: 19.5})
	assert.Equal(t, uint(3), st.ID)
	assert.Zero(t, st.ReviewCount)
	assert.Zero(t, st.TotalStar)
	assert.Zero(t, st.AvgRating)
	assert.Equal(t, 19.5, st.LowestPrice)
}

func TestAll(t *testing.T) {
	assert.Len(t, All(), 9)
}
