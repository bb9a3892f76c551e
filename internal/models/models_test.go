package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		{"BareDate", "2025-06-01", NewDate(2025, time.June, 1), false},
		{"UTCTimestamp", "2025-06-01T10:30:00Z", NewDate(2025, time.June, 1), false},
		{"OffsetKeepsLocalDay", "2025-06-01T23:30:00+03:00", NewDate(2025, time.June, 1), false},
		{"Padded", " 2025-06-04 ", NewDate(2025, time.June, 4), false},
		{"Garbage", "tomorrow", Date{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestDate_DaysUntil(t *testing.T) {
	in := NewDate(2025, time.June, 1)
	assert.Equal(t, 3, in.DaysUntil(NewDate(2025, time.June, 4)))
	assert.Equal(t, 0, in.DaysUntil(in))
	assert.Equal(t, -1, in.DaysUntil(NewDate(2025, time.May, 31)))
	// DST changes do not exist in UTC, so month boundaries count cleanly.
	assert.Equal(t, 31, NewDate(2025, time.March, 1).DaysUntil(NewDate(2025, time.April, 1)))
}

func TestDate_DaysUntilLongRanges(t *testing.T) {
	// spans beyond time.Duration's ~292 years must not saturate
	assert.Equal(t, 739405, Date{}.DaysUntil(NewDate(2025, time.June, 4)))
	assert.Equal(t, 3652058, NewDate(1, time.January, 1).DaysUntil(NewDate(9999, time.December, 31)))
	assert.Equal(t, -20243, NewDate(2025, time.June, 4).DaysUntil(NewDate(1970, time.January, 1)))
}

func TestOverlaps(t *testing.T) {
	d := func(day int) Date { return NewDate(2025, time.June, day) }

	assert.True(t, Overlaps(d(1), d(4), d(3), d(5)))
	assert.True(t, Overlaps(d(3), d(5), d(1), d(4)))
	assert.True(t, Overlaps(d(1), d(10), d(3), d(4)))
	assert.False(t, Overlaps(d(1), d(4), d(4), d(6)), "back-to-back stays share only the turnover day")
	assert.False(t, Overlaps(d(4), d(6), d(1), d(4)))
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		CheckIn Date `json:"check_in"`
	}

	out, err := json.Marshal(payload{CheckIn: NewDate(2025, time.June, 1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"check_in":"2025-06-01"}`, string(out))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"check_in":"2025-06-03T00:00:00Z"}`), &p))
	assert.Equal(t, "2025-06-03", p.CheckIn.String())

	assert.Error(t, json.Unmarshal([]byte(`{"check_in":20250603}`), &p))
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2025-06-01"))
	assert.Equal(t, "2025-06-01", d.String())

	require.NoError(t, d.Scan([]byte("2025-07-02")))
	assert.Equal(t, "2025-07-02", d.String())

	require.NoError(t, d.Scan(time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-08-03", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}

func TestReservation_Helpers(t *testing.T) {
	r := &Reservation{
		CheckIn:    NewDate(2025, time.June, 1),
		CheckOut:   NewDate(2025, time.June, 4),
		TotalPrice: decimal.NewFromInt(300),
		Rooms:      []*Room{{ID: 7}, {ID: 9}},
	}
	assert.Equal(t, 3, r.Nights())
	assert.Equal(t, []int64{7, 9}, r.RoomIDs())
}

func TestIdentity_CanManage(t *testing.T) {
	owner := Identity{UserID: 1, Role: RoleOwner}
	other := Identity{UserID: 2, Role: RoleOwner}
	admin := Identity{UserID: 3, Role: RoleAdmin}

	assert.True(t, owner.CanManage(1))
	assert.False(t, other.CanManage(1))
	assert.True(t, admin.CanManage(1))

	assert.True(t, RoleTraveler.Valid())
	assert.False(t, Role("GUEST").Valid())
}
