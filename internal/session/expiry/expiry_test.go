package expiry

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestToAbsolute(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	calc := Calculator{Now: fixedClock(now), Margin: DefaultMargin}

	t.Run("subtracts margin", func(t *testing.T) {
		for _, l := range []int64{0, 1, 10, 300, 86400} {
			got := calc.ToAbsolute(Seconds(l))
			require.Equal(t, now.Add(time.Duration(l)*time.Second-10*time.Second), got)
		}
	})

	t.Run("invalid lifetime is already expired", func(t *testing.T) {
		require.Equal(t, Epoch, calc.ToAbsolute(Lifetime{}))
		require.True(t, calc.ToAbsolute(Lifetime{}).Before(now))
	})

	t.Run("huge lifetimes never wrap around", func(t *testing.T) {
		for _, in := range []any{json.Number("10000000000"), float64(2e10), int64(math.MaxInt64)} {
			require.Equal(t, Epoch, calc.ToAbsolute(LifetimeFrom(in)))
		}
		require.Equal(t, Lifetime{}, Seconds(MaxSeconds+1))

		got := calc.ToAbsolute(Seconds(MaxSeconds))
		require.Equal(t, now.Add(time.Duration(MaxSeconds)*time.Second-DefaultMargin), got)
		require.True(t, got.After(now))
	})

	t.Run("deterministic for fixed clock", func(t *testing.T) {
		require.Equal(t, calc.ToAbsolute(Seconds(300)), calc.ToAbsolute(Seconds(300)))
	})
}

func TestLifetimeFrom(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		want Lifetime
	}{
		{"nil", nil, Lifetime{}},
		{"float64", float64(300), Seconds(300)},
		{"int", 60, Seconds(60)},
		{"json number", json.Number("1800"), Seconds(1800)},
		{"json number fraction", json.Number("12.9"), Seconds(12)},
		{"string", "300", Lifetime{}},
		{"bool", true, Lifetime{}},
		{"negative", -5, Lifetime{}},
		{"nan", math.NaN(), Lifetime{}},
		{"garbage json number", json.Number("abc"), Lifetime{}},
		{"longest representable", json.Number("9223372036"), Seconds(MaxSeconds)},
		{"json number past duration range", json.Number("10000000000"), Lifetime{}},
		{"float past duration range", float64(2e10), Lifetime{}},
		{"max int64", int64(math.MaxInt64), Lifetime{}},
		{"max uint64", uint64(math.MaxUint64), Lifetime{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, LifetimeFrom(tc.in))
		})
	}
}

func TestDecodedExpiresIn(t *testing.T) {
	t.Parallel()

	var body struct {
		ExpiresIn any `json:"expires_in"`
	}
	dec := json.NewDecoder(strings.NewReader(`{"expires_in":"soon"}`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&body))

	calc := Calculator{Now: fixedClock(time.Now()), Margin: DefaultMargin}
	require.Equal(t, Epoch, calc.ToAbsolute(LifetimeFrom(body.ExpiresIn)))
}
