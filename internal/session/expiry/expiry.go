// Package expiry turns provider-reported token lifetimes into absolute
// expiry instants.
package expiry

import (
	"encoding/json"
	"math"
	"time"
)

// DefaultMargin is subtracted from every lifetime so a token is refreshed
// shortly before the provider would reject it.
const DefaultMargin = 10 * time.Second

// Epoch is returned for lifetimes that cannot be trusted; it is always in the
// past.
var Epoch = time.Unix(0, 0).UTC()

// MaxSeconds is the longest lifetime a time.Duration can represent. Longer
// values are treated as invalid.
const MaxSeconds = math.MaxInt64 / int64(time.Second)

// Lifetime is a provider lifetime in seconds. The zero value is invalid.
type Lifetime struct {
	Seconds int64
	Valid   bool
}

// Seconds builds a valid Lifetime.
func Seconds(n int64) Lifetime {
	if n < 0 || n > MaxSeconds {
		return Lifetime{}
	}
	return Lifetime{Seconds: n, Valid: true}
}

// LifetimeFrom normalises an "expires_in" style value as decoded from JSON.
// Anything that is not a non-negative finite number is invalid.
func LifetimeFrom(v any) Lifetime {
	switch n := v.(type) {
	case nil:
		return Lifetime{}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return Seconds(i)
		}
		f, err := n.Float64()
		if err != nil {
			return Lifetime{}
		}
		return fromFloat(f)
	case float64:
		return fromFloat(n)
	case float32:
		return fromFloat(float64(n))
	case int:
		return Seconds(int64(n))
	case int32:
		return Seconds(int64(n))
	case int64:
		return Seconds(n)
	case uint32:
		return Seconds(int64(n))
	case uint64:
		if n > uint64(MaxSeconds) {
			return Lifetime{}
		}
		return Seconds(int64(n))
	default:
		return Lifetime{}
	}
}

func fromFloat(f float64) Lifetime {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > float64(MaxSeconds) {
		return Lifetime{}
	}
	return Seconds(int64(f))
}

// Calculator converts lifetimes into absolute instants.
type Calculator struct {
	Now    func() time.Time
	Margin time.Duration
}

// New returns a Calculator using the wall clock and DefaultMargin.
func New() Calculator {
	return Calculator{Now: time.Now, Margin: DefaultMargin}
}

// ToAbsolute returns now + lifetime - margin, or Epoch when l is invalid.
func (c Calculator) ToAbsolute(l Lifetime) time.Time {
	if !l.Valid {
		return Epoch
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().Add(time.Duration(l.Seconds)*time.Second - c.Margin)
}
