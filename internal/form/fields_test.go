package form

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDefaults(t *testing.T) {
	f := Defaults()
	if f.PassengerCount != 1 {
		t.Fatalf("expected passenger_count 1, got %d", f.PassengerCount)
	}
	if f.TrafficCondition != TrafficFlow || f.CarCondition != CarGood || f.Weather != WeatherSunny {
		t.Fatalf("unexpected categorical defaults: %+v", f)
	}
	if f.PickupDatetime != "" || f.Distance != 0 || f.Bearing != 0 {
		t.Fatalf("unexpected zero defaults: %+v", f)
	}
}

func TestSetFloatFields(t *testing.T) {
	cases := []struct {
		raw     string
		want    float64
		coerced bool
	}{
		{"12.5", 12.5, false},
		{" 3 ", 3, false},
		{"0", 0, false},
		{"1e2", 100, false},
		{"12abc", 12, false},
		{"-.5m", -0.5, false},
		{"4e", 4, false},
		{"", 0, true},
		{"abc", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
	}
	for _, field := range []Field{JFKDist, EWRDist, LGADist, SOLDist, NYCDist, Distance, Bearing} {
		for _, tc := range cases {
			f := Defaults()
			f.Set(field, "7")
			coerced := f.Set(field, tc.raw)
			if got := *f.floatRef(field); got != tc.want {
				t.Fatalf("%s=%q: expected %v, got %v", field, tc.raw, tc.want, got)
			}
			if coerced != tc.coerced {
				t.Fatalf("%s=%q: expected coerced=%v", field, tc.raw, tc.coerced)
			}
		}
	}
}

func TestSetPassengerCount(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"4", 4},
		{"0", 0},
		{"3.7", 3},
		{"1e3", 1},
		{"12abc", 12},
		{"99999999999", 0},
		{"", 0},
		{"two", 0},
	}
	for _, tc := range cases {
		f := Defaults()
		f.Set(PassengerCount, tc.raw)
		if f.PassengerCount != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.raw, tc.want, f.PassengerCount)
		}
	}
}

func TestSetPickupDatetime(t *testing.T) {
	f := Defaults()
	f.Set(PickupDatetime, "2025-05-01T14:30")
	if f.PickupDatetime != "2025-05-01 14:30:00" {
		t.Fatalf("unexpected pickup %q", f.PickupDatetime)
	}
	if got := f.LocalPickup(); got != "2025-05-01T14:30" {
		t.Fatalf("unexpected local pickup %q", got)
	}
}

func TestSetTouchesOneField(t *testing.T) {
	base := Defaults()
	base.Set(PickupDatetime, "2025-05-01T14:30")
	for _, field := range AllFields() {
		f := base
		f.Set(field, "9")
		for _, other := range AllFields() {
			if other == field {
				continue
			}
			if f.Value(other) != base.Value(other) {
				t.Fatalf("setting %s changed %s", field, other)
			}
		}
	}
}

func TestSetCategoricalVerbatim(t *testing.T) {
	f := Defaults()
	f.Set(TrafficCondition, "Dense Traffic")
	f.Set(CarCondition, "Very Good")
	f.Set(Weather, "stormy")
	if f.TrafficCondition != TrafficDense || f.CarCondition != CarVeryGood || f.Weather != WeatherStormy {
		t.Fatalf("unexpected categorical values: %+v", f)
	}
}

func TestParseField(t *testing.T) {
	for _, field := range AllFields() {
		got, err := ParseField(field.String())
		if err != nil || got != field {
			t.Fatalf("round trip of %s failed: %v %v", field, got, err)
		}
	}
	if _, err := ParseField("weather_condition"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestPayloadKeys(t *testing.T) {
	b, err := json.Marshal(Defaults())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if len(m) != len(AllFields()) {
		t.Fatalf("expected %d keys, got %d: %v", len(AllFields()), len(m), m)
	}
	for _, field := range AllFields() {
		if _, ok := m[field.String()]; !ok {
			t.Fatalf("payload missing %s", field)
		}
	}
}
