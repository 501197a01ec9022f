package form

import "errors"

// ErrUnknownField is returned when a control name does not map to any form field.
var ErrUnknownField = errors.New("unknown form field")

// Field identifies one entry of Fields. Every control on the page maps to exactly
// one Field; the coercion rule is chosen by the Field, never by the raw name.
type Field int

const (
	PassengerCount Field = iota
	PickupDatetime
	JFKDist
	EWRDist
	LGADist
	SOLDist
	NYCDist
	Distance
	Bearing
	TrafficCondition
	CarCondition
	Weather
)

// Kind is the coercion rule applied to raw input for a field.
type Kind int

const (
	KindText Kind = iota
	KindFloat
	KindInt
	KindDatetime
)

var fieldNames = [...]string{
	PassengerCount:   "passenger_count",
	PickupDatetime:   "pickup_datetime",
	JFKDist:          "jfk_dist",
	EWRDist:          "ewr_dist",
	LGADist:          "lga_dist",
	SOLDist:          "sol_dist",
	NYCDist:          "nyc_dist",
	Distance:         "distance",
	Bearing:          "bearing",
	TrafficCondition: "traffic_condition",
	CarCondition:     "car_condition",
	Weather:          "Weather",
}

// AllFields lists every field in payload order.
func AllFields() []Field {
	out := make([]Field, len(fieldNames))
	for i := range fieldNames {
		out[i] = Field(i)
	}
	return out
}

// ParseField maps a control name (which is also the payload key) to its Field.
func ParseField(name string) (Field, error) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), nil
		}
	}
	return 0, ErrUnknownField
}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "unknown"
	}
	return fieldNames[f]
}

func (f Field) Kind() Kind {
	switch f {
	case JFKDist, EWRDist, LGADist, SOLDist, NYCDist, Distance, Bearing:
		return KindFloat
	case PassengerCount:
		return KindInt
	case PickupDatetime:
		return KindDatetime
	default:
		return KindText
	}
}
