package form

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// TrafficLevel is the traffic_condition select value.
type TrafficLevel string

const (
	TrafficCongested TrafficLevel = "Congested Traffic"
	TrafficDense     TrafficLevel = "Dense Traffic"
	TrafficFlow      TrafficLevel = "Flow Traffic"
)

// CarState is the car_condition select value.
type CarState string

const (
	CarBad       CarState = "Bad"
	CarGood      CarState = "Good"
	CarVeryGood  CarState = "Very Good"
	CarExcellent CarState = "Excellent"
)

// WeatherKind is the Weather select value.
type WeatherKind string

const (
	WeatherSunny  WeatherKind = "sunny"
	WeatherCloudy WeatherKind = "cloudy"
	WeatherRainy  WeatherKind = "rainy"
	WeatherStormy WeatherKind = "stormy"
	WeatherWindy  WeatherKind = "windy"
)

// Option is a select entry as rendered on the page.
type Option struct {
	Value string
	Label string
}

var (
	TrafficOptions = []Option{
		{string(TrafficCongested), "Congested Traffic"},
		{string(TrafficDense), "Dense Traffic"},
		{string(TrafficFlow), "Flow Traffic"},
	}
	CarOptions = []Option{
		{string(CarBad), "Bad"},
		{string(CarExcellent), "Excellent"},
		{string(CarGood), "Good"},
		{string(CarVeryGood), "Very Good"},
	}
	WeatherOptions = []Option{
		{string(WeatherCloudy), "Cloudy"},
		{string(WeatherRainy), "Rainy"},
		{string(WeatherStormy), "Stormy"},
		{string(WeatherSunny), "Sunny"},
		{string(WeatherWindy), "Windy"},
	}
)

// Fields holds the current trip parameters. The JSON encoding is the request body
// sent to the prediction service.
type Fields struct {
	PassengerCount   int          `json:"passenger_count"`
	PickupDatetime   string       `json:"pickup_datetime"`
	JFKDist          float64      `json:"jfk_dist"`
	EWRDist          float64      `json:"ewr_dist"`
	LGADist          float64      `json:"lga_dist"`
	SOLDist          float64      `json:"sol_dist"`
	NYCDist          float64      `json:"nyc_dist"`
	Distance         float64      `json:"distance"`
	Bearing          float64      `json:"bearing"`
	TrafficCondition TrafficLevel `json:"traffic_condition"`
	CarCondition     CarState     `json:"car_condition"`
	Weather          WeatherKind  `json:"Weather"`
}

// Defaults returns the values a freshly mounted form starts with.
func Defaults() Fields {
	return Fields{
		PassengerCount:   1,
		TrafficCondition: TrafficFlow,
		CarCondition:     CarGood,
		Weather:          WeatherSunny,
	}
}

// Set overwrites exactly one field from raw control input. Numeric input that does
// not parse is stored as 0; the returned bool reports that fallback.
func (f *Fields) Set(field Field, raw string) (coerced bool) {
	switch field.Kind() {
	case KindFloat:
		v, ok := parseFloat(raw)
		*f.floatRef(field) = v
		return !ok
	case KindInt:
		v, ok := parseInt(raw)
		f.PassengerCount = v
		return !ok
	case KindDatetime:
		f.PickupDatetime = PickupFromLocal(raw)
	default:
		switch field {
		case TrafficCondition:
			f.TrafficCondition = TrafficLevel(raw)
		case CarCondition:
			f.CarCondition = CarState(raw)
		case Weather:
			f.Weather = WeatherKind(raw)
		}
	}
	return false
}

// Value returns the stored value of a field as control text.
func (f Fields) Value(field Field) string {
	switch field.Kind() {
	case KindFloat:
		return strconv.FormatFloat(*f.floatRef(field), 'f', -1, 64)
	case KindInt:
		return strconv.Itoa(f.PassengerCount)
	case KindDatetime:
		return f.PickupDatetime
	}
	switch field {
	case TrafficCondition:
		return string(f.TrafficCondition)
	case CarCondition:
		return string(f.CarCondition)
	case Weather:
		return string(f.Weather)
	}
	return ""
}

// LocalPickup renders the stored pickup time back into the datetime-local control format.
func (f Fields) LocalPickup() string {
	if len(f.PickupDatetime) < len("2006-01-02 15:04") {
		return ""
	}
	return strings.Replace(f.PickupDatetime[:len("2006-01-02 15:04")], " ", "T", 1)
}

func (f *Fields) floatRef(field Field) *float64 {
	switch field {
	case JFKDist:
		return &f.JFKDist
	case EWRDist:
		return &f.EWRDist
	case LGADist:
		return &f.LGADist
	case SOLDist:
		return &f.SOLDist
	case NYCDist:
		return &f.NYCDist
	case Distance:
		return &f.Distance
	case Bearing:
		return &f.Bearing
	}
	panic("form: " + field.String() + " is not a float field")
}

// PickupFromLocal rewrites a datetime-local value (YYYY-MM-DDTHH:MM) into the
// service format YYYY-MM-DD HH:MM:SS.
func PickupFromLocal(raw string) string {
	return strings.Replace(raw, "T", " ", 1) + ":00"
}

var (
	floatPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
)

// parseFloat reads the leading decimal number and ignores whatever follows it,
// so "12abc" stores 12. Text with no leading number does not parse.
func parseFloat(raw string) (float64, bool) {
	m := floatPrefix.FindString(strings.TrimSpace(raw))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseInt reads the leading run of digits, so "3.7" stores 3 and "1e3" stores 1.
func parseInt(raw string) (int, bool) {
	m := intPrefix.FindString(strings.TrimSpace(raw))
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}
