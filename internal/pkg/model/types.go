package model

// Kind is the channel kind of an IIO value endpoint.
type Kind string

func (k Kind) String() string {
	return string(k)
}

const (
	KindTemperature Kind = "temperature"
	KindPressure    Kind = "pressure"
	KindHumidity    Kind = "humidity"
)

// Unit is the home assistant unit of measurement for the raw channel kind.
func (k Kind) Unit() string {
	switch k {
	case KindPressure:
		return "kPa"
	case KindHumidity:
		return "%"
	default:
		return "°C"
	}
}

// Scale is the divisor from the raw sysfs value to Unit. Temperature and humidity are
// reported in thousandths.
func (k Kind) Scale() int64 {
	switch k {
	case KindPressure:
		return 1
	default:
		return 1000
	}
}
