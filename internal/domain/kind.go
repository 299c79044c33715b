package domain

import "fmt"

// Kind is the measurement category of an archive.
type Kind uint8

const (
	KindUnknown Kind = iota
	Temperature
	Precipitation
)

// ParseKind accepts the Spanish and English names used by the portal and by
// callers: "temperatura", "temp", "tmed", "precipitacion", "lluvia", "rain", "prec".
func ParseKind(v string) (Kind, error) {
	switch FoldName(v) {
	case "temperature", "temperatura", "temp", "tmed":
		return Temperature, nil
	case "precipitation", "precipitacion", "rain", "lluvia", "prec":
		return Precipitation, nil
	default:
		return KindUnknown, fmt.Errorf("unknown measurement kind %q", v)
	}
}

func (k Kind) String() string {
	switch k {
	case Temperature:
		return "TEMPERATURE"
	case Precipitation:
		return "PRECIPITATION"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == Temperature || k == Precipitation
}

// PortalCode is the path segment the portal uses for the kind.
func (k Kind) PortalCode() string {
	switch k {
	case Temperature:
		return "TMED"
	case Precipitation:
		return "PREC"
	default:
		return ""
	}
}

// Unit returns the measurement unit: degrees Celsius or millimetres.
func (k Kind) Unit() string {
	switch k {
	case Temperature:
		return "C"
	case Precipitation:
		return "mm"
	default:
		return ""
	}
}

// Slug is the lower-case name used in file names, e.g. "precipitation".
func (k Kind) Slug() string {
	switch k {
	case Temperature:
		return "temperature"
	case Precipitation:
		return "precipitation"
	default:
		return "unknown"
	}
}
