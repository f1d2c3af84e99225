package configuration

import (
	"slices"
	"strings"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

const (
	TypeDPS310 = "xyz.openbmc_project.Configuration.DPS310"
	TypeSI7020 = "xyz.openbmc_project.Configuration.SI7020"
)

// SupportedTypes lists the configuration type tags this service handles, highest
// priority first: when a record carries more than one, the first listed wins.
var SupportedTypes = []string{
	TypeDPS310,
	TypeSI7020,
}

// capabilities are the channel kinds each supported part can expose.
var capabilities = map[string][]model.Kind{
	TypeDPS310: {model.KindTemperature, model.KindPressure},
	TypeSI7020: {model.KindTemperature, model.KindHumidity},
}

// Supports reports whether the part behind a type tag exposes the channel kind.
func Supports(typeTag string, kind model.Kind) bool {
	return slices.Contains(capabilities[typeTag], kind)
}

// IsSupportedInterface reports whether an interface is a supported type tag or nested
// under one, such as a threshold interface.
func IsSupportedInterface(iface string) bool {
	for _, t := range SupportedTypes {
		if iface == t || strings.HasPrefix(iface, t+".") {
			return true
		}
	}
	return false
}

// baseConfiguration returns the base configuration of a record under the highest
// priority supported type tag.
func baseConfiguration(data model.SensorData) (string, model.BaseConfigMap, bool) {
	for _, t := range SupportedTypes {
		if props, ok := data[t]; ok {
			return t, props, true
		}
	}
	return "", nil, false
}
