package fishing

import (
	"fmt"
	"math"
	"time"
)

// hPaPerInHg converts barometric pressure between the provider's hectopascals
// and the inches-of-mercury the scorer and store use.
const hPaPerInHg = 33.8639

// PressureInHgFromHPa converts hPa to inHg.
func PressureInHgFromHPa(hpa float64) float64 {
	return hpa / hPaPerInHg
}

// CelsiusToFahrenheit converts °C to °F.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FahrenheitToCelsius converts °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// Round2 rounds to two decimal places, the precision stored for pressures
// and temperatures.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ForecastDay is one raw daily entry from the weather provider. Pointer
// fields model values the upstream may omit.
type ForecastDay struct {
	Timestamp    time.Time
	Sunrise      time.Time
	Summary      string
	TempDayF     *float64
	PressureHPa  *float64
	WindSpeedMph *float64
	WindGustMph  *float64
}

// Metrics is the normalized view the scorer consumes. Pressure is inHg,
// temperatures °F, winds mph. GustKnown distinguishes a measured 0 mph gust
// from a gust the upstream never reported; an unknown gust is stored as 0
// but can never count as gusty.
type Metrics struct {
	WindSpeed float64
	WindGust  float64
	GustKnown bool
	TempF     float64
	Pressure  float64
	Summary   string
}

// NormalizeForecastDay converts a raw provider day to canonical units.
// Timestamp, temperature, pressure and wind speed are required; a missing
// one makes the single record malformed. Gust is optional and defaults
// leniently to 0 with GustKnown=false.
func NormalizeForecastDay(d ForecastDay) (Metrics, error) {
	if d.Timestamp.IsZero() {
		return Metrics{}, fmt.Errorf("%w: forecast day has no timestamp", ErrMalformedInput)
	}
	if d.TempDayF == nil {
		return Metrics{}, fmt.Errorf("%w: forecast day %s has no day temperature", ErrMalformedInput, d.Timestamp.Format("2006-01-02"))
	}
	if d.PressureHPa == nil {
		return Metrics{}, fmt.Errorf("%w: forecast day %s has no pressure", ErrMalformedInput, d.Timestamp.Format("2006-01-02"))
	}
	if d.WindSpeedMph == nil {
		return Metrics{}, fmt.Errorf("%w: forecast day %s has no wind speed", ErrMalformedInput, d.Timestamp.Format("2006-01-02"))
	}

	m := Metrics{
		WindSpeed: *d.WindSpeedMph,
		TempF:     *d.TempDayF,
		Pressure:  Round2(PressureInHgFromHPa(*d.PressureHPa)),
		Summary:   d.Summary,
	}
	if d.WindGustMph != nil {
		m.WindGust = *d.WindGustMph
		m.GustKnown = true
	}
	return m, nil
}
