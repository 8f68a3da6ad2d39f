package chart

import (
	"fmt"
	"time"

	"weather-telegram-bot/forecast"
)

// AxisBounds optionally forces the Y axis range. A nil field leaves that
// bound to the renderer's autoscaling.
type AxisBounds struct {
	Min *float64
	Max *float64
}

// Series is one labeled line in a chart.
type Series struct {
	Name   string
	Unit   string
	Values []float64
	// Color indexes the fixed line palette.
	Color int
}

// Spec is a chart ready for rendering: one label per timestamp, one or more
// lines, and an optional forced axis range.
type Spec struct {
	Labels []string
	Series []Series
	Bounds AxisBounds
}

// SpecSet holds the five charts built from one forecast payload.
type SpecSet struct {
	Temperature              *Spec
	PrecipitationProbability *Spec
	Precipitation            *Spec
	CloudCover               *Spec
	WindSpeed                *Spec
}

// timeLayouts are accepted hourly timestamp formats. Open-Meteo returns
// local time without an offset when a timezone parameter is set.
var timeLayouts = []string{"2006-01-02T15:04", time.RFC3339}

// FormatTimeLabel renders an ISO-8601 timestamp as the fixed display label,
// e.g. "01.05.2024, 13:00 Uhr". The calendar fields come straight from the
// input; no timezone conversion is applied.
func FormatTimeLabel(iso string) (string, error) {
	var t time.Time
	var err error
	for _, layout := range timeLayouts {
		t, err = time.Parse(layout, iso)
		if err == nil {
			return FormatTime(t), nil
		}
	}
	return "", fmt.Errorf("parse timestamp %q: %w", iso, err)
}

// FormatTime renders a time in the fixed display format.
func FormatTime(t time.Time) string {
	return t.Format("02.01.2006, 15:04") + " Uhr"
}

// AdjustedBounds decides the axis bounds for a series. A series whose values
// are all numerically identical would autoscale to a degenerate single-value
// axis, so the requested bounds pass through unchanged; any variation lets
// the renderer autoscale instead. An empty series gets empty bounds.
func AdjustedBounds(values []float64, requested AxisBounds) AxisBounds {
	if len(values) == 0 {
		return AxisBounds{}
	}
	first := values[0]
	for _, v := range values[1:] {
		if v != first {
			return AxisBounds{}
		}
	}
	return requested
}

// BuildSpecs reshapes a forecast payload into the five chart specs. All seven
// hourly variables must be present with one value per timestamp.
func BuildSpecs(p *forecast.Payload) (*SpecSet, error) {
	labels := make([]string, len(p.Timestamps))
	for i, ts := range p.Timestamps {
		label, err := FormatTimeLabel(ts)
		if err != nil {
			return nil, err
		}
		labels[i] = label
	}

	get := func(name string) ([]float64, error) {
		values, ok := p.Series[name]
		if !ok {
			return nil, fmt.Errorf("payload missing hourly series %q", name)
		}
		if len(values) != len(p.Timestamps) {
			return nil, fmt.Errorf("series %q has %d values for %d timestamps",
				name, len(values), len(p.Timestamps))
		}
		return values, nil
	}

	temperature, err := get("temperature_2m")
	if err != nil {
		return nil, err
	}
	precipProbability, err := get("precipitation_probability")
	if err != nil {
		return nil, err
	}
	rain, err := get("rain")
	if err != nil {
		return nil, err
	}
	showers, err := get("showers")
	if err != nil {
		return nil, err
	}
	snowfall, err := get("snowfall")
	if err != nil {
		return nil, err
	}
	cloudCover, err := get("cloud_cover")
	if err != nil {
		return nil, err
	}
	windSpeed, err := get("wind_speed_10m")
	if err != nil {
		return nil, err
	}

	var (
		zero       = 0.0
		hundred    = 100.0
		percentage = AxisBounds{Min: &zero, Max: &hundred}
		nonNegative = AxisBounds{Min: &zero}
	)

	allPrecip := make([]float64, 0, 3*len(rain))
	allPrecip = append(allPrecip, rain...)
	allPrecip = append(allPrecip, showers...)
	allPrecip = append(allPrecip, snowfall...)

	set := &SpecSet{
		Temperature: &Spec{
			Labels: labels,
			Series: []Series{{
				Name:   fmt.Sprintf("Temperatur (%s)", p.Units["temperature_2m"]),
				Unit:   p.Units["temperature_2m"],
				Values: temperature,
			}},
		},
		PrecipitationProbability: &Spec{
			Labels: labels,
			Series: []Series{{
				Name:   fmt.Sprintf("Niederschlagswahrscheinlichkeit (%s)", p.Units["precipitation_probability"]),
				Unit:   p.Units["precipitation_probability"],
				Values: precipProbability,
			}},
			Bounds: AdjustedBounds(precipProbability, percentage),
		},
		Precipitation: &Spec{
			Labels: labels,
			Series: []Series{
				{
					Name:   fmt.Sprintf("Niederschlag [Regen] (%s)", p.Units["rain"]),
					Unit:   p.Units["rain"],
					Values: rain,
					Color:  0,
				},
				{
					Name:   fmt.Sprintf("Niederschlag [Schauer] (%s)", p.Units["showers"]),
					Unit:   p.Units["showers"],
					Values: showers,
					Color:  1,
				},
				{
					Name:   fmt.Sprintf("Niederschlag [Schnee] (%s)", p.Units["snowfall"]),
					Unit:   p.Units["snowfall"],
					Values: snowfall,
					Color:  2,
				},
			},
			Bounds: AdjustedBounds(allPrecip, nonNegative),
		},
		CloudCover: &Spec{
			Labels: labels,
			Series: []Series{{
				Name:   fmt.Sprintf("Bewölkung (%s)", p.Units["cloud_cover"]),
				Unit:   p.Units["cloud_cover"],
				Values: cloudCover,
			}},
			Bounds: AdjustedBounds(cloudCover, percentage),
		},
		WindSpeed: &Spec{
			Labels: labels,
			Series: []Series{{
				Name:   fmt.Sprintf("Windgeschwindigkeit (%s)", p.Units["wind_speed_10m"]),
				Unit:   p.Units["wind_speed_10m"],
				Values: windSpeed,
			}},
			Bounds: AdjustedBounds(windSpeed, nonNegative),
		},
	}

	return set, nil
}
