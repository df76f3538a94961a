// Package sample defines the calibrated sensor sample, its log line codec
// and the in-process store shared between the sampler and HTTP handlers.
package sample

import (
	"math"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/senselog/internal/errors"
)

const (
	// Header is the first line of every sample log file.
	Header = "temperature,humidity,altitude,time"

	// TimeLayout is the timestamp format used in log lines.
	TimeLayout = "2006-01-02 15:04:05.000000"

	fieldCount = 4
)

// Value is an optional reading. The zero Value is absent.
type Value struct {
	v  float64
	ok bool
}

// Of returns a present Value.
func Of(v float64) Value {
	return Value{v: v, ok: true}
}

// Get returns the value and whether it is present.
func (v Value) Get() (float64, bool) {
	return v.v, v.ok
}

func (v Value) Present() bool {
	return v.ok
}

// Finite reports whether the value is absent or a finite number.
func (v Value) Finite() bool {
	return !v.ok || !(math.IsNaN(v.v) || math.IsInf(v.v, 0))
}

// String formats a present value with the shortest exact representation,
// and an absent one as the empty string.
func (v Value) String() string {
	if !v.ok {
		return ""
	}
	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

// Sample is one calibrated reading. Temperature is in °F, humidity in
// percent and altitude in feet.
type Sample struct {
	Temperature Value
	Humidity    Value
	Altitude    Value
	Time        time.Time
}

// Finite reports whether every present field is a finite number.
func (s Sample) Finite() bool {
	return s.Temperature.Finite() && s.Humidity.Finite() && s.Altitude.Finite()
}

// Line serializes the sample as a comma separated log line without newline.
func (s Sample) Line() string {
	return strings.Join([]string{
		s.Temperature.String(),
		s.Humidity.String(),
		s.Altitude.String(),
		s.Time.Format(TimeLayout),
	}, ",")
}

// ParseLine is the inverse of Line. Timestamps are read in the local zone.
func ParseLine(line string) (Sample, error) {
	errFactory := errors.New()

	fields := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(fields) != fieldCount {
		return Sample{}, errFactory.WithData(errors.ErrParseSample, line)
	}

	values := make([]Value, 3)
	for i, field := range fields[:3] {
		if field == "" {
			continue
		}
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Sample{}, errFactory.Wrap(errors.ErrParseSample, err)
		}
		values[i] = Of(f)
	}

	ts, err := time.ParseInLocation(TimeLayout, fields[3], time.Local)
	if err != nil {
		return Sample{}, errFactory.Wrap(errors.ErrParseSample, err)
	}

	return Sample{
		Temperature: values[0],
		Humidity:    values[1],
		Altitude:    values[2],
		Time:        ts,
	}, nil
}
