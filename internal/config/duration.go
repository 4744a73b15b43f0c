package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts "1500ms"/"5s" strings or bare numbers of seconds in YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Value == "" {
		d.Duration = 0
		return nil
	}

	if parsed, err := time.ParseDuration(value.Value); err == nil {
		d.Duration = parsed
		return nil
	}

	seconds, err := strconv.ParseFloat(value.Value, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	d.Duration = time.Duration(seconds * float64(time.Second))
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON mirrors UnmarshalYAML: a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case nil:
		d.Duration = 0
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
	case string:
		if value == "" {
			d.Duration = 0
			return nil
		}
		if parsed, err := time.ParseDuration(value); err == nil {
			d.Duration = parsed
			return nil
		}
		seconds, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid duration %q", value)
		}
		d.Duration = time.Duration(seconds * float64(time.Second))
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// Seconds is shorthand for building a Duration in defaults and tests.
func Seconds(n float64) Duration {
	return Duration{time.Duration(n * float64(time.Second))}
}
