package schedule

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML shape of a work schedule definition.
type FileConfig struct {
	Name   string        `yaml:"name"`
	Shifts []ShiftConfig `yaml:"shifts"`
}

// ShiftConfig defines one recurring shift in the YAML file.
type ShiftConfig struct {
	Name  string   `yaml:"name"`
	Days  []string `yaml:"days"`
	Start string   `yaml:"start"` // "06:00"
	Hours float64  `yaml:"hours"`
}

// LoadFile reads and builds a work schedule from a YAML definition.
func LoadFile(path string) (*WorkSchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("schedule: parse %s: %w", path, err)
	}
	return cfg.Build()
}

// Build converts the file config into a WorkSchedule.
func (c FileConfig) Build() (*WorkSchedule, error) {
	var shifts []Shift
	for _, sc := range c.Shifts {
		start, err := parseClock(sc.Start)
		if err != nil {
			return nil, fmt.Errorf("schedule: shift %q: %w", sc.Name, err)
		}
		if sc.Hours <= 0 {
			return nil, fmt.Errorf("schedule: shift %q has no hours", sc.Name)
		}
		days, err := parseDays(sc.Days)
		if err != nil {
			return nil, fmt.Errorf("schedule: shift %q: %w", sc.Name, err)
		}
		for _, day := range days {
			shifts = append(shifts, Shift{
				Name:     sc.Name,
				Day:      day,
				Start:    start,
				Duration: time.Duration(sc.Hours * float64(time.Hour)),
			})
		}
	}
	return NewWorkSchedule(c.Name, shifts)
}

func parseClock(value string) (time.Duration, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid start %q", value)
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseDays(names []string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, name := range names {
		key := strings.ToLower(name)
		if len(key) > 3 {
			key = key[:3]
		}
		day, ok := weekdays[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, day)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no days configured")
	}
	return days, nil
}
