package model

import (
	"errors"
	"fmt"
	"sort"
)

// Recognized setting keys.
const (
	SettingMaxPlayTime        = "maxPlayTime"
	SettingRobotSpawnDelay    = "robotSpawnDelay"
	SettingPowerupSpawnDelay  = "powerupSpawnDelay"
	SettingPowerupSpawnRadius = "powerupSpawnRadius"
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidSetting = errors.New("invalid setting value")
)

var settingDefaults = map[string]int{
	SettingMaxPlayTime:        1200,
	SettingRobotSpawnDelay:    180,
	SettingPowerupSpawnDelay:  30,
	SettingPowerupSpawnRadius: 50,
}

// Settings holds the tunable game parameters. Times are in seconds and the
// spawn radius is in blocks. All values are positive.
type Settings map[string]int

// DefaultSettings returns a fresh copy of the default settings.
func DefaultSettings() Settings {
	s := make(Settings, len(settingDefaults))
	for k, v := range settingDefaults {
		s[k] = v
	}
	return s
}

// SettingKeys returns the recognized keys in sorted order.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingDefaults))
	for k := range settingDefaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value for key, falling back to the default when unset.
func (s Settings) Get(key string) int {
	if v, ok := s[key]; ok {
		return v
	}
	return settingDefaults[key]
}

// Set validates and stores a value.
func (s Settings) Set(key string, value int) error {
	if err := ValidateSetting(key, value); err != nil {
		return err
	}
	s[key] = value
	return nil
}

// Clone returns an independent copy.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Validate checks every entry without modifying s.
func (s Settings) Validate() error {
	for k, v := range s {
		if err := ValidateSetting(k, v); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSetting reports whether key is recognized and value is positive.
func ValidateSetting(key string, value int) error {
	if _, ok := settingDefaults[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	if value <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidSetting, key, value)
	}
	return nil
}
