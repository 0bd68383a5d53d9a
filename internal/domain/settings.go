package domain

import "strconv"

// Settings keys with documented defaults. Missing keys resolve to
// these defaults rather than erroring, so callers never need a presence
// check before reading configuration.
const (
	KeyLogDirectory      = "log_directory"
	KeyMaxLogAgeDays     = "max_log_age_days"
	KeyMaxHistoryPerJob  = "max_history_per_job"
	KeyAutoTrailingSlash = "auto_trailing_slash"
	KeyCheckIntervalSecs = "check_interval_secs"
	KeyRetentionEveryN   = "retention_check_every_n_cycles"
)

var defaultSettings = map[string]string{
	KeyLogDirectory:      "./logs",
	KeyMaxLogAgeDays:     "90",
	KeyMaxHistoryPerJob:  "100",
	KeyAutoTrailingSlash: "true",
	KeyCheckIntervalSecs: "300",
	KeyRetentionEveryN:   "12",
}

// DefaultSetting returns the documented default for a settings key, or ""
// if the key has no documented default.
func DefaultSetting(key string) string {
	return defaultSettings[key]
}

// SettingsReader is the minimal read surface typed accessors are built on;
// satisfied directly by repository.SettingsRepository-backed adapters or by
// a plain map in tests.
type SettingsReader interface {
	Get(key string) (string, bool)
}

// MapSettings is a trivial SettingsReader over a map, useful in tests and as
// an in-memory settings cache.
type MapSettings map[string]string

func (m MapSettings) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// StringSetting returns the raw string value for key, falling back to the
// documented default if absent.
func StringSetting(r SettingsReader, key string) string {
	if v, ok := r.Get(key); ok {
		return v
	}
	return DefaultSetting(key)
}

// IntSetting parses key as an int, falling back to the documented default
// when the key is absent. It returns 0 when the value in use (stored or
// default) does not parse as an int.
func IntSetting(r SettingsReader, key string) int {
	raw := StringSetting(r, key)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

// BoolSetting parses key as a bool ("true"/"false"), falling back to the
// documented default.
func BoolSetting(r SettingsReader, key string) bool {
	raw := StringSetting(r, key)
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return v
}
