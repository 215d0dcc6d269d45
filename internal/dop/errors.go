package dop

import "fmt"

// ConfigError reports invalid processing parameters: an even averaging
// window, a missing required beam, an unsupported frequency count. These
// are fatal and surfaced immediately rather than degraded around.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// GeometryError reports impossible transducer geometry, such as a bistatic
// half-angle that is undefined because the baseline meets or exceeds twice
// the range. Near-singular per-bin inversions are NOT geometry errors; they
// degrade to NaN output instead.
type GeometryError struct {
	Msg string
}

func (e *GeometryError) Error() string { return "geometry: " + e.Msg }

func geometryErrorf(format string, args ...interface{}) error {
	return &GeometryError{Msg: fmt.Sprintf(format, args...)}
}
