// Package bytesize parses human-readable byte size strings, the kind a
// user types into a config file: "1Gi", "500Mi", "100MB", or a bare
// integer number of bytes.
package bytesize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Size is a count of bytes that decodes from human-readable strings.
//
// Supported forms:
//   - bare integers: 1024, 1073741824 (bytes)
//   - binary units (×1024): Ki/KiB, Mi/MiB, Gi/GiB, Ti/TiB
//   - decimal units (×1000): K/KB, M/MB, G/GB, T/TB
//   - B for bytes explicitly
type Size uint64

const (
	Byte Size = 1
	KB   Size = 1000 * Byte
	MB   Size = 1000 * KB
	GB   Size = 1000 * MB
	TB   Size = 1000 * GB

	KiB Size = 1024 * Byte
	MiB Size = 1024 * KiB
	GiB Size = 1024 * MiB
	TiB Size = 1024 * GiB
)

// unitScale is one step of the decimal/binary ladders below: a letter
// ("k", "m", ...) and its two multipliers. unitMultipliers is built from
// this table rather than written out unit-by-unit, so the decimal and
// binary suffix spellings ("k"/"kb" vs "ki"/"kib") stay in lockstep with
// the constants above instead of risking drift between two hand-written
// lists.
type unitScale struct {
	letter  string
	decimal Size
	binary  Size
}

var scales = []unitScale{
	{"k", KB, KiB},
	{"m", MB, MiB},
	{"g", GB, GiB},
	{"t", TB, TiB},
}

var unitMultipliers = buildUnitMultipliers()

func buildUnitMultipliers() map[string]Size {
	m := map[string]Size{"": Byte, "b": Byte}
	for _, sc := range scales {
		m[sc.letter] = sc.decimal
		m[sc.letter+"b"] = sc.decimal
		m[sc.letter+"i"] = sc.binary
		m[sc.letter+"ib"] = sc.binary
	}
	return m
}

var sizePattern = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*([a-z]*)\s*$`)

// Parse converts a human-readable size string into a Size. The numeric
// part is always parsed as a float regardless of whether it carries a
// decimal point; whole-number inputs round-trip exactly since every
// multiplier here is itself a whole number well within float64's 53-bit
// mantissa.
func Parse(s string) (Size, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("bytesize: empty size string")
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("bytesize: invalid size %q", s)
	}

	multiplier, ok := unitMultipliers[strings.ToLower(matches[2])]
	if !ok {
		return 0, fmt.Errorf("bytesize: unknown unit %q in %q", matches[2], s)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number %q: %w", matches[1], err)
	}

	return Size(math.Round(num * float64(multiplier))), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so Size can be decoded
// directly by mapstructure/viper from config values.
func (s *Size) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// String renders s using the largest binary unit that keeps the value >= 1.
func (s Size) String() string {
	for _, sc := range []struct {
		threshold Size
		suffix    string
	}{
		{TiB, "TiB"},
		{GiB, "GiB"},
		{MiB, "MiB"},
		{KiB, "KiB"},
	} {
		if s >= sc.threshold {
			return fmt.Sprintf("%.2f%s", float64(s)/float64(sc.threshold), sc.suffix)
		}
	}
	return fmt.Sprintf("%dB", s)
}

// Uint64 returns s as a uint64.
func (s Size) Uint64() uint64 { return uint64(s) }

// Int64 returns s as an int64. Values above math.MaxInt64 overflow.
func (s Size) Int64() int64 { return int64(s) }
