// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the params file that maps robot states to the numeric
// codes expected downstream, together with the runtime settings of the arbiter.
//
// The file has the layout
//
//	goal_mode:
//	  MANUAL: 0
//	  AUTONOMOUS: 1
//	  EMERGENCY: 2
//	  IN_GOAL: 3
//	  MISSION_COMPLETED: 4
//	machine_states:
//	  tick_rate_hz: 1
//	  signal_dir: /run/machine-states/signals
//	  status_file: /run/machine-states/robot_state.json
//	  metrics_port: 0
//	  debug: false
//
// The state code group is mandatory and read once. The machine_states group is optional.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/machine-states/pkg/constants"
	"github.com/united-manufacturing-hub/machine-states/pkg/models"
)

var (
	// ErrMissingStateCode is returned when the code group lacks one of the five states.
	ErrMissingStateCode = errors.New("missing state code")
	// ErrDuplicateStateCode is returned when two states share a code.
	ErrDuplicateStateCode = errors.New("duplicate state code")
	// ErrInvalidStateCode is returned for a state code that is not an int16 integer.
	ErrInvalidStateCode = errors.New("invalid state code")
	// ErrInvalidRuntimeConfig is returned for out-of-range runtime settings.
	ErrInvalidRuntimeConfig = errors.New("invalid runtime config")
)

// StateCodes maps every robot state to its wire code. It is immutable once loaded.
type StateCodes struct {
	codes map[models.State]int16
}

// NewStateCodes builds and validates a code table. Every state must be present
// and codes must be distinct.
func NewStateCodes(codes map[models.State]int16) (StateCodes, error) {
	table := StateCodes{codes: make(map[models.State]int16, len(codes))}
	for s, c := range codes {
		table.codes[s] = c
	}

	if err := table.Validate(); err != nil {
		return StateCodes{}, err
	}

	return table, nil
}

// Validate checks that all states have a code and no code is used twice.
func (c StateCodes) Validate() error {
	seen := make(map[int16]models.State, len(models.AllStates))

	for _, s := range models.AllStates {
		code, ok := c.codes[s]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingStateCode, s)
		}

		if other, dup := seen[code]; dup {
			return fmt.Errorf("%w: %s and %s both use %d", ErrDuplicateStateCode, other, s, code)
		}

		seen[code] = s
	}

	return nil
}

// Code returns the wire code for s. The table is validated on construction,
// so the lookup only misses for a zero StateCodes.
func (c StateCodes) Code(s models.State) (int16, bool) {
	code, ok := c.codes[s]

	return code, ok
}

// MustCode is Code for callers that hold a validated table.
func (c StateCodes) MustCode(s models.State) int16 {
	code, ok := c.codes[s]
	if !ok {
		panic(fmt.Sprintf("no code for state %s", s))
	}

	return code
}

// Map returns a copy of the table keyed by state name.
func (c StateCodes) Map() map[string]int16 {
	out := make(map[string]int16, len(c.codes))
	for s, code := range c.codes {
		out[s.String()] = code
	}

	return out
}

// RuntimeConfig holds the optional machine_states settings.
type RuntimeConfig struct {
	SignalDir   string  `yaml:"signal_dir"`
	StatusFile  string  `yaml:"status_file"`
	TickRateHz  float64 `yaml:"tick_rate_hz"`
	MetricsPort int     `yaml:"metrics_port"`
	Debug       bool    `yaml:"debug"`
}

// DefaultRuntimeConfig returns the settings used for every key absent from the file.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		TickRateHz:  constants.DefaultTickRateHz,
		SignalDir:   constants.DefaultSignalDir,
		StatusFile:  constants.DefaultStatusFile,
		MetricsPort: constants.DefaultMetricsPort,
	}
}

// Validate checks ranges of the runtime settings.
func (r RuntimeConfig) Validate() error {
	if math.IsNaN(r.TickRateHz) || r.TickRateHz <= 0 || r.TickRateHz > constants.MaxTickRateHz {
		return fmt.Errorf("%w: tick_rate_hz must be in (0, %g], got %g", ErrInvalidRuntimeConfig, constants.MaxTickRateHz, r.TickRateHz)
	}

	if r.MetricsPort < 0 || r.MetricsPort > 65535 {
		return fmt.Errorf("%w: metrics_port must be in [0, 65535], got %d", ErrInvalidRuntimeConfig, r.MetricsPort)
	}

	if r.SignalDir == "" {
		return fmt.Errorf("%w: signal_dir must not be empty", ErrInvalidRuntimeConfig)
	}

	return nil
}

// FullConfig is everything the arbiter reads at startup.
type FullConfig struct {
	Codes   StateCodes
	Runtime RuntimeConfig
	// Hash fingerprints the code table and runtime settings.
	Hash string
}

// Validate validates both parts of the config.
func (c FullConfig) Validate() error {
	if err := c.Codes.Validate(); err != nil {
		return err
	}

	return c.Runtime.Validate()
}

// Load reads the params file at path and extracts the code table from group.
func Load(path string, group string) (FullConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FullConfig{}, fmt.Errorf("failed to read params file %s: %w", path, err)
	}

	return Parse(data, group)
}

// Parse decodes a params document. State keys are matched case-insensitively
// and must hold integer codes. Other keys inside the group are ignored
// whatever their type.
func Parse(data []byte, group string) (FullConfig, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return FullConfig{}, fmt.Errorf("failed to parse params file: %w", err)
	}

	groupNode, ok := doc[group]
	if !ok {
		return FullConfig{}, fmt.Errorf("%w: group %q not found", ErrMissingStateCode, group)
	}

	var raw map[string]yaml.Node
	if err := groupNode.Decode(&raw); err != nil {
		return FullConfig{}, fmt.Errorf("failed to decode group %q: %w", group, err)
	}

	codes := make(map[models.State]int16, len(raw))

	for key, node := range raw {
		state, err := models.ParseState(strings.TrimSpace(key))
		if err != nil {
			continue
		}

		if _, dup := codes[state]; dup {
			return FullConfig{}, fmt.Errorf("%w: %s is defined more than once", ErrDuplicateStateCode, state)
		}

		// yaml.v3 truncates 2.7 to 2 when decoding into an integer.
		if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!int" {
			return FullConfig{}, fmt.Errorf("%w: %s is %q, expected an integer", ErrInvalidStateCode, state, node.Value)
		}

		var value int64
		if err := node.Decode(&value); err != nil {
			return FullConfig{}, fmt.Errorf("%w: %s: %w", ErrInvalidStateCode, state, err)
		}

		if value < math.MinInt16 || value > math.MaxInt16 {
			return FullConfig{}, fmt.Errorf("%w: code %d for %s does not fit into int16", ErrInvalidStateCode, value, state)
		}

		codes[state] = int16(value)
	}

	table, err := NewStateCodes(codes)
	if err != nil {
		return FullConfig{}, err
	}

	runtime := DefaultRuntimeConfig()
	if node, ok := doc[constants.RuntimeSection]; ok {
		if err := node.Decode(&runtime); err != nil {
			return FullConfig{}, fmt.Errorf("failed to decode %s: %w", constants.RuntimeSection, err)
		}
	}

	cfg := FullConfig{Codes: table, Runtime: runtime}
	if err := cfg.Runtime.Validate(); err != nil {
		return FullConfig{}, err
	}

	cfg.Hash = cfg.fingerprint()

	return cfg, nil
}

// fingerprint returns a stable xxhash of the config contents.
func (c FullConfig) fingerprint() string {
	h := xxhash.New()

	for _, s := range models.AllStates {
		code, _ := c.Codes.Code(s)
		_, _ = h.WriteString(s.String())
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(strconv.Itoa(int(code)))
		_, _ = h.WriteString(";")
	}

	_, _ = fmt.Fprintf(h, "%g;%s;%s;%d;%t", c.Runtime.TickRateHz, c.Runtime.SignalDir,
		c.Runtime.StatusFile, c.Runtime.MetricsPort, c.Runtime.Debug)

	return strconv.FormatUint(h.Sum64(), 16)
}
