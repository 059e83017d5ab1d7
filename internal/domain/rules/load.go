package rules

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default settings applied when the rule table omits a key.
const (
	defaultCoachesPerLesson  = 1
	defaultLessonsPerCoach   = 1
	defaultArrivalMinutes    = 30
	defaultSessionMinutes    = 60
	defaultTimeBudgetSeconds = 60
	defaultSeed              = 1
	defaultUnderstaffWeight  = 1000
	defaultOverstaffWeight   = 10
	defaultImbalanceWeight   = 1
	defaultFragmentWeight    = 5
	defaultSkillWeight       = 2
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// rawTable mirrors the YAML layout of a rule table.
type rawTable struct {
	Version      string                 `koanf:"version"`
	SessionTypes map[string]rawCategory `koanf:"session_types"`
	Private      rawPrivate             `koanf:"private_lessons"`
	Operational  rawOperational         `koanf:"operational_settings"`
	Optimizer    rawOptimizer           `koanf:"optimizer_settings"`
}

type rawCategory struct {
	Capacity      int       `koanf:"capacity"`
	BaselineRules []rawRule `koanf:"baseline_rules"`
	NoBaseline    bool      `koanf:"no_baseline"`
	RequiredSkill int       `koanf:"required_skill"`
	Roles         []string  `koanf:"roles"`
}

type rawRule struct {
	GuestRange      []int `koanf:"guest_range"`
	BaselineCoaches int   `koanf:"baseline_coaches"`
}

type rawPrivate struct {
	CoachesPerLesson int  `koanf:"coaches_per_lesson"`
	CanGroup         bool `koanf:"can_group"`
	LessonsPerCoach  int  `koanf:"lessons_per_coach"`
}

type rawOperational struct {
	ArrivalMinutes int      `koanf:"coach_arrival_minutes_before_session"`
	Sides          []string `koanf:"sides"`
	SessionMinutes int      `koanf:"session_minutes"`
}

type rawOptimizer struct {
	TimeBudgetSeconds      float64    `koanf:"time_budget_seconds"`
	StrictCoverage         bool       `koanf:"strict_coverage"`
	DefaultAvailable       bool       `koanf:"default_available"`
	Seed                   int64      `koanf:"seed"`
	MaxConsecutiveHours    int        `koanf:"max_consecutive_hours"`
	DefaultMinBreakMinutes int        `koanf:"default_min_break_minutes"`
	Weights                rawWeights `koanf:"weights"`
}

type rawWeights struct {
	Understaffing float64 `koanf:"understaffing"`
	Overstaffing  float64 `koanf:"overstaffing"`
	Imbalance     float64 `koanf:"imbalance"`
	Fragmentation float64 `koanf:"fragmentation"`
	SkillMismatch float64 `koanf:"skill_mismatch"`
}

func defaultRaw() rawTable {
	return rawTable{
		Private: rawPrivate{
			CoachesPerLesson: defaultCoachesPerLesson,
			LessonsPerCoach:  defaultLessonsPerCoach,
		},
		Operational: rawOperational{
			ArrivalMinutes: defaultArrivalMinutes,
			Sides:          []string{"LEFT", "RIGHT"},
			SessionMinutes: defaultSessionMinutes,
		},
		Optimizer: rawOptimizer{
			TimeBudgetSeconds: defaultTimeBudgetSeconds,
			DefaultAvailable:  true,
			Seed:              defaultSeed,
			Weights: rawWeights{
				Understaffing: defaultUnderstaffWeight,
				Overstaffing:  defaultOverstaffWeight,
				Imbalance:     defaultImbalanceWeight,
				Fragmentation: defaultFragmentWeight,
				SkillMismatch: defaultSkillWeight,
			},
		},
	}
}

// bytesProvider feeds an in-memory YAML document to koanf.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) { return b, nil }

func (b bytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("bytes provider does not support Read")
}

// LoadFile reads, validates and builds a rule table from a YAML file.
func LoadFile(_ context.Context, path string) (*Table, error) {
	return load(file.Provider(path))
}

// Parse validates and builds a rule table from a YAML document.
func Parse(data []byte) (*Table, error) {
	return load(bytesProvider(data))
}

// Default returns the built-in rule table.
func Default() (*Table, error) {
	return Parse(defaultRulesYAML)
}

// MustDefault is Default for callers that treat a broken built-in table as a bug.
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

func load(p koanf.Provider) (*Table, error) {
	k := koanf.New(".")
	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadRuleTable, err)
	}
	raw := defaultRaw()
	if err := k.UnmarshalWithConf("", &raw, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadRuleTable, err)
	}
	return build(raw)
}
