package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Paths helper for default/scenario files.
type Paths struct {
	BaseDir string // base directory, e.g., /opt/app/config
}

func (p Paths) DefaultPath() string {
	return filepath.Join(p.BaseDir, "rules", "default.yaml")
}
func (p Paths) ScenarioPath(name string) string {
	return filepath.Join(p.BaseDir, "rules", "scenarios", name+".yaml")
}

// Loader reads YAML rule files and merges default → scenario.
type Loader struct {
	paths Paths

	mu    sync.RWMutex
	cache map[string]RawConfig // key: scenario name, "" for default only
}

// NewLoader creates a rules loader with the given base directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		paths: Paths{BaseDir: baseDir},
		cache: make(map[string]RawConfig),
	}
}

// Paths returns the files this loader reads; handy for a FileWatcher.
func (l *Loader) Paths() Paths { return l.paths }

// LoadMerged loads and merges default → scenario (scenario optional).
// It returns the merged RawConfig (without conversion).
func (l *Loader) LoadMerged(scenario string) (RawConfig, error) {
	l.mu.RLock()
	if cfg, ok := l.cache[scenario]; ok {
		l.mu.RUnlock()
		return cfg, nil
	}
	l.mu.RUnlock()

	defCfg, err := readYAML(l.paths.DefaultPath())
	if err != nil {
		return RawConfig{}, fmt.Errorf("read default: %w", err)
	}
	merged := defCfg
	if scenario != "" {
		path := l.paths.ScenarioPath(scenario)
		if _, err := os.Stat(path); err != nil {
			return RawConfig{}, fmt.Errorf("scenario %q: %w", scenario, err)
		}
		scCfg, err := readYAML(path)
		if err != nil {
			return RawConfig{}, fmt.Errorf("read scenario %q: %w", scenario, err)
		}
		merged = mergeRaw(defCfg, scCfg)
	}

	l.mu.Lock()
	l.cache[scenario] = merged
	l.mu.Unlock()

	return merged, nil
}

// Invalidate clears loader's cache. Call after hot-reload detects changes.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]RawConfig)
}

// readYAML loads a YAML file into RawConfig. Missing files return zero cfg, no error.
func readYAML(path string) (RawConfig, error) {
	var cfg RawConfig
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RawConfig{}, nil
		}
		return RawConfig{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return RawConfig{}, err
	}
	return cfg, nil
}

// pick returns b when set, else a.
func pick[T any](a, b *T) *T {
	if b != nil {
		return b
	}
	return a
}

// mergeRaw performs a deep merge: 'b' overrides 'a' where set.
// Teams and ar_cost are replaced wholesale; techs merge per tier.
func mergeRaw(a, b RawConfig) RawConfig {
	out := a

	// top-level scalars
	if b.Version != "" {
		out.Version = b.Version
	}
	if b.Notes != "" {
		out.Notes = b.Notes
	}

	// game
	out.Game.MaxRounds = pick(a.Game.MaxRounds, b.Game.MaxRounds)
	out.Game.CarryFraction = pick(a.Game.CarryFraction, b.Game.CarryFraction)
	out.Game.RequireAllSubmissions = pick(a.Game.RequireAllSubmissions, b.Game.RequireAllSubmissions)
	out.Game.AnnounceDiscoveries = pick(a.Game.AnnounceDiscoveries, b.Game.AnnounceDiscoveries)

	// weights
	switch {
	case out.Weights == nil && b.Weights != nil:
		c := *b.Weights
		out.Weights = &c
	case out.Weights != nil && b.Weights != nil:
		c := *out.Weights
		c.GDPExponent = pick(c.GDPExponent, b.Weights.GDPExponent)
		c.PopExponent = pick(c.PopExponent, b.Weights.PopExponent)
		c.GDPBaseline = pick(c.GDPBaseline, b.Weights.GDPBaseline)
		out.Weights = &c
	}

	if len(b.Teams) > 0 {
		out.Teams = append([]TeamCfg(nil), b.Teams...)
	}
	out.Techs = mergeTechs(a.Techs, b.Techs)

	// research
	switch {
	case out.Research == nil && b.Research != nil:
		c := *b.Research
		out.Research = &c
	case out.Research != nil && b.Research != nil:
		c := *out.Research
		c.ARSuccessTK = pick(c.ARSuccessTK, b.Research.ARSuccessTK)
		c.BRDie = pick(c.BRDie, b.Research.BRDie)
		c.Spillover = pick(c.Spillover, b.Research.Spillover)
		if len(b.Research.ARCost) > 0 {
			c.ARCost = append([]CostStepCfg(nil), b.Research.ARCost...)
		}
		out.Research = &c
	}

	// education
	switch {
	case out.Education == nil && b.Education != nil:
		c := *b.Education
		out.Education = &c
	case out.Education != nil && b.Education != nil:
		c := *out.Education
		c.SEKPerCost = pick(c.SEKPerCost, b.Education.SEKPerCost)
		c.TEGain = pick(c.TEGain, b.Education.TEGain)
		c.TETK = pick(c.TETK, b.Education.TETK)
		c.ImmigrationK = pick(c.ImmigrationK, b.Education.ImmigrationK)
		c.InitialKScale = pick(c.InitialKScale, b.Education.InitialKScale)
		out.Education = &c
	}

	// espionage
	switch {
	case out.Espionage == nil && b.Espionage != nil:
		c := *b.Espionage
		out.Espionage = &c
	case out.Espionage != nil && b.Espionage != nil:
		c := *out.Espionage
		c.Die = pick(c.Die, b.Espionage.Die)
		c.TKTransfer = pick(c.TKTransfer, b.Espionage.TKTransfer)
		out.Espionage = &c
	}

	return out
}

func mergeTechs(a, b []TechCfg) []TechCfg {
	out := append([]TechCfg(nil), a...)
	for _, bt := range b {
		i := -1
		for j := range out {
			if out[j].Tier == bt.Tier {
				i = j
				break
			}
		}
		if i < 0 {
			out = append(out, bt)
			continue
		}
		t := out[i]
		t.TPThreshold = pick(t.TPThreshold, bt.TPThreshold)
		t.BRReq = pick(t.BRReq, bt.BRReq)
		t.ARThr = pick(t.ARThr, bt.ARThr)
		t.Low = pick(t.Low, bt.Low)
		t.High = pick(t.High, bt.High)
		t.BaseP = pick(t.BaseP, bt.BaseP)
		t.MaxP = pick(t.MaxP, bt.MaxP)
		t.TKRef = pick(t.TKRef, bt.TKRef)
		t.KMin = pick(t.KMin, bt.KMin)
		t.TKMin = pick(t.TKMin, bt.TKMin)
		t.DiscoveryTK = pick(t.DiscoveryTK, bt.DiscoveryTK)
		if bt.Easing != "" {
			t.Easing = bt.Easing
		}
		out[i] = t
	}
	return out
}
