// types.go
package rules

// Raw rule set loaded from YAML. Pointer fields distinguish "not set" from
// zero so a scenario file can override only what it names.
type RawConfig struct {
	Version   string        `yaml:"version"`
	Notes     string        `yaml:"notes,omitempty"`
	Game      GameCfg       `yaml:"game"`
	Weights   *WeightsCfg   `yaml:"weights,omitempty"`
	Teams     []TeamCfg     `yaml:"teams,omitempty"`
	Techs     []TechCfg     `yaml:"techs,omitempty"`
	Research  *ResearchCfg  `yaml:"research,omitempty"`
	Education *EducationCfg `yaml:"education,omitempty"`
	Espionage *EspionageCfg `yaml:"espionage,omitempty"`
}

type GameCfg struct {
	MaxRounds             *int     `yaml:"max_rounds"`
	CarryFraction         *float64 `yaml:"carry_fraction"`
	RequireAllSubmissions *bool    `yaml:"require_all_submissions"`
	AnnounceDiscoveries   *bool    `yaml:"announce_discoveries"`
}

type WeightsCfg struct {
	GDPExponent *float64 `yaml:"gdp_exponent"`
	PopExponent *float64 `yaml:"pop_exponent"`
	GDPBaseline *float64 `yaml:"gdp_baseline"`
}

// TeamCfg is one roster entry. A scenario that lists teams replaces the
// whole roster.
type TeamCfg struct {
	Name   string  `yaml:"name"`
	GDP    float64 `yaml:"gdp"`
	POP    float64 `yaml:"pop"`
	SE     int     `yaml:"se"`
	TE     int     `yaml:"te"`
	IM     int     `yaml:"im"`
	Regime string  `yaml:"regime"`
}

// TechCfg is one research tier. Scenario entries merge into the default
// entry with the same tier.
type TechCfg struct {
	Tier        string   `yaml:"tier"`
	TPThreshold *int     `yaml:"tp_threshold"`
	BRReq       *float64 `yaml:"br_req"`
	ARThr       *int     `yaml:"ar_thr"`
	Low         *int     `yaml:"low"`
	High        *int     `yaml:"high"`
	BaseP       *float64 `yaml:"base_p"`
	MaxP        *float64 `yaml:"max_p"`
	TKRef       *float64 `yaml:"tk_ref"`
	Easing      string   `yaml:"easing,omitempty"`
	KMin        *float64 `yaml:"k_min"`
	TKMin       *float64 `yaml:"tk_min"`
	DiscoveryTK *float64 `yaml:"discovery_tk"`
}

type CostStepCfg struct {
	Units int `yaml:"units"` // 0 = unbounded, last step only
	Cost  int `yaml:"cost"`
}

type DieCfg struct {
	Sides     int `yaml:"sides"`
	SuccessAt int `yaml:"success_at"`
}

type ResearchCfg struct {
	ARSuccessTK *float64      `yaml:"ar_success_tk"`
	ARCost      []CostStepCfg `yaml:"ar_cost,omitempty"`
	BRDie       *DieCfg       `yaml:"br_die,omitempty"`
	Spillover   *float64      `yaml:"spillover"`
}

type EducationCfg struct {
	SEKPerCost    *float64 `yaml:"se_k_per_cost"`
	TEGain        *int     `yaml:"te_gain"`
	TETK          *float64 `yaml:"te_tk"`
	ImmigrationK  *float64 `yaml:"immigration_k"`
	InitialKScale *float64 `yaml:"initial_k_scale"`
}

type EspionageCfg struct {
	Die        *DieCfg  `yaml:"die,omitempty"`
	TKTransfer *float64 `yaml:"tk_transfer"`
}
