// Package engine resolves rounds of the tech race: it turns the current game
// snapshot plus one allocation per team into the next snapshot.
//
// The package is pure computation. It never performs I/O, never logs and
// never keeps state between calls; every rule constant arrives through Config.
package engine

// Team identifies a playing nation.
type Team string

// Role is a Team or the game master.
type Role string

// RoleGM administers the game and sees every log.
const RoleGM Role = "GM"

// Tier is a technology level.
type Tier string

const (
	TierL Tier = "L"
	TierM Tier = "M"
	TierH Tier = "H"
)

// Regime is flavour carried from the team roster.
type Regime string

const (
	RegimeDemo Regime = "demo"
	RegimeAuto Regime = "auto"
)

// Stance is the immigration choice of an allocation.
type Stance string

const (
	StanceNone  Stance = "none"
	StanceOpen  Stance = "open"
	StanceClose Stance = "close"
)

// SpyAction targets one team's progress in one tier. An empty Target abstains.
type SpyAction struct {
	Target Team `json:"target"`
	Tech   Tier `json:"tech"`
}

// Allocation is what a team submits for one round.
type Allocation struct {
	SE int          `json:"SE"` // 0 or 1
	TE int          `json:"TE"` // 0 or 1
	IM Stance       `json:"IM"`
	BR int          `json:"BR"`
	AR map[Tier]int `json:"AR"`
	SP []*SpyAction `json:"SP"`
}

// ARTotal is the number of applied-research dice across all tiers. Negative
// counts are skipped and the sum saturates at math.MaxInt.
func (a *Allocation) ARTotal() int {
	if a == nil {
		return 0
	}
	total := 0
	for _, n := range a.AR {
		if n > 0 {
			total = addCapped(total, n)
		}
	}
	return total
}

// ActiveSpies returns the actions with a target.
func (a *Allocation) ActiveSpies() []SpyAction {
	if a == nil {
		return nil
	}
	var out []SpyAction
	for _, sp := range a.SP {
		if sp != nil && sp.Target != "" {
			out = append(out, *sp)
		}
	}
	return out
}

// SpyRoll is one espionage attempt as rolled.
type SpyRoll struct {
	RawRoll int  `json:"raw_roll"`
	Target  Team `json:"target"`
	Tech    Tier `json:"tech"`
	Success bool `json:"success"`
}

// Rolls holds the raw dice of the most recent round.
type Rolls struct {
	BR []int          `json:"BR"`
	AR map[Tier][]int `json:"AR"`
	SP []SpyRoll      `json:"SP"`
}

// Phase tags a dice-log row.
type Phase string

const (
	PhaseReject    Phase = "REJECT"
	PhaseEducation Phase = "EDU"
	PhaseBasic     Phase = "BR"
	PhaseApplied   Phase = "AR"
	PhaseSpy       Phase = "SP"
	PhaseCarry     Phase = "CARRY"
)

// DiceLogEntry is one structured audit row.
type DiceLogEntry struct {
	Round    int     `json:"round"`
	Phase    Phase   `json:"Phase"`
	Tech     Tier    `json:"Tech,omitempty"`
	Rolls    []int   `json:"Rolls,omitempty"`
	DeltaK   float64 `json:"ΔK,omitempty"`
	DeltaTK  float64 `json:"ΔTK,omitempty"`
	DeltaTP  int     `json:"ΔTP,omitempty"`
	DeltaIM  int     `json:"ΔIM,omitempty"`
	SPResult string  `json:"SP_Result,omitempty"`
}

// TeamState is the persistent per-team record.
type TeamState struct {
	GDP    float64 `json:"GDP"`
	POP    float64 `json:"POP"`
	W      int     `json:"W"`
	PW     float64 `json:"PW"`
	SE     int     `json:"SE"`
	TE     int     `json:"TE"`
	IM     int     `json:"IM"`
	Regime Regime  `json:"regime"`

	K  float64 `json:"K"`
	TK float64 `json:"TK"`

	BRTotal     int     `json:"BR_total"`
	BREffective float64 `json:"BR_effective"`
	BRSucc      int     `json:"BR_succ"`

	TP          map[Tier]int  `json:"TP"`
	TPLastRound map[Tier]int  `json:"TP_last_round"`
	Discovered  map[Tier]bool `json:"discovered"`

	Submitted bool `json:"submitted"`

	SpyRevealed    map[Team]map[Tier]bool `json:"spy_revealed"`
	SpyCaughtCount map[Team]map[Tier]int  `json:"spy_caught_count"`

	RollsSaved Rolls          `json:"rolls_saved"`
	DiceLog    []DiceLogEntry `json:"dice_log"`

	UnspentDice       int     `json:"unspent_dice"`
	CarryFraction     float64 `json:"carry_fraction"`
	PendingWCarryover int     `json:"pending_W_carryover"`
	LastCarryover     int     `json:"last_carryover"`
}

// Scope says who may read a log entry.
type Scope string

const (
	ScopePublic  Scope = "public"
	ScopePrivate Scope = "private"
)

// Audience tags a log entry. Team is set for private entries.
type Audience struct {
	Scope Scope `json:"scope"`
	Team  Team  `json:"team,omitempty"`
}

// LogEntry is one line of the public or a private log.
type LogEntry struct {
	Round    int      `json:"round"`
	Event    string   `json:"event"`
	Audience Audience `json:"audience"`
}

// RoundHistory freezes one resolved round.
type RoundHistory struct {
	Round       int                  `json:"round"`
	Allocations map[Team]*Allocation `json:"allocations"`
	Before      map[Team]*TeamState  `json:"before"`
	After       map[Team]*TeamState  `json:"after"`
	Rolls       map[Team]Rolls       `json:"rolls"`
	PublicLog   []LogEntry           `json:"public_log"`
	PrivateLogs map[Team][]LogEntry  `json:"private_logs"`
}

// GameState is the whole snapshot exchanged with the collaborator.
type GameState struct {
	Round         int                  `json:"round"`
	Teams         map[Team]*TeamState  `json:"teams"`
	Submissions   map[Team]*Allocation `json:"submissions"`
	GlobalBRPool  map[Tier]int         `json:"global_BR_pool"`
	PublicLog     []LogEntry           `json:"public_log"`
	PrivateLogs   map[Team][]LogEntry  `json:"private_logs"`
	ActiveUsers   map[Team]bool        `json:"active_users"`
	GameReady     bool                 `json:"game_ready"`
	History       []RoundHistory       `json:"history"`
	RoundResolved bool                 `json:"round_resolved"`
	Concluded     bool                 `json:"concluded"`
}
