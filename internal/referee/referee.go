// Package referee projects referee/state messages into scoreboard fields.
// There is no history: the last message wins.
package referee

import (
	"fmt"
	"time"

	"github.com/daviddao/crane_viewer/internal/wire"
)

// Stage is the game stage, numbered as in the SSL referee protocol.
type Stage int

const (
	StageFirstHalfPre Stage = iota
	StageFirstHalf
	StageHalfTime
	StageSecondHalfPre
	StageSecondHalf
	StageExtraTimeBreak
	StageExtraFirstHalfPre
	StageExtraFirstHalf
	StageExtraHalfTime
	StageExtraSecondHalfPre
	StageExtraSecondHalf
	StagePenaltyShootoutBreak
	StagePenaltyShootout
	StagePostGame
)

var stageNames = [...]string{
	"NORMAL_FIRST_HALF_PRE",
	"NORMAL_FIRST_HALF",
	"NORMAL_HALF_TIME",
	"NORMAL_SECOND_HALF_PRE",
	"NORMAL_SECOND_HALF",
	"EXTRA_TIME_BREAK",
	"EXTRA_FIRST_HALF_PRE",
	"EXTRA_FIRST_HALF",
	"EXTRA_HALF_TIME",
	"EXTRA_SECOND_HALF_PRE",
	"EXTRA_SECOND_HALF",
	"PENALTY_SHOOTOUT_BREAK",
	"PENALTY_SHOOTOUT",
	"POST_GAME",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("STAGE_%d", int(s))
}

// Command is the referee command, numbered as in the SSL referee protocol.
type Command int

const (
	CommandHalt Command = iota
	CommandStop
	CommandNormalStart
	CommandForceStart
	CommandPrepareKickoffYellow
	CommandPrepareKickoffBlue
	CommandPreparePenaltyYellow
	CommandPreparePenaltyBlue
	CommandDirectFreeYellow
	CommandDirectFreeBlue
	CommandIndirectFreeYellow
	CommandIndirectFreeBlue
	CommandTimeoutYellow
	CommandTimeoutBlue
	CommandGoalYellow
	CommandGoalBlue
	CommandBallPlacementYellow
	CommandBallPlacementBlue
)

var commandNames = [...]string{
	"HALT",
	"STOP",
	"NORMAL_START",
	"FORCE_START",
	"PREPARE_KICKOFF_YELLOW",
	"PREPARE_KICKOFF_BLUE",
	"PREPARE_PENALTY_YELLOW",
	"PREPARE_PENALTY_BLUE",
	"DIRECT_FREE_YELLOW",
	"DIRECT_FREE_BLUE",
	"INDIRECT_FREE_YELLOW",
	"INDIRECT_FREE_BLUE",
	"TIMEOUT_YELLOW",
	"TIMEOUT_BLUE",
	"GOAL_YELLOW",
	"GOAL_BLUE",
	"BALL_PLACEMENT_YELLOW",
	"BALL_PLACEMENT_BLUE",
}

func (c Command) String() string {
	if c >= 0 && int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("COMMAND_%d", int(c))
}

// Team is the display record of one team.
type Team struct {
	Name                  string
	Score                 int
	RedCards              int
	YellowCards           int
	YellowCardTimes       []time.Duration
	Timeouts              int
	TimeoutTime           time.Duration
	Goalkeeper            int
	FoulCounter           int
	BallPlacementFailures int
	CanPlaceBall          bool
	MaxAllowedBots        int
}

// State is the display-ready referee state.
type State struct {
	Stage   Stage
	Command Command
	// Countdown is the stage time left; negative when the stage overran.
	Countdown time.Duration
	Yellow    Team
	Blue      Team
}

// Project converts a decoded referee message into display fields.
func Project(msg wire.RefereeMessage) State {
	return State{
		Stage:     Stage(msg.Stage),
		Command:   Command(msg.Command),
		Countdown: micros(msg.StageTimeLeft),
		Yellow:    team(msg.Yellow),
		Blue:      team(msg.Blue),
	}
}

func team(t wire.TeamInfo) Team {
	out := Team{
		Name:                  t.Name,
		Score:                 t.Score,
		RedCards:              t.RedCards,
		YellowCards:           t.YellowCards,
		Timeouts:              t.Timeouts,
		TimeoutTime:           micros(t.TimeoutTime),
		Goalkeeper:            t.Goalkeeper,
		FoulCounter:           t.FoulCounter,
		BallPlacementFailures: t.BallPlacementFailures,
		CanPlaceBall:          t.CanPlaceBall,
		MaxAllowedBots:        t.MaxAllowedBots,
	}
	for _, us := range t.YellowCardTimes {
		out.YellowCardTimes = append(out.YellowCardTimes, micros(us))
	}
	return out
}

func micros(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}

// FormatCountdown renders d as m:ss, with a leading minus when negative.
func FormatCountdown(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%s%d:%02d", sign, secs/60, secs%60)
}

// CountdownString is FormatCountdown of the stage countdown.
func (s State) CountdownString() string {
	return FormatCountdown(s.Countdown)
}

// Score renders "yellow N : M blue".
func (s State) Score() string {
	return fmt.Sprintf("%s %d : %d %s", orDefault(s.Yellow.Name, "Yellow"), s.Yellow.Score,
		s.Blue.Score, orDefault(s.Blue.Name, "Blue"))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
