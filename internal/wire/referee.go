package wire

import "encoding/json"

// TeamInfo is one team's record as carried by a referee message.
type TeamInfo struct {
	Name                  string  `json:"name"`
	Score                 int     `json:"score"`
	RedCards              int     `json:"red_cards"`
	YellowCardTimes       []int64 `json:"yellow_card_times"`
	YellowCards           int     `json:"yellow_cards"`
	Timeouts              int     `json:"timeouts"`
	TimeoutTime           int64   `json:"timeout_time"`
	Goalkeeper            int     `json:"goalkeeper"`
	FoulCounter           int     `json:"foul_counter"`
	BallPlacementFailures int     `json:"ball_placement_failures"`
	CanPlaceBall          bool    `json:"can_place_ball"`
	MaxAllowedBots        int     `json:"max_allowed_bots"`
}

// RefereeMessage is a decoded referee/state message.
type RefereeMessage struct {
	Stage         int
	Command       int
	StageTimeLeft int64 // microseconds, negative when overdue
	Yellow        TeamInfo
	Blue          TeamInfo
}

type enumValue struct {
	Value *int `json:"value"`
}

type rawReferee struct {
	Stage         *enumValue `json:"stage"`
	Command       *enumValue `json:"command"`
	StageTimeLeft *int64     `json:"stage_time_left"`
	Yellow        *TeamInfo  `json:"yellow"`
	Blue          *TeamInfo  `json:"blue"`
}

// DecodeReferee decodes a referee message. ok is false when the payload is
// not an object or carries neither a stage nor a command.
func DecodeReferee(data []byte) (RefereeMessage, bool) {
	if firstByte(data) != '{' {
		return RefereeMessage{}, false
	}
	var raw rawReferee
	if err := json.Unmarshal(data, &raw); err != nil {
		return RefereeMessage{}, false
	}
	hasStage := raw.Stage != nil && raw.Stage.Value != nil
	hasCommand := raw.Command != nil && raw.Command.Value != nil
	if !hasStage && !hasCommand {
		return RefereeMessage{}, false
	}
	var msg RefereeMessage
	if hasStage {
		msg.Stage = *raw.Stage.Value
	}
	if hasCommand {
		msg.Command = *raw.Command.Value
	}
	if raw.StageTimeLeft != nil {
		msg.StageTimeLeft = *raw.StageTimeLeft
	}
	if raw.Yellow != nil {
		msg.Yellow = *raw.Yellow
	}
	if raw.Blue != nil {
		msg.Blue = *raw.Blue
	}
	return msg, true
}
