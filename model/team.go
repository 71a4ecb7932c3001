package model

import (
	"fmt"
	"strings"
)

// Team identifies one of the two sides of a siege. The zero value NoTeam is
// used for draws and for "no winner yet".
type Team int

const (
	NoTeam Team = iota
	TeamBlue
	TeamRed
)

// Teams lists the playable teams in broadcast order.
var Teams = [...]Team{TeamBlue, TeamRed}

// Opponent returns the opposing team, or NoTeam for NoTeam.
func (t Team) Opponent() Team {
	switch t {
	case TeamBlue:
		return TeamRed
	case TeamRed:
		return TeamBlue
	default:
		return NoTeam
	}
}

// Valid reports whether t is one of the two playable teams.
func (t Team) Valid() bool {
	return t == TeamBlue || t == TeamRed
}

func (t Team) String() string {
	switch t {
	case TeamBlue:
		return "Blue"
	case TeamRed:
		return "Red"
	default:
		return "None"
	}
}

// ParseTeam accepts "red" or "blue" in any case.
func ParseTeam(s string) (Team, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blue":
		return TeamBlue, nil
	case "red":
		return TeamRed, nil
	default:
		return NoTeam, fmt.Errorf("unknown team %q", s)
	}
}
