package core

import (
	"fmt"

	"github.com/signalsfoundry/siege-simulator/model"
)

// Roster tracks which players belong to which team, in join order.
// It implements PlayerSource.
type Roster struct {
	teams   map[string]model.Team
	players map[string]Player
	order   []string
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{
		teams:   make(map[string]model.Team),
		players: make(map[string]Player),
	}
}

// Join places a player on a team. A player can be on only one team.
func (r *Roster) Join(team model.Team, p Player) error {
	if !team.Valid() {
		return fmt.Errorf("%w: unknown team %v", ErrInvalidArgument, team)
	}
	if p == nil {
		return fmt.Errorf("%w: nil player", ErrInvalidArgument)
	}
	if current, ok := r.teams[p.ID()]; ok {
		return fmt.Errorf("%w: player %s already in team %s", ErrInvalidState, p.Name(), current)
	}
	r.teams[p.ID()] = team
	r.players[p.ID()] = p
	r.order = append(r.order, p.ID())
	return nil
}

// Leave removes a player from their team.
func (r *Roster) Leave(p Player) error {
	if p == nil {
		return fmt.Errorf("%w: nil player", ErrInvalidArgument)
	}
	if _, ok := r.teams[p.ID()]; !ok {
		return fmt.Errorf("%w: player %s is not in a team", ErrInvalidState, p.Name())
	}
	delete(r.teams, p.ID())
	delete(r.players, p.ID())
	for i, id := range r.order {
		if id == p.ID() {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// TeamOf returns the team of the player with the given ID.
func (r *Roster) TeamOf(playerID string) (model.Team, bool) {
	t, ok := r.teams[playerID]
	return t, ok
}

// Players returns a team's members in join order.
func (r *Roster) Players(team model.Team) []Player {
	var out []Player
	for _, id := range r.order {
		if r.teams[id] == team {
			out = append(out, r.players[id])
		}
	}
	return out
}

// Len returns the total number of rostered players.
func (r *Roster) Len() int { return len(r.order) }

// Clear empties both teams.
func (r *Roster) Clear() {
	r.teams = make(map[string]model.Team)
	r.players = make(map[string]Player)
	r.order = nil
}
