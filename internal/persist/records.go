// Package persist saves and restores arena configuration: both towers, both
// robot spawns, the powerup spawn and the game settings. Each part is stored
// as a protobuf Struct record under a fixed name, so a FileStore directory
// holds "Red tower.sc", "Blue spawn.sc" and so on.
package persist

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/model"
)

// Record names.
const (
	RecordPowerupSpawn = "Powerup spawn.sc"
	RecordSettings     = "Game settings.sc"
)

// TowerRecord returns the record name for a team's tower.
func TowerRecord(team model.Team) string { return team.String() + " tower.sc" }

// SpawnRecord returns the record name for a team's robot spawn.
func SpawnRecord(team model.Team) string { return team.String() + " spawn.sc" }

// RecordNames lists every record a complete configuration has.
func RecordNames() []string {
	names := make([]string, 0, 2*len(model.Teams)+2)
	for _, team := range []model.Team{model.TeamRed, model.TeamBlue} {
		names = append(names, TowerRecord(team))
	}
	for _, team := range []model.Team{model.TeamRed, model.TeamBlue} {
		names = append(names, SpawnRecord(team))
	}
	return append(names, RecordPowerupSpawn, RecordSettings)
}

// Tower record fields.
const (
	fieldPosition             = "position"
	fieldMaxHealth            = "maxHealth"
	fieldDamage               = "damage"
	fieldRadius               = "radius"
	fieldRobotBaseDamage      = "robotBaseDamage"
	fieldRobotLevelMultiplier = "robotLevelMultiplier"
	fieldRobotHealth          = "robotHealth"

	fieldWorld = "world"
	fieldX     = "x"
	fieldY     = "y"
	fieldZ     = "z"
)

// EncodeLocation converts a location into a record.
func EncodeLocation(l model.Location) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldWorld: structpb.NewStringValue(l.World),
		fieldX:     structpb.NewNumberValue(l.X),
		fieldY:     structpb.NewNumberValue(l.Y),
		fieldZ:     structpb.NewNumberValue(l.Z),
	}}
}

// DecodeLocation parses a location record. The world name is required.
func DecodeLocation(s *structpb.Struct) (model.Location, error) {
	if s == nil {
		return model.Location{}, fmt.Errorf("%w: empty location", core.ErrConfigurationCorrupt)
	}
	world, err := stringField(s, fieldWorld)
	if err != nil {
		return model.Location{}, err
	}
	if world == "" {
		return model.Location{}, fmt.Errorf("%w: location has no world", core.ErrConfigurationCorrupt)
	}
	var l model.Location
	l.World = world
	for name, dst := range map[string]*float64{fieldX: &l.X, fieldY: &l.Y, fieldZ: &l.Z} {
		if *dst, err = numberField(s, name); err != nil {
			return model.Location{}, err
		}
	}
	return l, nil
}

// EncodeTower converts a tower configuration into a record.
func EncodeTower(cfg core.TowerConfig) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldPosition:             structpb.NewStructValue(EncodeLocation(cfg.Position)),
		fieldMaxHealth:            structpb.NewNumberValue(float64(cfg.MaxHealth)),
		fieldDamage:               structpb.NewNumberValue(float64(cfg.Damage)),
		fieldRadius:               structpb.NewNumberValue(cfg.Radius),
		fieldRobotBaseDamage:      structpb.NewNumberValue(float64(cfg.RobotBaseDamage)),
		fieldRobotLevelMultiplier: structpb.NewNumberValue(cfg.RobotLevelMultiplier),
		fieldRobotHealth:          structpb.NewNumberValue(float64(cfg.RobotBaseHealth)),
	}}
}

// DecodeTower parses a tower record and validates the result.
func DecodeTower(s *structpb.Struct) (core.TowerConfig, error) {
	if s == nil {
		return core.TowerConfig{}, fmt.Errorf("%w: empty tower", core.ErrConfigurationCorrupt)
	}
	pos, ok := s.GetFields()[fieldPosition]
	if !ok || pos.GetStructValue() == nil {
		return core.TowerConfig{}, fmt.Errorf("%w: tower has no position", core.ErrConfigurationCorrupt)
	}

	var (
		cfg core.TowerConfig
		err error
	)
	if cfg.Position, err = DecodeLocation(pos.GetStructValue()); err != nil {
		return core.TowerConfig{}, err
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{fieldMaxHealth, &cfg.MaxHealth},
		{fieldDamage, &cfg.Damage},
		{fieldRobotBaseDamage, &cfg.RobotBaseDamage},
		{fieldRobotHealth, &cfg.RobotBaseHealth},
	}
	for _, f := range ints {
		if *f.dst, err = intField(s, f.name); err != nil {
			return core.TowerConfig{}, err
		}
	}
	if cfg.Radius, err = numberField(s, fieldRadius); err != nil {
		return core.TowerConfig{}, err
	}
	if cfg.RobotLevelMultiplier, err = numberField(s, fieldRobotLevelMultiplier); err != nil {
		return core.TowerConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return core.TowerConfig{}, fmt.Errorf("%w: %w", core.ErrConfigurationCorrupt, err)
	}
	return cfg, nil
}

// EncodeSettings converts settings into a record.
func EncodeSettings(s model.Settings) *structpb.Struct {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(s))}
	for k, v := range s {
		out.Fields[k] = structpb.NewNumberValue(float64(v))
	}
	return out
}

// DecodeSettings parses a settings record. Unrecognized keys are skipped;
// recognized keys must hold positive integers.
func DecodeSettings(s *structpb.Struct) (model.Settings, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: empty settings", core.ErrConfigurationCorrupt)
	}
	out := make(model.Settings)
	for _, key := range model.SettingKeys() {
		if _, ok := s.GetFields()[key]; !ok {
			continue
		}
		v, err := intField(s, key)
		if err != nil {
			return nil, err
		}
		if err := out.Set(key, v); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrConfigurationCorrupt, err)
		}
	}
	return out, nil
}

func stringField(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", core.ErrConfigurationCorrupt, name)
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", core.ErrConfigurationCorrupt, name)
	}
	return str.StringValue, nil
}

func numberField(s *structpb.Struct, name string) (float64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", core.ErrConfigurationCorrupt, name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a number", core.ErrConfigurationCorrupt, name)
	}
	if math.IsNaN(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
		return 0, fmt.Errorf("%w: %s is not finite", core.ErrConfigurationCorrupt, name)
	}
	return n.NumberValue, nil
}

func intField(s *structpb.Struct, name string) (int, error) {
	f, err := numberField(s, name)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%w: %s is not an integer", core.ErrConfigurationCorrupt, name)
	}
	return int(f), nil
}
