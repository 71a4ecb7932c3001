package persist

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/model"
)

// Encode converts a complete configuration into named records.
func Encode(cfg game.Config) (map[string]*structpb.Struct, error) {
	recs := make(map[string]*structpb.Struct, len(RecordNames()))
	for _, team := range model.Teams {
		tc, ok := cfg.Towers[team]
		if !ok {
			return nil, fmt.Errorf("%w: %s tower not set", core.ErrMissingConfiguration, team)
		}
		recs[TowerRecord(team)] = EncodeTower(tc)

		spawn, ok := cfg.Spawns[team]
		if !ok {
			return nil, fmt.Errorf("%w: %s spawn not set", core.ErrMissingConfiguration, team)
		}
		recs[SpawnRecord(team)] = EncodeLocation(spawn)
	}
	if cfg.PowerupSpawn == nil {
		return nil, fmt.Errorf("%w: powerup spawn not set", core.ErrMissingConfiguration)
	}
	recs[RecordPowerupSpawn] = EncodeLocation(*cfg.PowerupSpawn)

	settings := cfg.Settings
	if settings == nil {
		settings = model.DefaultSettings()
	}
	recs[RecordSettings] = EncodeSettings(settings)
	return recs, nil
}

// Save writes a complete configuration. Stores that support batches write
// every record atomically.
func Save(ctx context.Context, st Store, cfg game.Config) error {
	recs, err := Encode(cfg)
	if err != nil {
		return err
	}
	if b, ok := st.(BatchStore); ok {
		return b.PutAll(ctx, recs)
	}
	for _, name := range RecordNames() {
		if err := st.Put(ctx, name, recs[name]); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a complete configuration. It returns ErrMissingConfiguration
// when nothing has been saved and ErrConfigurationCorrupt when any record is
// missing or unreadable.
func Load(ctx context.Context, st Store) (game.Config, error) {
	recs := make(map[string]*structpb.Struct)
	var missing []string
	for _, name := range RecordNames() {
		rec, err := st.Get(ctx, name)
		switch {
		case errors.Is(err, ErrNotFound):
			missing = append(missing, name)
		case err != nil:
			if ctx.Err() != nil {
				return game.Config{}, err
			}
			return game.Config{}, fmt.Errorf("%w: %w", core.ErrConfigurationCorrupt, err)
		default:
			recs[name] = rec
		}
	}
	if len(missing) == len(RecordNames()) {
		return game.Config{}, fmt.Errorf("%w: nothing saved", core.ErrMissingConfiguration)
	}
	if len(missing) > 0 {
		return game.Config{}, fmt.Errorf("%w: missing records %q", core.ErrConfigurationCorrupt, missing)
	}
	return Decode(recs)
}

// Decode converts named records into a configuration.
func Decode(recs map[string]*structpb.Struct) (game.Config, error) {
	cfg := game.Config{
		Towers: make(map[model.Team]core.TowerConfig, len(model.Teams)),
		Spawns: make(map[model.Team]model.Location, len(model.Teams)),
	}
	for _, team := range model.Teams {
		tc, err := DecodeTower(recs[TowerRecord(team)])
		if err != nil {
			return game.Config{}, fmt.Errorf("%s: %w", TowerRecord(team), err)
		}
		cfg.Towers[team] = tc

		spawn, err := DecodeLocation(recs[SpawnRecord(team)])
		if err != nil {
			return game.Config{}, fmt.Errorf("%s: %w", SpawnRecord(team), err)
		}
		cfg.Spawns[team] = spawn
	}
	pp, err := DecodeLocation(recs[RecordPowerupSpawn])
	if err != nil {
		return game.Config{}, fmt.Errorf("%s: %w", RecordPowerupSpawn, err)
	}
	cfg.PowerupSpawn = &pp

	if cfg.Settings, err = DecodeSettings(recs[RecordSettings]); err != nil {
		return game.Config{}, fmt.Errorf("%s: %w", RecordSettings, err)
	}
	return cfg, nil
}

// Restore loads the stored configuration into g. On any failure g keeps its
// current configuration and the problem is logged as a warning.
func Restore(ctx context.Context, st Store, g *game.Game, log logging.Logger) error {
	if log == nil {
		log = logging.Noop()
	}
	cfg, err := Load(ctx, st)
	if err == nil {
		err = g.ApplyConfig(cfg)
	}
	switch {
	case err == nil:
		log.Info(ctx, "restored arena configuration")
		return nil
	case errors.Is(err, core.ErrMissingConfiguration):
		log.Info(ctx, "no saved arena configuration")
	default:
		log.Warn(ctx, "saved arena configuration is corrupted, using defaults", logging.Err(err))
	}
	return err
}
