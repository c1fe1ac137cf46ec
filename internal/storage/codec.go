package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManiFed/invariant-sub001/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// EncodeState stamps the current versions on state and encodes it.
func EncodeState(state model.EngineState) ([]byte, error) {
	state.VersionedRecord = model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
	return json.Marshal(state)
}

func DecodeState(data []byte) (model.EngineState, error) {
	var state model.EngineState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.EngineState{}, err
	}
	if err := checkVersion(state.VersionedRecord); err != nil {
		return model.EngineState{}, err
	}
	if err := checkPopulations(state); err != nil {
		return model.EngineState{}, err
	}
	if state.Populations == nil {
		state.Populations = map[model.Regime]model.Population{}
	}
	for _, r := range model.Regimes() {
		if _, ok := state.Populations[r]; !ok {
			state.Populations[r] = model.Population{Regime: r}
		}
	}
	return state, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func checkPopulations(state model.EngineState) error {
	for r, pop := range state.Populations {
		if !r.Valid() {
			return fmt.Errorf("%w: %q", model.ErrUnknownRegime, r)
		}
		if pop.Regime != r {
			return fmt.Errorf("population keyed %q holds regime %q", r, pop.Regime)
		}
	}
	return nil
}
