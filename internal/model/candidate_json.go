package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManiFed/invariant-sub001/internal/family"
)

type candidateJSON struct {
	ID           string          `json:"id"`
	Bins         []float64       `json:"bins"`
	FamilyID     family.ID       `json:"family_id"`
	FamilyParams json.RawMessage `json:"family_params"`
	Regime       Regime          `json:"regime"`
	Generation   int             `json:"generation"`
	ParentID     string          `json:"parent_id,omitempty"`
	Metrics      Metrics         `json:"metrics"`
	Features     Features        `json:"features"`
	Stability    float64         `json:"stability"`
	Score        float64         `json:"score"`
	Timestamp    time.Time       `json:"timestamp"`
}

func (c Candidate) MarshalJSON() ([]byte, error) {
	params, err := json.Marshal(c.Params)
	if err != nil {
		return nil, fmt.Errorf("encode params of %s: %w", c.ID, err)
	}
	return json.Marshal(candidateJSON{
		ID:           c.ID,
		Bins:         c.Bins,
		FamilyID:     c.Family,
		FamilyParams: params,
		Regime:       c.Regime,
		Generation:   c.Generation,
		ParentID:     c.ParentID,
		Metrics:      c.Metrics,
		Features:     c.Features,
		Stability:    c.Stability,
		Score:        c.Score,
		Timestamp:    c.Timestamp,
	})
}

func (c *Candidate) UnmarshalJSON(data []byte) error {
	var raw candidateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Regime.Valid() {
		return fmt.Errorf("candidate %s: %w: %q", raw.ID, ErrUnknownRegime, raw.Regime)
	}
	params, err := family.Decode(raw.FamilyID, raw.FamilyParams)
	if err != nil {
		return fmt.Errorf("candidate %s: %w", raw.ID, err)
	}
	*c = Candidate{
		ID:         raw.ID,
		Bins:       raw.Bins,
		Family:     raw.FamilyID,
		Params:     params,
		Regime:     raw.Regime,
		Generation: raw.Generation,
		ParentID:   raw.ParentID,
		Metrics:    raw.Metrics,
		Features:   raw.Features,
		Stability:  raw.Stability,
		Score:      raw.Score,
		Timestamp:  raw.Timestamp,
	}
	return nil
}
