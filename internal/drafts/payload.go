package drafts

import (
	"encoding/json"
	"fmt"

	"github.com/codr1/touchline/internal/games"
	"github.com/codr1/touchline/internal/squad"
)

const (
	KeyLineup    = "lineup"
	KeyReports   = "reports"
	KeySummaries = "summaries"
)

// Payload is the part of a draft the server understands. Other keys are
// kept verbatim for the client.
type Payload struct {
	Lineup    *squad.Snapshot               `json:"lineup,omitempty"`
	Reports   map[string]games.PlayerReport `json:"reports,omitempty"`
	Summaries map[string]string             `json:"summaries,omitempty"`
}

func DecodePayload(raw json.RawMessage) (Payload, error) {
	var p Payload
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("decode draft payload: %w", err)
	}
	return p, nil
}
