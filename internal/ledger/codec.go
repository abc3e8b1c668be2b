package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"uptimeledger/internal/models"
)

// ErrMalformed marks a stored document that cannot be used as a previous ledger.
var ErrMalformed = errors.New("malformed ledger document")

// Encode serialises a ledger as indented JSON.
func Encode(l models.Ledger) ([]byte, error) {
	if l.Services == nil {
		l.Services = map[string]models.ServiceStat{}
	}
	if l.Incidents == nil {
		l.Incidents = []models.Incident{}
	}
	if l.Checks == nil {
		l.Checks = []models.CheckRecord{}
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return data, nil
}

// Decode parses a stored document. Empty input returns nil without error. Invalid JSON
// or a document without a checks list returns an error wrapping ErrMalformed; callers
// treat both the same as an absent document.
func Decode(data []byte) (*models.Ledger, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var probe struct {
		Checks json.RawMessage `json:"checks"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(probe.Checks) == 0 || bytes.Equal(bytes.TrimSpace(probe.Checks), []byte("null")) {
		return nil, fmt.Errorf("%w: missing checks", ErrMalformed)
	}

	var l models.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if l.Checks == nil {
		l.Checks = []models.CheckRecord{}
	}
	return &l, nil
}
