package persistence

import (
	"fmt"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
	"github.com/goccy/go-json"
)

// nodeRecord is a stored node plus the run that produced or ingested it.
type nodeRecord struct {
	domain.Node
	RunID string `json:"run_id"`
}

func put(tx ports.Tx, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return tx.Set(key, raw)
}

func get(tx ports.Tx, key string, v any) error {
	raw, err := tx.Get(key)
	if err != nil {
		return err
	}
	if err := unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func unmarshal(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}
