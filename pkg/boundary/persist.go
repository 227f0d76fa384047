package boundary

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sealpost/core/pkg/contracts"
	"github.com/sealpost/core/pkg/store"
)

const (
	kvNamespace = "boundary"
	kvKey       = "declaration"
)

// Persist writes the declared fields to the key-value store. Editing state
// on the model itself never persists.
func (m *Model) Persist(ctx context.Context, kv store.KV) error {
	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal boundary declaration: %w", err)
	}
	return kv.Set(ctx, kvNamespace, kvKey, data)
}

// LoadFrom restores a persisted declaration. It returns false when no
// declaration has been persisted yet; the model keeps its restrictive
// default in that case.
func (m *Model) LoadFrom(ctx context.Context, kv store.KV) (bool, error) {
	data, ok, err := kv.Get(ctx, kvNamespace, kvKey)
	if err != nil || !ok {
		return false, err
	}
	var decl contracts.BoundaryDeclaration
	if err := json.Unmarshal(data, &decl); err != nil {
		return false, fmt.Errorf("unmarshal boundary declaration: %w", err)
	}
	if !decl.Egress.Preset.Valid() || !decl.Ingress.Preset.Valid() {
		return false, fmt.Errorf("persisted boundary carries invalid preset")
	}
	m.Restore(decl)
	return true, nil
}
