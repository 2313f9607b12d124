package entity

import (
	"context"

	"github.com/netops-labs/enms-in-go/pkg/model"
)

// DeleteDeviceLinks removes the links attached to a device before the
// device itself goes away.
func DeleteDeviceLinks(ctx context.Context, backend Backend, obj model.Object) error {
	id := obj.GetBase().ID
	for _, column := range []string{"source_id", "destination_id"} {
		links, err := backend.Where(ctx, "link", map[string]interface{}{column: id})
		if err != nil {
			return err
		}
		for _, link := range links {
			if err := backend.Delete(ctx, link); err != nil {
				return err
			}
		}
	}
	return nil
}

// DefaultHooks registers the delete hooks of the built-in types.
func DefaultHooks() []Option {
	return []Option{
		WithDeleteHook("device", DeleteDeviceLinks),
	}
}
