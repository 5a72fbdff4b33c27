// Package timeline defines the inputs of playout reconciliation: resolved
// timeline snapshots and the layer→device mapping table.
//
// A Snapshot is the set of active object instances per output layer at one
// instant. It is produced by an external resolution engine and is treated
// as immutable once handed to a device controller. Layer order is kept as
// received because projection is last-write-wins in layer order.
//
// The Mapping table says which device property each layer drives. It is
// loaded from YAML and may be hot-reloaded through a Watcher; readers take
// a consistent snapshot via MappingStore.Current for each reconciliation.
//
// Wire format (MQTT and HTTP ingress):
//
//	{
//	  "time": 1700000000000,
//	  "layers": {
//	    "cam1_preset": {"id": "obj-1", "content": {"preset": 3}},
//	    "gfx_lower":   {"id": "obj-2", "content": {"type": "composition", ...}}
//	  }
//	}
//
// Mapping file:
//
//	layers:
//	  cam1_preset:
//	    device_id: cam1
//	    kind: panasonic_ptz
//	    subtype: preset
//	  gfx_lower:
//	    device_id: gfx
//	    kind: singular_live
//	    composition_name: "Lower Third"
package timeline
