package ir

// StorageKind partitions the runtime slab. Signals and render-globals are
// one value per slot; fields are one value per lane per slot; state slots
// hold last frame's value and are written only in the state-write phase.
type StorageKind int

const (
	StorageSignal StorageKind = iota
	StorageField
	StorageEvent
	StorageState
	StorageRenderGlobal
)

var storageNames = [...]string{"signal", "field", "event", "state", "renderGlobal"}

func (k StorageKind) String() string {
	if int(k) < 0 || int(k) >= len(storageNames) {
		return "storage?"
	}
	return storageNames[k]
}

// SlotID is a dense index into the program's slot table.
type SlotID int

// NoSlot marks an absent slot reference in steps that do not write one.
const NoSlot SlotID = -1

// SlotMeta describes one logical value's storage: where it starts in the
// slab, how many scalar lanes one value occupies, and which partition it
// lives in. For field slots the slab region is Stride × lane-count wide;
// lane count is resolved through the owning instance.
type SlotMeta struct {
	ID       SlotID      `json:"id"`
	Offset   int         `json:"offset"`
	Stride   int         `json:"stride"`
	Storage  StorageKind `json:"storage"`
	Instance InstanceID  `json:"instance"` // NoInstance for non-field slots
	Debug    string      `json:"debug"`    // "blockID.port", diagnostics only
}

// InstanceID is a dense index into the program's instance table.
type InstanceID int

// NoInstance marks slots that are not field slots.
const NoInstance InstanceID = -1

// InstanceDecl is one materialized lane group: its deterministic ref and
// its static lane count.
type InstanceDecl struct {
	ID    InstanceID  `json:"id"`
	Ref   InstanceRef `json:"ref"`
	Count int         `json:"count"`
}
