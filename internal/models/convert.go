package models

import (
	"github.com/driftsync/driftsync/pkg/api"
)

// RecordFromAPI конвертирует wire-форму записи в доменную.
func RecordFromAPI(r *api.Record) *Record {
	if r == nil {
		return nil
	}
	rec := &Record{
		ID:        r.ID,
		Version:   r.Version,
		Fields:    CloneFields(r.Fields),
		Deleted:   r.Deleted,
		UpdatedAt: r.UpdatedAt,
	}
	if r.DeletedAt != nil {
		rec.DeletedAt = *r.DeletedAt
	}
	return rec
}

// RecordToAPI конвертирует доменную запись в wire-форму.
func RecordToAPI(r *Record) *api.Record {
	if r == nil {
		return nil
	}
	rec := &api.Record{
		ID:        r.ID,
		Version:   r.Version,
		Fields:    CloneFields(r.Fields),
		Deleted:   r.Deleted,
		UpdatedAt: r.UpdatedAt,
	}
	if !r.DeletedAt.IsZero() {
		at := r.DeletedAt
		rec.DeletedAt = &at
	}
	return rec
}

// ChangeFromAPI конвертирует wire-форму изменения change log в доменную.
func ChangeFromAPI(c api.Change) Change {
	return Change{
		Cursor:        c.Cursor,
		Resource:      c.Resource,
		ID:            c.ID,
		Kind:          ChangeKind(c.Kind),
		ServerVersion: c.ServerVersion,
		ChangedAt:     c.ChangedAt,
	}
}

// ChangeToAPI конвертирует доменное изменение в wire-форму.
func ChangeToAPI(c Change) api.Change {
	return api.Change{
		Cursor:        c.Cursor,
		Resource:      c.Resource,
		ID:            c.ID,
		Kind:          string(c.Kind),
		ServerVersion: c.ServerVersion,
		ChangedAt:     c.ChangedAt,
	}
}

// PatchFromAPI конвертирует wire-патч в доменный.
func PatchFromAPI(p api.Patch) Patch {
	return Patch{Op: PatchOp(p.Op), Path: p.Path, Value: p.Value}
}

// PatchesFromAPI конвертирует список wire-патчей.
func PatchesFromAPI(patches []api.Patch) []Patch {
	out := make([]Patch, len(patches))
	for i, p := range patches {
		out[i] = PatchFromAPI(p)
	}
	return out
}
