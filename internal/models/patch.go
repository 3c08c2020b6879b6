package models

// PatchOp операция патча: replace или remove.
type PatchOp string

const (
	PatchReplace PatchOp = "replace"
	PatchRemove  PatchOp = "remove"
)

// Patch — одна операция изменения поля по пути внутри Fields.
// Path ["a","b"] адресует fields["a"]["b"].
type Patch struct {
	Value any      `json:"value,omitempty"`
	Op    PatchOp  `json:"op"`
	Path  []string `json:"path"`
}

// ApplyPatches применяет список патчей к копии fields и возвращает результат.
// Исходная map не изменяется. Патчи с пустым путем игнорируются.
func ApplyPatches(fields map[string]any, patches []Patch) map[string]any {
	out := CloneFields(fields)
	if out == nil {
		out = make(map[string]any)
	}
	for _, p := range patches {
		if len(p.Path) == 0 {
			continue
		}
		applyPatch(out, p)
	}
	return out
}

func applyPatch(fields map[string]any, p Patch) {
	target := fields
	for _, key := range p.Path[:len(p.Path)-1] {
		next, ok := target[key].(map[string]any)
		if !ok {
			if p.Op == PatchRemove {
				// Нечего удалять по несуществующему пути
				return
			}
			next = make(map[string]any)
			target[key] = next
		}
		target = next
	}

	last := p.Path[len(p.Path)-1]
	switch p.Op {
	case PatchReplace:
		target[last] = p.Value
	case PatchRemove:
		delete(target, last)
	}
}
