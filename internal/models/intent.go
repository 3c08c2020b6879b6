package models

import "fmt"

// Action тип действия записи. Закрытый набор: create, update, upsert, delete.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

// Valid проверяет, что action принадлежит закрытому набору.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionUpsert, ActionDelete:
		return true
	}
	return false
}

// ApplyMode управляет поведением upsert при существующей базовой записи.
type ApplyMode string

const (
	// ApplyMerge — поля сливаются с базовой записью (default)
	ApplyMerge ApplyMode = "merge"
	// ApplyReplace — значение полностью заменяет базовую запись
	ApplyReplace ApplyMode = "replace"
)

// ConflictMode управляет прикреплением expectedVersion к upsert.
type ConflictMode string

const (
	// ConflictCAS — expectedVersion прикрепляется, сервер отклоняет при расхождении (default)
	ConflictCAS ConflictMode = "cas"
	// ConflictLoose — expectedVersion не прикрепляется, last-write-wins с bump версии
	ConflictLoose ConflictMode = "loose"
)

// Intent — закрытый набор намерений записи. Каждый вариант — отдельный тип,
// компилятор intent'ов делает исчерпывающий type switch по вариантам.
type Intent interface {
	Action() Action
}

// CreateIntent — намерение создать новую запись.
// Если ID пуст, компилятор синтезирует его.
type CreateIntent struct {
	Value map[string]any
	ID    string
}

func (CreateIntent) Action() Action { return ActionCreate }

// Updater мутирует копию базовой записи. Изменение ID запрещено.
type Updater func(rec *Record)

// UpdateIntent — намерение изменить существующую запись.
// BaseVersion == 0 означает "разрешить из кэша/сервера".
type UpdateIntent struct {
	Update      Updater
	ID          string
	BaseVersion int64
}

func (UpdateIntent) Action() Action { return ActionUpdate }

// UpsertIntent — намерение создать-или-обновить запись с фиксированным ID.
type UpsertIntent struct {
	Value    map[string]any
	ID       string
	Apply    ApplyMode
	Conflict ConflictMode
}

func (UpsertIntent) Action() Action { return ActionUpsert }

// DeleteIntent — намерение удалить запись.
// Force == false компилируется в soft delete (deleted=true, deleted_at=now),
// Force == true — в hard delete на проводе.
type DeleteIntent struct {
	ID    string
	Force bool
}

func (DeleteIntent) Action() Action { return ActionDelete }

// DescribeIntent возвращает короткое описание intent'а для логов.
func DescribeIntent(intent Intent) string {
	switch it := intent.(type) {
	case CreateIntent:
		return fmt.Sprintf("create(id=%q)", it.ID)
	case UpdateIntent:
		return fmt.Sprintf("update(id=%q, base=%d)", it.ID, it.BaseVersion)
	case UpsertIntent:
		return fmt.Sprintf("upsert(id=%q, apply=%s, conflict=%s)", it.ID, it.Apply, it.Conflict)
	case DeleteIntent:
		return fmt.Sprintf("delete(id=%q, force=%t)", it.ID, it.Force)
	default:
		return fmt.Sprintf("unknown(%T)", intent)
	}
}
