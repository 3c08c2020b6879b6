package write

import (
	"log/slog"

	"github.com/driftsync/driftsync/pkg/api"
)

// Observer получает lifecycle-события коммита. Вызывается координатором
// в фиксированных переходах state machine, а не в произвольных точках.
type Observer interface {
	// OnWriteStart вызывается перед применением оптимистичных дельт
	OnWriteStart(resource string, entries []api.WriteEntry)

	// OnWriteCommitted вызывается после успешного (в т.ч. частичного) коммита
	OnWriteCommitted(resource string, result *CommitResult)

	// OnWriteFailed вызывается при отказе всего батча (dispatch/протокол)
	OnWriteFailed(resource string, err error)
}

// NopObserver — observer по умолчанию, игнорирующий события.
type NopObserver struct{}

func (NopObserver) OnWriteStart(string, []api.WriteEntry)  {}
func (NopObserver) OnWriteCommitted(string, *CommitResult) {}
func (NopObserver) OnWriteFailed(string, error)            {}

// LogObserver логирует lifecycle-события через slog.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) OnWriteStart(resource string, entries []api.WriteEntry) {
	o.Logger.Debug("write batch started", "resource", resource, "entries", len(entries))
}

func (o LogObserver) OnWriteCommitted(resource string, result *CommitResult) {
	o.Logger.Info("write batch committed",
		"resource", resource,
		"status", result.Status,
		"results", len(result.Results))
}

func (o LogObserver) OnWriteFailed(resource string, err error) {
	o.Logger.Warn("write batch failed", "resource", resource, "error", err)
}
