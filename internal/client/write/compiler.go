package write

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftsync/driftsync/internal/client/cache"
	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/internal/validation"
	"github.com/driftsync/driftsync/internal/version"
	"github.com/driftsync/driftsync/pkg/api"
)

//go:generate moq -out fetcher_mock.go . Fetcher

// Fetcher выполняет единичный точечный запрос записи по id у сервера.
// Используется компилятором для base resolution, когда политика разрешает
// read-repair. Возвращает (nil, nil), если запись не найдена.
type Fetcher interface {
	FetchRecord(ctx context.Context, resource, id string) (*models.Record, error)
}

// Consistency политика применения записи к кэшу.
type Consistency string

const (
	// ConsistencyOptimistic — дельта применяется к кэшу до подтверждения сервером
	ConsistencyOptimistic Consistency = "optimistic"
	// ConsistencyPessimistic — кэш мутируется только после подтверждения
	ConsistencyPessimistic Consistency = "pessimistic"
)

// BasePolicy политика разрешения базового значения.
type BasePolicy string

const (
	// BaseCache — только кэш; отсутствие базы — ошибка
	BaseCache BasePolicy = "cache"
	// BaseFetch — при отсутствии в кэше разрешен ровно один remote fetch по id
	BaseFetch BasePolicy = "fetch"
)

// Policy политика исполнения write pipeline.
type Policy struct {
	Consistency Consistency
	Base        BasePolicy
}

// DefaultPolicy — оптимистичная запись, база только из кэша.
func DefaultPolicy() Policy {
	return Policy{Consistency: ConsistencyOptimistic, Base: BaseCache}
}

// Transform каллер-поставляемая трансформация значения перед отправкой.
// Возврат nil-значения без ошибки трактуется как ошибка валидации.
type Transform func(ctx context.Context, fields map[string]any) (map[string]any, error)

// Options опции компиляции одного intent'а.
type Options struct {
	Returning  *bool
	Transforms []Transform
	Fields     []string
	Policy     Policy
}

// PreparedWrite — единица работы Commit Coordinator'а:
// wire entry плюс оптимистичная дельта.
type PreparedWrite struct {
	Resource   string
	Entry      api.WriteEntry
	Optimistic []models.StoreChange
}

// Compiler превращает intent в ровно один WriteEntry и одну оптимистичную
// дельту, разрешая базовое значение и метаданные версии/идемпотентности.
type Compiler struct {
	cache   *cache.Store
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time
}

// NewCompiler создает компилятор intent'ов.
// fetcher может быть nil — тогда политика BaseFetch недоступна.
func NewCompiler(store *cache.Store, fetcher Fetcher, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		cache:   store,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// SetNow переопределяет источник времени. Используется в тестах.
func (c *Compiler) SetNow(now func() time.Time) {
	c.now = now
}

// Compile компилирует intent в PreparedWrite.
// Единственные точки приостановки — трансформации значения и (при политике
// BaseFetch) единичный точечный запрос базы.
func (c *Compiler) Compile(ctx context.Context, resource string, intent models.Intent, opts Options) (*PreparedWrite, error) {
	if err := validation.ValidateResource(resource); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	switch it := intent.(type) {
	case models.CreateIntent:
		return c.compileCreate(ctx, resource, it, opts)
	case models.UpdateIntent:
		return c.compileUpdate(ctx, resource, it, opts)
	case models.UpsertIntent:
		return c.compileUpsert(ctx, resource, it, opts)
	case models.DeleteIntent:
		return c.compileDelete(ctx, resource, it, opts)
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown intent type %T", intent)}
	}
}

func (c *Compiler) compileCreate(ctx context.Context, resource string, intent models.CreateIntent, opts Options) (*PreparedWrite, error) {
	id := intent.ID
	if id == "" {
		id = version.NewEntityID()
	}
	if err := validation.ValidateEntityID(id); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	fields, err := c.runTransforms(ctx, models.CloneFields(intent.Value), opts.Transforms)
	if err != nil {
		return nil, err
	}

	// Оптимистичная сторона получает version 1; сервер подтверждает
	after := &models.Record{
		ID:        id,
		Version:   1,
		Fields:    fields,
		UpdatedAt: c.now(),
	}
	before, _ := c.cache.Get(resource, id)

	entry := c.newEntry(models.ActionCreate, id, opts)
	entry.Item.Value = fields

	return &PreparedWrite{
		Resource: resource,
		Entry:    entry,
		Optimistic: []models.StoreChange{
			{Resource: resource, ID: id, Before: before, After: after},
		},
	}, nil
}

func (c *Compiler) compileUpdate(ctx context.Context, resource string, intent models.UpdateIntent, opts Options) (*PreparedWrite, error) {
	if intent.Update == nil {
		return nil, &ValidationError{Reason: "update intent requires an updater"}
	}

	base, err := c.resolveBase(ctx, resource, intent.ID, opts.Policy)
	if err != nil {
		return nil, err
	}

	baseVersion, err := version.Resolve(intent.BaseVersion, base)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", resource, intent.ID, ErrMissingVersion)
	}

	after := base.Clone()
	intent.Update(after)
	if after.ID != base.ID {
		return nil, fmt.Errorf("update %s/%s -> %s: %w", resource, base.ID, after.ID, ErrIdentityMismatch)
	}

	after.Fields, err = c.runTransforms(ctx, after.Fields, opts.Transforms)
	if err != nil {
		return nil, err
	}
	// Версия остается неподтвержденной до writeback сервера
	after.Version = base.Version
	after.UpdatedAt = c.now()

	entry := c.newEntry(models.ActionUpdate, intent.ID, opts)
	entry.Item.Value = after.Fields
	entry.Item.BaseVersion = &baseVersion

	return &PreparedWrite{
		Resource: resource,
		Entry:    entry,
		Optimistic: []models.StoreChange{
			{Resource: resource, ID: intent.ID, Before: base, After: after},
		},
	}, nil
}

func (c *Compiler) compileUpsert(ctx context.Context, resource string, intent models.UpsertIntent, opts Options) (*PreparedWrite, error) {
	if intent.ID == "" {
		return nil, &ValidationError{Reason: "upsert intent requires an id"}
	}
	if err := validation.ValidateEntityID(intent.ID); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	applyMode := intent.Apply
	if applyMode == "" {
		applyMode = models.ApplyMerge
	}
	conflictMode := intent.Conflict
	if conflictMode == "" {
		conflictMode = models.ConflictCAS
	}

	// База берется из кэша без remote fetch: отсутствие базы для upsert
	// не ошибка, а ветка create-with-forced-id
	base, _ := c.cache.Get(resource, intent.ID)

	var fields map[string]any
	if base != nil && applyMode == models.ApplyMerge {
		fields = models.CloneFields(base.Fields)
		for k, v := range intent.Value {
			fields[k] = v
		}
	} else {
		fields = models.CloneFields(intent.Value)
	}

	fields, err := c.runTransforms(ctx, fields, opts.Transforms)
	if err != nil {
		return nil, err
	}

	after := &models.Record{
		ID:        intent.ID,
		Version:   1,
		Fields:    fields,
		UpdatedAt: c.now(),
	}
	if base != nil {
		after.Version = base.Version
	}

	entry := c.newEntry(models.ActionUpsert, intent.ID, opts)
	entry.Item.Value = fields

	merge := applyMode == models.ApplyMerge
	if entry.Options == nil {
		entry.Options = &api.WriteEntryOptions{}
	}
	entry.Options.Merge = &merge

	switch conflictMode {
	case models.ConflictCAS:
		entry.Options.UpsertMode = api.UpsertStrict
		if base != nil {
			expected := base.Version
			entry.Item.ExpectedVersion = &expected
		}
	case models.ConflictLoose:
		entry.Options.UpsertMode = api.UpsertLoose
	}

	return &PreparedWrite{
		Resource: resource,
		Entry:    entry,
		Optimistic: []models.StoreChange{
			{Resource: resource, ID: intent.ID, Before: base, After: after},
		},
	}, nil
}

func (c *Compiler) compileDelete(ctx context.Context, resource string, intent models.DeleteIntent, opts Options) (*PreparedWrite, error) {
	base, err := c.resolveBase(ctx, resource, intent.ID, opts.Policy)
	if err != nil {
		return nil, err
	}

	baseVersion, err := version.Resolve(0, base)
	if err != nil {
		return nil, fmt.Errorf("delete %s/%s: %w", resource, intent.ID, ErrMissingVersion)
	}

	if intent.Force {
		// Hard delete: запись исчезает и из кэша, и со стороны сервера
		entry := c.newEntry(models.ActionDelete, intent.ID, opts)
		entry.Item.BaseVersion = &baseVersion

		return &PreparedWrite{
			Resource: resource,
			Entry:    entry,
			Optimistic: []models.StoreChange{
				{Resource: resource, ID: intent.ID, Before: base, After: nil},
			},
		}, nil
	}

	// Soft delete: update с deleted=true, сохраняющий строку для аудита
	after := base.Clone()
	after.Deleted = true
	after.DeletedAt = c.now()
	after.UpdatedAt = c.now()

	entry := c.newEntry(models.ActionUpdate, intent.ID, opts)
	entry.Item.Value = after.Fields
	entry.Item.BaseVersion = &baseVersion
	deleted := true
	entry.Item.Deleted = &deleted

	return &PreparedWrite{
		Resource: resource,
		Entry:    entry,
		Optimistic: []models.StoreChange{
			{Resource: resource, ID: intent.ID, Before: base, After: after},
		},
	}, nil
}

// resolveBase возвращает базовое значение: кэш, затем (только при политике
// BaseFetch) ровно один точечный remote-запрос по id.
func (c *Compiler) resolveBase(ctx context.Context, resource, id string, policy Policy) (*models.Record, error) {
	if err := validation.ValidateEntityID(id); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	if base, ok := c.cache.Get(resource, id); ok {
		return base, nil
	}

	if policy.Base != BaseFetch || c.fetcher == nil {
		return nil, fmt.Errorf("%s/%s: %w", resource, id, ErrMissingBase)
	}

	fetched, err := c.fetcher.FetchRecord(ctx, resource, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch base %s/%s: %w", resource, id, err)
	}
	if fetched == nil {
		return nil, fmt.Errorf("%s/%s: %w", resource, id, ErrMissingBase)
	}

	c.logger.Debug("base resolved via remote fetch", "resource", resource, "id", id, "version", fetched.Version)
	return fetched, nil
}

func (c *Compiler) runTransforms(ctx context.Context, fields map[string]any, transforms []Transform) (map[string]any, error) {
	for _, transform := range transforms {
		out, err := transform(ctx, fields)
		if err != nil {
			return nil, fmt.Errorf("transform failed: %w", err)
		}
		if out == nil {
			return nil, &ValidationError{Reason: "transform yielded no value"}
		}
		fields = out
	}
	return fields, nil
}

// newEntry создает wire entry со свежим idempotency key и клиентским временем.
func (c *Compiler) newEntry(action models.Action, id string, opts Options) api.WriteEntry {
	entry := api.WriteEntry{
		EntryID: version.NewEntryID(),
		Action:  string(action),
		Item: api.WriteItem{
			ID: id,
			Meta: api.WriteMeta{
				IdempotencyKey: version.NewIdempotencyKey(),
				ClientTimeMs:   c.now().UnixMilli(),
			},
		},
	}
	if opts.Returning != nil || len(opts.Fields) > 0 {
		entry.Options = &api.WriteEntryOptions{
			Returning: opts.Returning,
			Fields:    opts.Fields,
		}
	}
	return entry
}
