package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/cache"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/bunx"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/telemetry"
)

const tracerName = "billiards/repository"

// TenantScoped is implemented by every model stored through TenantRepository.
// Models use the columns id and tenant_id.
type TenantScoped interface {
	GetID() string
	SetID(id string)
	GetTenantID() string
	SetTenantID(tenantID string)
	Touch(now time.Time)
}

// Scope is the tenant filter applied to a repository call. The zero value is
// invalid so that a forgotten scope fails instead of reading every tenant.
type Scope struct {
	tenantID string
	all      bool
}

// ForTenant scopes a call to one tenant.
func ForTenant(tenantID string) Scope {
	return Scope{tenantID: tenantID}
}

// AllTenants is the unscoped mode, reserved for elevated callers.
func AllTenants() Scope {
	return Scope{all: true}
}

// TenantID returns the scoped tenant, or "" when unscoped.
func (s Scope) TenantID() string { return s.tenantID }

// Unscoped reports whether the call spans all tenants.
func (s Scope) Unscoped() bool { return s.all }

func (s Scope) valid() bool { return s.all || s.tenantID != "" }

// immutableColumns cannot be changed through Update.
var immutableColumns = map[string]struct{}{
	"id":         {},
	"tenant_id":  {},
	"created_at": {},
	"updated_at": {},
}

// TenantRepository is the generic CRUD surface over a tenant-scoped collection.
// Reads go through the request cache; successful writes invalidate every
// cached key of the collection before returning.
type TenantRepository[T any, PT interface {
	*T
	TenantScoped
}] struct {
	db         *bun.DB
	cache      *cache.Cache
	collection string
	table      *schema.Table
	ttl        time.Duration
	log        *logrus.Logger
	now        func() time.Time
}

// NewTenantRepository creates a repository for model T stored in collection.
// cache may be nil to disable caching.
func NewTenantRepository[T any, PT interface {
	*T
	TenantScoped
}](db *bun.DB, c *cache.Cache, collection string, ttl time.Duration, log *logrus.Logger) *TenantRepository[T, PT] {
	if log == nil {
		log = logrus.New()
	}
	return &TenantRepository[T, PT]{
		db:         db,
		cache:      c,
		collection: collection,
		table:      db.Table(reflect.TypeOf((*T)(nil)).Elem()),
		ttl:        ttl,
		log:        log,
		now:        time.Now,
	}
}

// Collection returns the collection name used for cache keys.
func (r *TenantRepository[T, PT]) Collection() string {
	return r.collection
}

// GetAll lists records visible in scope.
func (r *TenantRepository[T, PT]) GetAll(ctx context.Context, scope Scope, opts QueryOptions) ([]T, error) {
	const op = "get_all"
	if err := r.checkScope(op, scope); err != nil {
		return nil, err
	}
	if err := opts.validate(r.table); err != nil {
		return nil, newError(KindValidation, r.collection, op, err)
	}

	key := cache.Key(r.collection, scope.TenantID(), "list", opts.canonical())
	if r.cache != nil {
		if items, ok := cache.GetJSON[[]T](ctx, r.cache, key); ok {
			return items, nil
		}
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, r.collection+"."+op, r.spanAttrs(scope)...)
	defer span.End()

	items := make([]T, 0)
	q := r.db.NewSelect().Model(&items)
	q = r.applyScope(q, scope)
	q = opts.apply(q)
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		telemetry.RecordError(span, err)
		return nil, r.fail(KindQuery, op, err)
	}

	if r.cache != nil {
		cache.SetJSON(ctx, r.cache, key, items, r.ttl)
	}
	return items, nil
}

// GetByID returns the record, or nil when it does not exist in scope.
// A record owned by another tenant is reported exactly like a missing one.
func (r *TenantRepository[T, PT]) GetByID(ctx context.Context, id string, scope Scope) (*T, error) {
	const op = "get_by_id"
	if err := r.checkScope(op, scope); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, newError(KindValidation, r.collection, op, fmt.Errorf("id is required"))
	}

	key := cache.Key(r.collection, scope.TenantID(), "id", id)
	if r.cache != nil {
		if item, ok := cache.GetJSON[T](ctx, r.cache, key); ok {
			return &item, nil
		}
	}

	item, err := r.load(ctx, op, id, scope)
	if err != nil || item == nil {
		return nil, err
	}

	if r.cache != nil {
		cache.SetJSON(ctx, r.cache, key, *item, r.ttl)
	}
	return item, nil
}

// Create inserts data, stamping the scope's tenant when data carries none.
func (r *TenantRepository[T, PT]) Create(ctx context.Context, data *T, scope Scope) (*T, error) {
	const op = "create"
	if err := r.checkScope(op, scope); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, newError(KindValidation, r.collection, op, fmt.Errorf("data is required"))
	}

	record := PT(data)
	switch {
	case record.GetTenantID() == "" && scope.TenantID() != "":
		record.SetTenantID(scope.TenantID())
	case record.GetTenantID() == "":
		return nil, newError(KindValidation, r.collection, op, fmt.Errorf("tenant_id is required in unscoped mode"))
	case scope.TenantID() != "" && record.GetTenantID() != scope.TenantID():
		return nil, newError(KindUnauthorized, r.collection, op, fmt.Errorf("record tenant does not match scope"))
	}
	if record.GetID() == "" {
		record.SetID(bunx.NewUUIDv7())
	}
	record.Touch(r.now().UTC())

	ctx, span := telemetry.StartSpan(ctx, tracerName, r.collection+"."+op, r.spanAttrs(scope)...)
	defer span.End()

	if _, err := r.db.NewInsert().Model(data).Exec(ctx); err != nil {
		telemetry.RecordError(span, err)
		return nil, r.fail(KindInsert, op, err)
	}

	r.invalidate(ctx, op)
	return data, nil
}

// Update applies patch to the record and returns the stored result, or nil
// when the record does not exist in scope.
func (r *TenantRepository[T, PT]) Update(ctx context.Context, id string, patch map[string]any, scope Scope) (*T, error) {
	const op = "update"
	if err := r.checkScope(op, scope); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, newError(KindValidation, r.collection, op, fmt.Errorf("id is required"))
	}
	if len(patch) == 0 {
		return nil, newError(KindValidation, r.collection, op, fmt.Errorf("patch is empty"))
	}
	for column := range patch {
		if _, ok := immutableColumns[column]; ok {
			return nil, newError(KindValidation, r.collection, op, fmt.Errorf("column %s cannot be updated", column))
		}
		if err := checkColumn(r.table, column); err != nil {
			return nil, newError(KindValidation, r.collection, op, err)
		}
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, r.collection+"."+op, r.spanAttrs(scope)...)
	defer span.End()

	q := r.db.NewUpdate().Model((*T)(nil))
	for column, value := range patch {
		q = q.Set("? = ?", bun.Ident(column), value)
	}
	q = q.Set("? = ?", bun.Ident("updated_at"), r.now().UTC())
	q = q.Where("? = ?", bun.Ident("id"), id)
	if !scope.Unscoped() {
		q = q.Where("? = ?", bun.Ident("tenant_id"), scope.TenantID())
	}

	res, err := q.Exec(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, r.fail(KindUpdate, op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, r.fail(KindUpdate, op, err)
	}
	if affected == 0 {
		return nil, nil
	}

	r.invalidate(ctx, op)
	return r.load(ctx, op, id, scope)
}

// Delete removes the record. It returns false when nothing in scope matched.
func (r *TenantRepository[T, PT]) Delete(ctx context.Context, id string, scope Scope) (bool, error) {
	const op = "delete"
	if err := r.checkScope(op, scope); err != nil {
		return false, err
	}
	if id == "" {
		return false, newError(KindValidation, r.collection, op, fmt.Errorf("id is required"))
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, r.collection+"."+op, r.spanAttrs(scope)...)
	defer span.End()

	q := r.db.NewDelete().Model((*T)(nil)).Where("? = ?", bun.Ident("id"), id)
	if !scope.Unscoped() {
		q = q.Where("? = ?", bun.Ident("tenant_id"), scope.TenantID())
	}

	res, err := q.Exec(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, r.fail(KindDelete, op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, r.fail(KindDelete, op, err)
	}
	if affected == 0 {
		return false, nil
	}

	r.invalidate(ctx, op)
	return true, nil
}

// load reads a single record from the store, bypassing the cache.
func (r *TenantRepository[T, PT]) load(ctx context.Context, op, id string, scope Scope) (*T, error) {
	item := new(T)
	q := r.db.NewSelect().Model(item).Where("? = ?", bun.Ident("id"), id)
	q = r.applyScope(q, scope)
	if err := q.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, r.fail(KindQuery, op, err)
	}
	return item, nil
}

func (r *TenantRepository[T, PT]) applyScope(q *bun.SelectQuery, scope Scope) *bun.SelectQuery {
	if scope.Unscoped() {
		return q
	}
	return q.Where("? = ?", bun.Ident("tenant_id"), scope.TenantID())
}

func (r *TenantRepository[T, PT]) checkScope(op string, scope Scope) error {
	if !scope.valid() {
		return newError(KindValidation, r.collection, op, fmt.Errorf("tenant scope is required"))
	}
	return nil
}

func (r *TenantRepository[T, PT]) invalidate(ctx context.Context, op string) {
	if r.cache == nil {
		return
	}
	if _, err := r.cache.InvalidatePattern(ctx, cache.CollectionPattern(r.collection)); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"collection": r.collection,
			"op":         op,
		}).Error("cache invalidation after write failed")
	}
}

func (r *TenantRepository[T, PT]) fail(kind ErrorKind, op string, err error) error {
	classified := classify(kind, r.collection, op, err)
	r.log.WithError(err).WithFields(logrus.Fields{
		"collection": r.collection,
		"op":         op,
		"kind":       KindOf(classified),
	}).Warn("repository operation failed")
	return classified
}

func (r *TenantRepository[T, PT]) spanAttrs(scope Scope) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(telemetry.AttrCollection, r.collection),
		attribute.String(telemetry.AttrTenantID, scope.TenantID()),
		attribute.Bool(telemetry.AttrUnscoped, scope.Unscoped()),
	}
}
