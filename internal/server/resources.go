package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/tenant"
)

// resourceHandlers exposes a tenant-scoped collection as CRUD endpoints.
type resourceHandlers[T any, PT interface {
	*T
	repository.TenantScoped
}] struct {
	*handlers
	repo    *repository.TenantRepository[T, PT]
	section auth.Section
}

// mount registers the collection under the current route, each endpoint
// guarded by the section permission and the tenant scope policy.
func (rh *resourceHandlers[T, PT]) mount(r chi.Router, require func(auth.Section, auth.Action, tenant.Operation) func(http.Handler) http.Handler) {
	s := rh.section
	r.With(require(s, auth.ActionView, tenant.OpList)).Get("/", rh.list)
	r.With(require(s, auth.ActionCreate, tenant.OpCreate)).Post("/", rh.create)
	r.With(require(s, auth.ActionView, tenant.OpRead)).Get("/{id}", rh.get)
	r.With(require(s, auth.ActionEdit, tenant.OpUpdate)).Patch("/{id}", rh.update)
	r.With(require(s, auth.ActionDelete, tenant.OpDelete)).Delete("/{id}", rh.delete)
}

// scope turns the request's resolution into a repository scope. Requests only
// get here after the scope policy accepted them.
func scope(r *http.Request) repository.Scope {
	res, _ := tenantFrom(r)
	caller, _ := callerFrom(r)
	if res.HasTenant() {
		return repository.ForTenant(res.TenantID)
	}
	if tenant.Unscoped(res, caller.Role) {
		return repository.AllTenants()
	}
	return repository.Scope{}
}

func (rh *resourceHandlers[T, PT]) list(w http.ResponseWriter, r *http.Request) {
	opts, err := parseQueryOptions(r.URL.Query())
	if err != nil {
		rh.fail(w, r, &repository.Error{Kind: repository.KindValidation, Op: "get_all", Collection: rh.repo.Collection(), Err: err})
		return
	}
	items, err := rh.repo.GetAll(r.Context(), scope(r), opts)
	if err != nil {
		rh.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (rh *resourceHandlers[T, PT]) get(w http.ResponseWriter, r *http.Request) {
	item, err := rh.repo.GetByID(r.Context(), chi.URLParam(r, "id"), scope(r))
	if err != nil {
		rh.fail(w, r, err)
		return
	}
	if item == nil || !rh.visible(r, PT(item)) {
		rh.fail(w, r, notFound(rh.repo.Collection()))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// visible re-checks tenant isolation on a loaded record; a mismatch is
// reported exactly like a missing record.
func (rh *resourceHandlers[T, PT]) visible(r *http.Request, item PT) bool {
	caller, _ := callerFrom(r)
	res, _ := tenantFrom(r)
	return rh.evaluator.AuthorizeWithTenant(caller.Role, res.TenantID, item.GetTenantID(), rh.section, auth.ActionView)
}

func (rh *resourceHandlers[T, PT]) create(w http.ResponseWriter, r *http.Request) {
	item := new(T)
	if err := decodeJSON(r, item); err != nil {
		rh.fail(w, r, err)
		return
	}
	PT(item).SetID("")
	created, err := rh.repo.Create(r.Context(), item, scope(r))
	if err != nil {
		rh.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (rh *resourceHandlers[T, PT]) update(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeJSON(r, &body); err != nil {
		rh.fail(w, r, err)
		return
	}
	patch := make(map[string]any, len(body))
	for key, value := range body {
		patch[columnName(key)] = value
	}

	updated, err := rh.repo.Update(r.Context(), chi.URLParam(r, "id"), patch, scope(r))
	if err != nil {
		rh.fail(w, r, err)
		return
	}
	if updated == nil {
		rh.fail(w, r, notFound(rh.repo.Collection()))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rh *resourceHandlers[T, PT]) delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := rh.repo.Delete(r.Context(), chi.URLParam(r, "id"), scope(r))
	if err != nil {
		rh.fail(w, r, err)
		return
	}
	if !deleted {
		rh.fail(w, r, notFound(rh.repo.Collection()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseQueryOptions reads limit, offset, orderBy, desc and repeated
// filter=column:op:value parameters.
func parseQueryOptions(q url.Values) (repository.QueryOptions, error) {
	var opts repository.QueryOptions
	var err error
	if v := q.Get("limit"); v != "" {
		if opts.Limit, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("limit: %w", err)
		}
	}
	if v := q.Get("offset"); v != "" {
		if opts.Offset, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("offset: %w", err)
		}
	}
	if v := q.Get("orderBy"); v != "" {
		opts.OrderBy = columnName(v)
	}
	opts.Desc = q.Get("desc") == "true"

	for _, raw := range q["filter"] {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			return opts, fmt.Errorf("filter %q must be column:op:value", raw)
		}
		opts.Filters = append(opts.Filters, repository.Filter{
			Column: columnName(parts[0]),
			Op:     repository.FilterOp(parts[1]),
			Value:  parts[2],
		})
	}
	return opts, nil
}

// columnName maps a JSON field name such as hourlyRate to its column hourly_rate.
func columnName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
