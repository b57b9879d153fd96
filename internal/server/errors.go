package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/middleware"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
)

// errInvalidBody is returned when a request body cannot be decoded.
var errInvalidBody = errors.New("request body is not valid JSON")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return &repository.Error{Kind: repository.KindValidation, Op: "decode", Collection: "request", Err: errInvalidBody}
	}
	return nil
}

func notFound(collection string) error {
	return &repository.Error{Kind: repository.KindNotFound, Op: "get", Collection: collection}
}

// fail writes err and records store failures as auth events.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var re *repository.Error
	if errors.As(err, &re) && h.events != nil {
		switch re.Kind {
		case repository.KindQuery, repository.KindInsert, repository.KindUpdate, repository.KindDelete, repository.KindUnknown:
			ec := audit.EventContext{Path: r.URL.Path, Err: err, StatusCode: http.StatusInternalServerError}
			if res, ok := tenantFrom(r); ok {
				ec.TenantID = res.TenantID
			}
			if caller, ok := callerFrom(r); ok {
				ec.IdentityID = caller.Identity.ID
			}
			h.events.LogEvent(r.Context(), audit.EventRepositoryError, audit.LevelError, ec)
		}
	}
	middleware.WriteError(w, r, err)
}
