package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/internal/inventory"
	"github.com/setbench/setbench/pkg/types"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// RecordResponse is returned by create and update.
type RecordResponse struct {
	Record types.Record     `json:"record"`
	Timing inventory.Timing `json:"timing"`
}

// ListResponse is one page of records.
type ListResponse struct {
	Data        []types.Record `json:"data"`
	Count       int            `json:"count"`
	Total       int            `json:"total"`
	Limit       int            `json:"limit"`
	Offset      int            `json:"offset"`
	QueryTimeMs float64        `json:"query_time_ms"`
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.NewValidationError(errors.CodeInvalidRecord, fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError(errors.CodeInvalidConfiguration, fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	start := time.Now()
	records, err := a.svc.List(r.Context(), limit, offset)
	elapsed := time.Since(start)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	total, err := a.svc.Count(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	if records == nil {
		records = []types.Record{}
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Data:        records,
		Count:       len(records),
		Total:       total,
		Limit:       limit,
		Offset:      offset,
		QueryTimeMs: float64(elapsed.Nanoseconds()) / 1e6,
	})
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var in types.NewRecord
	if err := decodeJSON(r, &in, false); err != nil {
		a.writeErr(w, r, err)
		return
	}

	rec, timing, err := a.svc.Create(r.Context(), in)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordResponse{Record: rec, Timing: timing})
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	detail, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	var patch types.RecordPatch
	if err := decodeJSON(r, &patch, false); err != nil {
		a.writeErr(w, r, err)
		return
	}
	if patch.Empty() {
		a.writeErr(w, r, errors.NewValidationError(errors.CodeInvalidRecord, "update must change at least one field"))
		return
	}

	rec, timing, err := a.svc.Update(r.Context(), id, patch)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordResponse{Record: rec, Timing: timing})
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	timing, err := a.svc.Delete(r.Context(), id)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": id,
		"timing":  timing,
	})
}

// SeedRequest is the body of POST /api/seed. ?count= is also accepted.
type SeedRequest struct {
	Count int `json:"count"`
}

func (a *API) seed(w http.ResponseWriter, r *http.Request) {
	req := SeedRequest{}
	if err := decodeJSON(r, &req, true); err != nil {
		a.writeErr(w, r, err)
		return
	}
	if req.Count == 0 {
		n, err := queryInt(r, "count", DefaultSeedCount)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		req.Count = n
	}

	res, err := a.svc.Seed(r.Context(), req.Count)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
