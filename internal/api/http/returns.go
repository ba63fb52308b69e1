package http

import (
	"net/http"
	"time"

	"github.com/setbench/setbench/pkg/types"
)

func ms(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func (a *API) listReturns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	list, elapsed, err := a.svc.ListReturns(r.Context(), limit)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":          list,
		"count":         len(list),
		"query_time_ms": ms(elapsed),
	})
}

func (a *API) createReturn(w http.ResponseWriter, r *http.Request) {
	var in types.NewReturn
	if err := decodeJSON(r, &in, false); err != nil {
		a.writeErr(w, r, err)
		return
	}

	d, elapsed, err := a.svc.CreateReturn(r.Context(), in)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data":       d,
		"db_time_ms": ms(elapsed),
	})
}

func (a *API) getReturn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	d, elapsed, err := a.svc.GetReturn(r.Context(), id)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":          d,
		"query_time_ms": ms(elapsed),
	})
}
