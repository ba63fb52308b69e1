package http

import (
	"net/http"

	"github.com/setbench/setbench/internal/stress"
)

func (a *API) runStress(w http.ResponseWriter, r *http.Request) {
	var cfg stress.Config
	if err := decodeJSON(r, &cfg, true); err != nil {
		a.writeErr(w, r, err)
		return
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = a.defaults.Concurrency
	}
	if cfg.OpsPerUser == 0 {
		cfg.OpsPerUser = a.defaults.OpsPerUser
	}

	rep, err := a.harness.Run(r.Context(), cfg)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
