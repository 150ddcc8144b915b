package provision

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/optimal-wallet/pkg/app/errors"
	apphttp "github.com/chainsafe/optimal-wallet/pkg/app/http"
	"github.com/chainsafe/optimal-wallet/pkg/runstore"
)

// HTTP exposes Service as JSON endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type listResponse struct {
	Runs []*runstore.Run `json:"runs"`
}

// RegisterRoutes mounts the provisioning endpoints on r
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{service: service, logger: logger}

	r.Route("/provisions", func(r chi.Router) {
		r.Post("/", apphttp.HandleError(logger, h.submit))
		r.Get("/", apphttp.HandleError(logger, h.list))
		r.Get("/{id}", apphttp.HandleError(logger, h.get))
	})
}

func (h *HTTP) submit(w http.ResponseWriter, r *http.Request) error {
	body, err := apphttp.ReadBody(r)
	if err != nil {
		return err
	}

	plan, err := DecodePlanJSON(body)
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}

	run, err := h.service.Submit(r.Context(), plan)
	if err != nil {
		return err
	}

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+run.ID)
	return apphttp.WriteJSON(w, http.StatusAccepted, &submitResponse{ID: run.ID, Status: run.Status})
}

func (h *HTTP) get(w http.ResponseWriter, r *http.Request) error {
	run, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, run)
}

func (h *HTTP) list(w http.ResponseWriter, r *http.Request) error {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return apperrors.BadRequestError(err, "limit must be a non-negative integer")
		}
		limit = n
	}

	runs, err := h.service.List(r.Context(), limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []*runstore.Run{}
	}
	return apphttp.WriteJSON(w, http.StatusOK, &listResponse{Runs: runs})
}
