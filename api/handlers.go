package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"boohill-ingest/models"
	"boohill-ingest/services"
	"boohill-ingest/storage"
	"boohill-ingest/utils"
)

const maxBodyBytes = 4 << 20

// Handlers serves the import and house endpoints.
type Handlers struct {
	importer *services.Importer
	houses   storage.HouseReader
	reports  *services.ReportService
	previews *previewCache
	logger   *utils.Logger
}

// NewHandlers wires the handlers. houses may be nil when no store is
// configured; the house listing then answers 503.
func NewHandlers(importer *services.Importer, houses storage.HouseReader, logger *utils.Logger) *Handlers {
	return &Handlers{
		importer: importer,
		houses:   houses,
		reports:  services.NewReportService(logger),
		previews: newPreviewCache(64),
		logger:   logger,
	}
}

// HandlePreview handles POST /api/v1/imports/preview.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeBody(w, r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteJSONError(w, http.StatusBadRequest, "text is required")
		return
	}

	preview, err := h.importer.Preview(r.Context(), req.Text)
	if err != nil {
		h.logger.Error("[api] preview failed: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to preview import")
		return
	}
	h.previews.put(preview)

	RespondWithJSON(w, http.StatusOK, h.previewResponse(preview))
}

// HandleApply handles POST /api/v1/imports/apply.
func (h *Handlers) HandleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeBody(w, r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	mode, err := services.ParseSimilarMode(req.Similar)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var preview *models.ImportPreview
	switch {
	case req.RunID != "":
		var ok bool
		if preview, ok = h.previews.take(req.RunID); !ok {
			WriteJSONError(w, http.StatusNotFound, "Unknown or already applied run_id")
			return
		}
	case strings.TrimSpace(req.Text) != "":
		if preview, err = h.importer.Preview(r.Context(), req.Text); err != nil {
			h.logger.Error("[api] preview failed: %v", err)
			WriteJSONError(w, http.StatusInternalServerError, "Failed to preview import")
			return
		}
	default:
		WriteJSONError(w, http.StatusBadRequest, "run_id or text is required")
		return
	}

	out, err := h.importer.Apply(r.Context(), preview, mode)
	if err != nil {
		if errors.Is(err, services.ErrNoStore) {
			WriteJSONError(w, http.StatusServiceUnavailable, "No store configured")
			return
		}
		h.logger.Error("[api] apply %s failed: %v", preview.RunID, err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to apply import")
		return
	}

	RespondWithJSON(w, http.StatusOK, applyResponse{
		RunID:   out.RunID,
		Summary: services.OutcomeSummary(out),
		Outcome: out,
	})
}

// HandleListHouses handles GET /api/v1/houses?building=216&area=47.
// building may repeat or hold a comma-separated list.
func (h *Handlers) HandleListHouses(w http.ResponseWriter, r *http.Request) {
	if h.houses == nil {
		WriteJSONError(w, http.StatusServiceUnavailable, "No store configured")
		return
	}

	q := models.HouseQuery{Area: strings.TrimSpace(r.URL.Query().Get("area"))}
	for _, v := range r.URL.Query()["building"] {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				q.BuildingNumbers = append(q.BuildingNumbers, b)
			}
		}
	}
	if len(q.BuildingNumbers) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "building is required")
		return
	}

	houses, err := h.houses.FetchHousesWithItems(r.Context(), q)
	if err != nil {
		h.logger.Error("[api] list houses failed: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to load houses")
		return
	}
	if houses == nil {
		houses = []*models.PersistedHouse{}
	}
	RespondWithJSON(w, http.StatusOK, houses)
}

func (h *Handlers) previewResponse(p *models.ImportPreview) previewResponse {
	trace := make([]string, 0, len(p.Parse.Logs)+len(p.Classification.Logs))
	trace = append(trace, p.Parse.Logs...)
	trace = append(trace, p.Classification.Logs...)

	return previewResponse{
		RunID:      p.RunID,
		AddedDate:  p.AddedDate,
		Summary:    services.PreviewSummary(p),
		Novel:      p.Classification.Novel,
		Duplicates: p.Classification.Duplicates,
		Similar:    p.Classification.Similar,
		Report:     h.reports.Generate(p, nil),
		Trace:      trace,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
