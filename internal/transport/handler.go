package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/likeface/internal/models"
	"github.com/Lllllllleong/likeface/internal/services"
	"github.com/gorilla/mux"
)

// FaceProcessor runs the face pipeline for one user.
type FaceProcessor interface {
	Process(ctx context.Context, req *models.MakeFaceRequest) (*models.MakeFaceResponse, error)
}

// FaceHandler serves the face API routes.
type FaceHandler struct {
	faces  FaceProcessor
	logger *slog.Logger
}

// NewFaceHandler creates a FaceHandler backed by faces.
func NewFaceHandler(faces FaceProcessor, logger *slog.Logger) *FaceHandler {
	return &FaceHandler{faces: faces, logger: logger}
}

// RegisterRoutes mounts /health and /make_face/{u_id} on r.
func (h *FaceHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/make_face/{u_id}", h.MakeFace).Methods(http.MethodPost)
}

// Health always answers OK; it does not check the model, storage or database.
func (h *FaceHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, models.HealthResponse{Message: "OK"})
}

// MakeFace generates a face for the user in the path. Every failure is a
// plain 500 with no detail about which stage failed.
func (h *FaceHandler) MakeFace(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["u_id"]

	res, err := h.faces.Process(r.Context(), &models.MakeFaceRequest{UserID: userID})
	if err != nil {
		h.logger.Error("make_face failed",
			"error", err,
			"stage", services.StageOf(err),
			"userId", userID,
			"requestId", RequestIDFromContext(r.Context()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, r, res)
}

func (h *FaceHandler) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write response", "error", err, "path", r.URL.Path)
	}
}
