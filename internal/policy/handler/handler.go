package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"frost/internal/policy/models"
	dErrors "frost/pkg/domain-errors"
	"frost/pkg/platform/httputil"
	"frost/pkg/requestcontext"
)

// Service defines the policy store operations served over HTTP.
type Service interface {
	Publish(ctx context.Context, req models.PublishRequest) (*models.Result, error)
	Retrieve(ctx context.Context, policyID string) (*models.Result, error)
	ListIDs(ctx context.Context, deviceID, clientFingerprint string) (*models.Result, error)
	ClearAll(ctx context.Context, deviceID string) (*models.Result, error)
}

// Response is the envelope of every policy endpoint.
type Response struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Handler wires the policy endpoints to the policy service.
type Handler struct {
	service Service
	logger  *slog.Logger
	auth    func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithAuth installs middleware that authenticates the device. When set,
// callers may only act on the device their token names.
func WithAuth(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.auth = mw
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the policy endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.auth != nil {
			r.Use(h.auth)
		}
		r.Post("/policies", h.HandlePublish)
		r.Get("/policies/{policyID}", h.HandleRetrieve)
		r.Get("/devices/{deviceID}/policies", h.HandleListIDs)
		r.Delete("/devices/{deviceID}/policies", h.HandleClearAll)
	})
}

// HandlePublish handles POST /policies.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, err := httputil.DecodeJSON[models.PublishRequest](r)
	if err != nil {
		h.writeRejection(ctx, w, dErrors.New(dErrors.CodeBadRequest, models.MsgMalformedJSON))
		return
	}
	if !h.authorizeDevice(ctx, w, req.DeviceID) {
		return
	}

	result, err := h.service.Publish(ctx, *req)
	if err != nil {
		h.writeRejection(ctx, w, err)
		return
	}
	h.logger.InfoContext(ctx, "publish handled",
		"request_id", requestID,
		"device_id", req.DeviceID,
		"status", result.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	h.writeResult(w, result)
}

// HandleRetrieve handles GET /policies/{policyID}.
func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.service.Retrieve(ctx, chi.URLParam(r, "policyID"))
	if err != nil {
		h.writeRejection(ctx, w, err)
		return
	}
	// a token may only read its own device's policies
	if doc, ok := result.Payload.(*models.PolicyDocument); ok {
		if !h.authorizeDevice(ctx, w, doc.DeviceID) {
			return
		}
	}
	h.writeResult(w, result)
}

// HandleListIDs handles GET /devices/{deviceID}/policies?policyStoreId=.
func (h *Handler) HandleListIDs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := chi.URLParam(r, "deviceID")
	if !h.authorizeDevice(ctx, w, deviceID) {
		return
	}
	result, err := h.service.ListIDs(ctx, deviceID, r.URL.Query().Get("policyStoreId"))
	if err != nil {
		h.writeRejection(ctx, w, err)
		return
	}
	h.writeResult(w, result)
}

// HandleClearAll handles DELETE /devices/{deviceID}/policies.
func (h *Handler) HandleClearAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := chi.URLParam(r, "deviceID")
	if !h.authorizeDevice(ctx, w, deviceID) {
		return
	}
	result, err := h.service.ClearAll(ctx, deviceID)
	if err != nil {
		h.writeRejection(ctx, w, err)
		return
	}
	h.writeResult(w, result)
}

func (h *Handler) authorizeDevice(ctx context.Context, w http.ResponseWriter, deviceID string) bool {
	if h.auth == nil {
		return true
	}
	tokenDevice := requestcontext.DeviceID(ctx)
	if tokenDevice != "" && tokenDevice == deviceID {
		return true
	}
	h.logger.WarnContext(ctx, "device mismatch",
		"request_id", requestcontext.RequestID(ctx),
		"token_device_id", tokenDevice,
		"device_id", deviceID,
	)
	httputil.WriteJSON(w, http.StatusForbidden, Response{Error: true, Message: models.MsgDeviceMismatch})
	return false
}

// writeRejection answers a request the service refused before doing any work.
func (h *Handler) writeRejection(ctx context.Context, w http.ResponseWriter, err error) {
	h.logger.WarnContext(ctx, "policy request rejected",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	message := "Internal error."
	var de *dErrors.Error
	if errors.As(err, &de) && de.Code != dErrors.CodeInternal {
		message = de.Message
	}
	httputil.WriteJSON(w, httputil.StatusFor(dErrors.CodeOf(err)), Response{Error: true, Message: message})
}

func (h *Handler) writeResult(w http.ResponseWriter, result *models.Result) {
	httputil.WriteJSON(w, statusFor(result.Status), Response{
		Error:   result.IsError,
		Message: result.Message,
		Data:    result.Payload,
	})
}

func statusFor(status models.Status) int {
	switch status {
	case models.StatusPublished:
		return http.StatusCreated
	case models.StatusNotFound:
		return http.StatusNotFound
	case models.StatusFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
