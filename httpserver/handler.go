package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pluggable-systems/plugin-registry-backend/api"
	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
	"github.com/pluggable-systems/plugin-registry-backend/metrics"
	"github.com/pluggable-systems/plugin-registry-backend/registry"
)

// Handler processes HTTP requests against the registry service. Identity for
// write operations comes from the request signature; the registry itself
// decides whether that identity is authorized.
type Handler struct {
	service *registry.Service
	log     *slog.Logger
}

// NewHandler creates a request handler backed by the given registry service.
func NewHandler(service *registry.Service, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

// statusForError maps registry sentinel errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrInvalidAddress),
		errors.Is(err, interfaces.ErrInvalidPayload),
		errors.Is(err, interfaces.ErrInvalidBoundKind),
		errors.Is(err, interfaces.ErrInvalidBoundOrdering),
		errors.Is(err, interfaces.ErrInvalidBoundLength):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrInvalidOrdinal),
		errors.Is(err, interfaces.ErrInstanceNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrDuplicateVersion),
		errors.Is(err, interfaces.ErrInstanceExists),
		errors.Is(err, interfaces.ErrVersionSkip):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrUpgradeExecutionFailed):
		return http.StatusBadGateway
	case errors.Is(err, interfaces.ErrOracleUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, api.ErrMissingSignature):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusForError(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func versionResponse(entry interfaces.VersionEntry) *api.VersionResponse {
	return &api.VersionResponse{
		Ordinal:  entry.Ordinal,
		Label:    entry.Label,
		LogicRef: entry.LogicRef.String(),
		Payload:  []byte(entry.Payload),
	}
}

func (h *Handler) boundResponse(kind interfaces.BoundKind) api.BoundResponse {
	resp := api.BoundResponse{Kind: kind.String()}
	if value, ok := h.service.Window.Bound(kind); ok {
		resp.Set = true
		resp.Value = value.String()
	}
	return resp
}

func instanceResponse(record interfaces.InstanceRecord) *api.InstanceResponse {
	return &api.InstanceResponse{
		InstanceID:     record.InstanceID.String(),
		Owner:          record.Owner.String(),
		CurrentOrdinal: record.CurrentOrdinal,
	}
}

// pathAddress parses a 20-byte hex address from the named URL path value.
func (h *Handler) pathAddress(r *http.Request, name string) (interfaces.Address, error) {
	addr, err := interfaces.NewAddressFromHex(r.PathValue(name))
	if err != nil {
		h.log.Debug("Invalid address in URL", "err", err, "value", r.PathValue(name))
		return interfaces.Address{}, interfaces.ErrInvalidAddress
	}
	return addr, nil
}

func (h *Handler) pathOrdinal(r *http.Request) (uint64, error) {
	ordinal, err := strconv.ParseUint(r.PathValue("ordinal"), 10, 64)
	if err != nil {
		return 0, interfaces.ErrInvalidOrdinal
	}
	return ordinal, nil
}

// HandleStatus returns a summary of the registry state.
//
// URL format: GET /api/public/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, &api.StatusResponse{
		Frontier:     h.service.Ledger.HighestOrdinal(),
		CurrentLabel: h.service.Ledger.CurrentVersionLabel(),
		Lower:        h.boundResponse(interfaces.BoundLower),
		Upper:        h.boundResponse(interfaces.BoundUpper),
		Instances:    len(h.service.Instances.Records()),
	})
}

// HandleVersion returns the entry at the ledger frontier.
//
// URL format: GET /api/public/version
func (h *Handler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Ledger.Entry(h.service.Ledger.HighestOrdinal())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, versionResponse(entry))
}

// HandleVersionAt returns the ledger entry at a given ordinal.
//
// URL format: GET /api/public/versions/{ordinal}
func (h *Handler) HandleVersionAt(w http.ResponseWriter, r *http.Request) {
	ordinal, err := h.pathOrdinal(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	entry, err := h.service.Ledger.Entry(ordinal)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, versionResponse(entry))
}

// HandleBound returns one compatibility window bound.
//
// URL format: GET /api/public/bounds/{kind}
func (h *Handler) HandleBound(w http.ResponseWriter, r *http.Request) {
	kind, err := interfaces.ParseBoundKind(r.PathValue("kind"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, h.boundResponse(kind))
}

// HandleInstance returns the record for a registered instance.
//
// URL format: GET /api/public/instances/{instance}
func (h *Handler) HandleInstance(w http.ResponseWriter, r *http.Request) {
	instance, err := h.pathAddress(r, "instance")
	if err != nil {
		h.writeError(w, err)
		return
	}

	record, err := h.service.Instances.Record(instance)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, instanceResponse(record))
}

// HandlePublish adds a new version at the ledger frontier. The request must
// be signed by the registry authority.
//
// URL format: POST /api/admin/versions
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	caller, err := api.RecoverIdentity(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req api.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	logicRef, err := interfaces.NewAddressFromHex(req.LogicRef)
	if err != nil {
		h.writeError(w, interfaces.ErrInvalidAddress)
		return
	}

	ordinal, err := h.service.Authority.Publish(caller, req.Label, logicRef, interfaces.UpgradePayload(req.Payload))
	if err != nil {
		h.log.Warn("Publish rejected", "err", err, "label", req.Label, "caller", caller.String())
		h.writeError(w, err)
		return
	}

	metrics.VersionsPublished.Inc()
	h.writeJSON(w, &api.PublishResponse{Ordinal: ordinal})
}

// HandleEdit rewrites an existing ledger entry in place. The request must be
// signed by the registry authority.
//
// URL format: PUT /api/admin/versions/{ordinal}
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	caller, err := api.RecoverIdentity(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ordinal, err := h.pathOrdinal(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req api.EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	logicRef, err := interfaces.NewAddressFromHex(req.LogicRef)
	if err != nil {
		h.writeError(w, interfaces.ErrInvalidAddress)
		return
	}

	if err := h.service.Authority.Edit(caller, ordinal, req.Label, logicRef, interfaces.UpgradePayload(req.Payload)); err != nil {
		h.log.Warn("Edit rejected", "err", err, "ordinal", ordinal, "caller", caller.String())
		h.writeError(w, err)
		return
	}

	metrics.VersionsEdited.Inc()
	entry, err := h.service.Ledger.Entry(ordinal)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, versionResponse(entry))
}

// HandleSetBound widens one compatibility window bound. The request must be
// signed by the registry authority.
//
// URL format: PUT /api/admin/bounds/{kind}
func (h *Handler) HandleSetBound(w http.ResponseWriter, r *http.Request) {
	caller, err := api.RecoverIdentity(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	kind, err := interfaces.ParseBoundKind(r.PathValue("kind"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req api.SetBoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	value, err := interfaces.ParseVersionTuple(req.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.service.Authority.SetBound(caller, kind, value); err != nil {
		h.log.Warn("Bound update rejected", "err", err, "kind", kind.String(), "caller", caller.String())
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, h.boundResponse(kind))
}

// HandleRegister creates the record for a new instance, owned by the request
// signer and pinned to the current ledger frontier.
//
// URL format: POST /api/instances/{instance}
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	caller, err := api.RecoverIdentity(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	instance, err := h.pathAddress(r, "instance")
	if err != nil {
		h.writeError(w, err)
		return
	}

	record, err := h.service.Instances.Register(r.Context(), instance, caller)
	if err != nil {
		h.log.Warn("Registration rejected", "err", err, "instance", instance.String(), "caller", caller.String())
		h.writeError(w, err)
		return
	}

	metrics.InstancesRegistered.Inc()
	h.writeJSON(w, instanceResponse(record))
}

// HandleUpgrade moves an instance one step toward the ledger frontier. The
// request signer must be the instance owner.
//
// URL format: POST /api/instances/{instance}/upgrade
func (h *Handler) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	caller, err := api.RecoverIdentity(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	instance, err := h.pathAddress(r, "instance")
	if err != nil {
		h.writeError(w, err)
		return
	}

	newOrdinal, err := h.service.Coordinator.RequestUpgrade(r.Context(), instance, caller)
	if err != nil {
		h.log.Warn("Upgrade rejected", "err", err, "instance", instance.String(), "caller", caller.String())
		metrics.UpgradesFailed.WithLabelValues(upgradeFailureReason(err)).Inc()
		h.writeError(w, err)
		return
	}

	metrics.UpgradesApplied.Inc()
	h.writeJSON(w, &api.UpgradeResponse{
		InstanceID: instance.String(),
		NewOrdinal: newOrdinal,
	})
}

func upgradeFailureReason(err error) string {
	switch {
	case errors.Is(err, interfaces.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, interfaces.ErrVersionSkip):
		return "version_skip"
	case errors.Is(err, interfaces.ErrUpgradeExecutionFailed):
		return "execution_failed"
	case errors.Is(err, interfaces.ErrInstanceNotFound):
		return "not_found"
	default:
		return "other"
	}
}
