package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BrainlyTree-Project/Backend/internal/alerts"
	"github.com/BrainlyTree-Project/Backend/internal/commands"
	"github.com/BrainlyTree-Project/Backend/internal/devices"
	"github.com/BrainlyTree-Project/Backend/models"
)

// Handler serves the command-delivery and review surface the MQTT bridge and
// the dashboard call.
type Handler struct {
	Logger   *slog.Logger
	Commands *commands.CommandStore
	Queue    *commands.Queue
	Devices  *devices.DeviceStore
	Alerts   *alerts.AlertStore
}

// ListDeviceCommands returns the pending commands due for a device. The
// bridge polls this when the device announces a wake.
func (h *Handler) ListDeviceCommands(w http.ResponseWriter, r *http.Request) {
	deviceID, err := devices.NormalizeHardwareAddr(chi.URLParam(r, "deviceID"))
	if err != nil {
		http.Error(w, "invalid device id", http.StatusBadRequest)
		return
	}

	cmds, err := h.Commands.ListPendingDue(r.Context(), deviceID, time.Now().Unix())
	if err != nil {
		h.Logger.Error("failed to list commands", "device_id", deviceID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if cmds == nil {
		cmds = []models.Command{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"commands": cmds})
}

// MarkDelivered acknowledges that the bridge published a command to the
// device. Delivering a command that already left pending is a no-op: the
// bridge retries acknowledgements and must not see conflicts for its own
// duplicates.
func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	commandID := chi.URLParam(r, "commandID")

	cmd, err := h.Commands.GetByCommandID(r.Context(), commandID)
	if err != nil {
		if errors.Is(err, commands.ErrCommandNotFound) {
			http.Error(w, "command not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("failed to load command", "command_id", commandID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	now := time.Now()

	if err := h.Commands.MarkDelivered(r.Context(), cmd.DeviceID, cmd.UploadID, now.Unix()); err != nil {
		if errors.Is(err, commands.ErrNotPending) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "already_settled"})
			return
		}
		h.Logger.Error("failed to mark delivered", "command_id", commandID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// A delivered resend instruction means the device is about to retry, so
	// the upload goes back to receiving with a fresh deadline.
	if cmd.Action == models.ActionResendUpload {
		device, err := h.Devices.GetDevice(r.Context(), cmd.DeviceID)
		if err != nil {
			h.Logger.Error("failed to load device for retry accept", "device_id", cmd.DeviceID, "error", err)
		} else if err := h.Queue.AcceptRetry(r.Context(), now, device, cmd.UploadID); err != nil {
			h.Logger.Error("failed to reactivate upload", "upload_id", cmd.UploadID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

// CancelCommand withdraws a pending command. Cancellation is a status
// transition, the row survives for audit.
func (h *Handler) CancelCommand(w http.ResponseWriter, r *http.Request) {
	commandID := chi.URLParam(r, "commandID")

	cmd, err := h.Commands.GetByCommandID(r.Context(), commandID)
	if err != nil {
		if errors.Is(err, commands.ErrCommandNotFound) {
			http.Error(w, "command not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("failed to load command", "command_id", commandID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.Commands.Cancel(r.Context(), cmd.DeviceID, cmd.UploadID, time.Now().Unix()); err != nil {
		if errors.Is(err, commands.ErrNotPending) {
			http.Error(w, "command is not pending", http.StatusConflict)
			return
		}
		h.Logger.Error("failed to cancel command", "command_id", commandID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// AcknowledgeAlert marks an alert handled by a reviewer. Acknowledging twice
// is a no-op for the second caller.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	timestamp, err := strconv.ParseInt(chi.URLParam(r, "timestamp"), 10, 64)
	if err != nil {
		http.Error(w, "invalid timestamp", http.StatusBadRequest)
		return
	}

	if err := h.Alerts.Acknowledge(r.Context(), deviceID, timestamp); err != nil {
		if errors.Is(err, alerts.ErrAlreadyResolved) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "already_acknowledged"})
			return
		}
		h.Logger.Error("failed to acknowledge alert", "device_id", deviceID, "timestamp", timestamp, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

// ListAlertsBySeverity returns the newest alerts at one severity for the
// dashboard's review queue.
func (h *Handler) ListAlertsBySeverity(w http.ResponseWriter, r *http.Request) {
	severity := chi.URLParam(r, "severity")
	if models.SeverityRank(severity) == 0 {
		http.Error(w, "unknown severity", http.StatusBadRequest)
		return
	}

	limit := int32(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 1 || parsed > 200 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = int32(parsed)
	}

	list, err := h.Alerts.GetAlertsBySeverity(r.Context(), severity, limit)
	if err != nil {
		h.Logger.Error("failed to list alerts", "severity", severity, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if list == nil {
		list = []models.Alert{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": list})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
