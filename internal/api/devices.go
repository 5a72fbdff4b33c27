package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-playout/internal/dispatch"
	"github.com/nerrad567/gray-logic-playout/internal/playout"
)

// DeviceListResponse is returned by GET /devices.
type DeviceListResponse struct {
	Devices []playout.DeviceStatus `json:"devices"`
	Count   int                    `json:"count"`
}

// QueueResponse is returned by GET /devices/{id}/queue.
type QueueResponse struct {
	DeviceID string                      `json:"device_id"`
	Commands []dispatch.ScheduledCommand `json:"commands"`
	Count    int                         `json:"count"`
}

// handleListDevices returns every device's status.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	statuses := s.devices.Statuses()
	writeJSON(w, http.StatusOK, DeviceListResponse{
		Devices: statuses,
		Count:   len(statuses),
	})
}

// handleGetDevice returns one device's status.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, err := s.devices.Status(id)
	if errors.Is(err, playout.ErrDeviceNotFound) {
		writeNotFound(w, "device not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get device status", "device", id, "error", err)
		writeInternalError(w, "failed to get device status")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleGetDeviceQueue returns the device's pending commands in
// execution order.
func (s *Server) handleGetDeviceQueue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.devices.Get(id)
	if errors.Is(err, playout.ErrDeviceNotFound) {
		writeNotFound(w, "device not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get device", "device", id, "error", err)
		writeInternalError(w, "failed to get device")
		return
	}

	cmds := dev.Queue()
	if cmds == nil {
		cmds = []dispatch.ScheduledCommand{}
	}
	writeJSON(w, http.StatusOK, QueueResponse{
		DeviceID: id,
		Commands: cmds,
		Count:    len(cmds),
	})
}
