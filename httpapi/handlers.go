package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mwangi/occlusion/id"
)

type reloadStatusResponse struct {
	LastSuccess         string `json:"lastSuccess,omitempty"`
	LastChanged         bool   `json:"lastChanged"`
	LastError           string `json:"lastError,omitempty"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
}

type checkRequest struct {
	UUID string `json:"uuid"`
	Mask int    `json:"mask"`
}

type checkResponse struct {
	Visible bool `json:"visible"`
}

type checkBatchRequest struct {
	UUIDs []string `json:"uuids"`
	Mask  int      `json:"mask"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Entries int    `json:"entries"`
}

type statsResponse struct {
	Entries      int            `json:"entries"`
	Distribution map[string]int `json:"distribution"`
}

type opaEnvelope[T any] struct {
	Input T `json:"input"`
}

type opaResultResponse struct {
	Result bool `json:"result"`
}

// parseMask validates that mask fits the wire-level [0,255] range; JSON
// numbers decode to int first so an out-of-range or negative value is
// rejected here rather than silently truncated into a uint8.
func parseMask(mask int) (uint8, bool) {
	if mask < 0 || mask > 255 {
		return 0, false
	}
	return uint8(mask), true
}

func handleCheck(r Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var in checkRequest
		if err := decodeJSON(req, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		uuid, err := id.ParseUUID(in.UUID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid uuid")
			return
		}
		mask, ok := parseMask(in.Mask)
		if !ok {
			writeError(w, http.StatusBadRequest, "mask must be in [0,255]")
			return
		}
		writeJSON(w, http.StatusOK, checkResponse{Visible: r.IsVisible(uuid, mask)})
	}
}

func handleCheckBatch(r Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var in checkBatchRequest
		if err := decodeJSON(req, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		mask, ok := parseMask(in.Mask)
		if !ok {
			writeError(w, http.StatusBadRequest, "mask must be in [0,255]")
			return
		}
		uuids, err := parseUUIDs(in.UUIDs)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid uuid")
			return
		}
		writeJSON(w, http.StatusOK, checkResponse{Visible: r.CheckBatch(uuids, mask)})
	}
}

func handleHealth(r Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Entries: r.Len()})
	}
}

func handleStats(r Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		dist := make(map[string]int, len(r.VisibilityDistribution()))
		for level, count := range r.VisibilityDistribution() {
			dist[strconv.Itoa(int(level))] = count
		}
		writeJSON(w, http.StatusOK, statsResponse{Entries: r.Len(), Distribution: dist})
	}
}

func handleOPAVisible(r Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var in opaEnvelope[checkRequest]
		if err := decodeJSON(req, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		uuid, err := id.ParseUUID(in.Input.UUID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid uuid")
			return
		}
		mask, ok := parseMask(in.Input.Mask)
		if !ok {
			writeError(w, http.StatusBadRequest, "mask must be in [0,255]")
			return
		}
		writeJSON(w, http.StatusOK, opaResultResponse{Result: r.IsVisible(uuid, mask)})
	}
}

func handleOPAVisibleBatch(r Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var in opaEnvelope[checkBatchRequest]
		if err := decodeJSON(req, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		mask, ok := parseMask(in.Input.Mask)
		if !ok {
			writeError(w, http.StatusBadRequest, "mask must be in [0,255]")
			return
		}
		uuids, err := parseUUIDs(in.Input.UUIDs)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid uuid")
			return
		}
		writeJSON(w, http.StatusOK, opaResultResponse{Result: r.CheckBatch(uuids, mask)})
	}
}

func handleReloadStatus(sched ReloadStatuser) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		lastSuccess, lastChanged, lastError, failures := sched.ReloadStatus()
		out := reloadStatusResponse{LastChanged: lastChanged, LastError: lastError, ConsecutiveFailures: failures}
		if !lastSuccess.IsZero() {
			out.LastSuccess = lastSuccess.Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func parseUUIDs(raw []string) ([]id.UUID, error) {
	uuids := make([]id.UUID, len(raw))
	for i, s := range raw {
		u, err := id.ParseUUID(s)
		if err != nil {
			return nil, err
		}
		uuids[i] = u
	}
	return uuids, nil
}
