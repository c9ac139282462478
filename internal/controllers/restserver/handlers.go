package restserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/chrissnell/curle/internal/storage"
	"github.com/chrissnell/curle/internal/storage/memory"
	"github.com/chrissnell/curle/pkg/responseformat"
	"github.com/gorilla/mux"
)

// DefaultRecordLimit is the number of records returned without ?limit
const DefaultRecordLimit = 100

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// StreamsResponse lists the buffered streams
type StreamsResponse struct {
	Streams []storage.Stream `json:"streams"`
}

// RecordsResponse holds the latest records of one stream
type RecordsResponse struct {
	Stream  storage.Stream   `json:"stream"`
	Header  []string         `json:"header"`
	Records []storage.Record `json:"records"`
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, message string) {
	h.formatter.WriteResponseWithStatus(w, req, status, map[string]string{"error": message}, nil)
}

func (h *Handlers) lookupStream(name string) (storage.Stream, bool) {
	for _, s := range h.controller.source.Streams() {
		if s.Name == name {
			return s, true
		}
	}
	return storage.Stream{}, false
}

// GetStreams returns every stream with its columns
func (h *Handlers) GetStreams(w http.ResponseWriter, req *http.Request) {
	streams := h.controller.source.Streams()
	if streams == nil {
		streams = []storage.Stream{}
	}
	if err := h.formatter.WriteResponse(w, req, StreamsResponse{Streams: streams}, nil); err != nil {
		h.controller.logger.Errorf("error encoding streams: %v", err)
	}
}

// GetRecords returns the latest records of a stream, oldest first
func (h *Handlers) GetRecords(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["stream"]

	limit := DefaultRecordLimit
	if l := req.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			h.writeError(w, req, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	stream, ok := h.lookupStream(name)
	if !ok {
		h.writeError(w, req, http.StatusNotFound, "stream not found")
		return
	}

	records, err := h.controller.source.Records(name, limit)
	if err != nil {
		h.controller.logger.Errorf("error reading records of %s: %v", name, err)
		h.writeError(w, req, http.StatusInternalServerError, "could not read records")
		return
	}

	resp := RecordsResponse{Stream: stream, Header: stream.Header(), Records: records}
	if err := h.formatter.WriteResponse(w, req, resp, nil); err != nil {
		h.controller.logger.Errorf("error encoding records: %v", err)
	}
}

// GetSummary returns statistics of one column of a stream, the first by default
func (h *Handlers) GetSummary(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["stream"]

	column := 0
	if c := req.URL.Query().Get("column"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 0 {
			h.writeError(w, req, http.StatusBadRequest, "column must be a non-negative integer")
			return
		}
		column = n
	}

	summary, err := h.controller.source.Summarize(name, column)
	switch {
	case errors.Is(err, memory.ErrUnknownStream):
		h.writeError(w, req, http.StatusNotFound, "stream not found")
		return
	case err != nil:
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.formatter.WriteResponse(w, req, summary, nil); err != nil {
		h.controller.logger.Errorf("error encoding summary: %v", err)
	}
}

// GetHealth returns the health of every storage backend
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	health := map[string]storage.Health{}
	if h.controller.health != nil {
		health = h.controller.health.GetAllHealth()
	}

	status := http.StatusOK
	for _, v := range health {
		if v.Status != storage.StatusHealthy {
			status = http.StatusServiceUnavailable
		}
	}

	if err := h.formatter.WriteResponseWithStatus(w, req, status, health, nil); err != nil {
		h.controller.logger.Errorf("error encoding health: %v", err)
	}
}

// GetHTTPLogs returns the most recent requests served by this controller
func (h *Handlers) GetHTTPLogs(w http.ResponseWriter, req *http.Request) {
	entries := h.controller.httpLog.Entries()
	if err := h.formatter.WriteResponse(w, req, map[string]any{"entries": entries}, nil); err != nil {
		h.controller.logger.Errorf("error encoding HTTP logs: %v", err)
	}
}
