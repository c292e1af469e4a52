package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
)

const maxDispatchBody = 1 << 20

// DispatchRequest is the body of POST /v1/events.
type DispatchRequest struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Source string         `json:"source"`
	PairID string         `json:"pairId,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// SharedStateDTO is one resolved shared state.
type SharedStateDTO struct {
	Name   string     `json:"name"`
	Status string     `json:"status"`
	Data   event.Data `json:"data,omitempty"`
}

// QueueDTO describes one hit queue.
type QueueDTO struct {
	Table     string `json:"table"`
	Size      int64  `json:"size"`
	Suspended bool   `json:"suspended"`
}

// PurgeResponse reports a queue purge.
type PurgeResponse struct {
	Table   string `json:"table"`
	Deleted int64  `json:"deleted"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.Success(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"hub":    s.hub.Name(),
		"booted": s.hub.IsBooted(),
		"events": s.hub.EventCount(),
	})
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	s.Success(w, http.StatusOK, s.hub.Modules())
}

func (s *Server) handleSharedStateNames(w http.ResponseWriter, r *http.Request) {
	s.Success(w, http.StatusOK, s.hub.SharedStateNames())
}

func (s *Server) handleSharedState(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !slices.Contains(s.hub.SharedStateNames(), name) {
		s.Error(w, r, errors.NotFoundError("shared state not found").WithContext("name", name).Build())
		return
	}
	slot := s.hub.GetSharedEventState(name, nil)
	dto := SharedStateDTO{Name: name, Status: slot.Kind().String()}
	if d, ok := slot.Value(); ok && slot.IsData() {
		dto.Data = d
	}
	s.Success(w, http.StatusOK, dto)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDispatchBody))
	if err := dec.Decode(&req); err != nil {
		s.Error(w, r, errors.WrapError(err, errors.CategoryValidation, "invalid event body").Build())
		return
	}
	if strings.TrimSpace(req.Type) == "" || strings.TrimSpace(req.Source) == "" {
		s.Error(w, r, errors.ValidationError("event type and source are required").Build())
		return
	}
	name := req.Name
	if name == "" {
		name = "Admin API Event"
	}
	b := event.NewBuilder(name, event.NewType(req.Type), event.NewSource(req.Source)).SetData(event.Data(req.Data))
	if req.PairID != "" {
		b.SetPairID(req.PairID)
	}
	e, err := b.Build()
	if err != nil {
		s.Error(w, r, err)
		return
	}
	out, err := s.hub.Dispatch(e)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	s.logger.Info("Event dispatched through admin API", logfields.EventName(out.Name()), logfields.EventNumber(out.Number()))
	s.Success(w, http.StatusAccepted, out)
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	out := []QueueDTO{}
	for _, q := range s.queues() {
		out = append(out, QueueDTO{Table: q.Table(), Size: q.Size(), Suspended: q.IsSuspended()})
	}
	s.Success(w, http.StatusOK, out)
}

func (s *Server) handlePurgeQueue(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	for _, q := range s.queues() {
		if q.Table() != table {
			continue
		}
		n := q.Size()
		if !q.DeleteAllHits() {
			s.Error(w, r, errors.StorageError("failed to purge queue").WithContext("table", table).Build())
			return
		}
		s.logger.Info("Hit queue purged", logfields.Table(table), slog.Int64("deleted", n))
		s.Success(w, http.StatusOK, PurgeResponse{Table: table, Deleted: n})
		return
	}
	s.Error(w, r, errors.NotFoundError("queue not found").WithContext("table", table).Build())
}
