package analysis

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/contrimap/contrimap/internal/api"
)

// RegisterRoutes mounts the analysis artifact routes.
func RegisterRoutes(r chi.Router, store *Store, pipeline *Pipeline) {
	r.Route("/api/analysis/{owner}/{name}", func(r chi.Router) {
		r.Get("/mindmap", handleMindMap(store))
		r.Get("/insights", handleInsights(store))
		r.Get("/issues/{issueNumber}/roadmap", handleIssueRoadmap(store, pipeline))
		r.Post("/pr-checklist", handlePRChecklist(store, pipeline))
	})
}

// completedRecord loads the record for the route's owner/name and writes
// the 404 envelope when it is absent or not yet completed.
func completedRecord(store *Store, w http.ResponseWriter, r *http.Request) *Record {
	fullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name")
	rec, err := store.GetByFullName(r.Context(), fullName)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if rec == nil || rec.Status != StatusCompleted {
		api.Error(w, http.StatusNotFound, "analysis not found for "+fullName)
		return nil
	}
	return rec
}

func handleMindMap(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := completedRecord(store, w, r)
		if rec == nil {
			return
		}
		if rec.MindMap == nil {
			api.Error(w, http.StatusNotFound, "mind map not available")
			return
		}
		api.OK(w, rec.MindMap)
	}
}

func handleInsights(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := completedRecord(store, w, r)
		if rec == nil {
			return
		}
		api.OK(w, map[string]any{
			"aiInsights":        rec.AIInsights,
			"contributionGuide": rec.ContributionGuide,
		})
	}
}

func handleIssueRoadmap(store *Store, pipeline *Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := completedRecord(store, w, r)
		if rec == nil {
			return
		}

		issueNumber, err := strconv.Atoi(chi.URLParam(r, "issueNumber"))
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid issue number")
			return
		}

		entry, cached, err := pipeline.RoadmapForIssue(r.Context(), rec, issueNumber)
		if err != nil {
			api.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if cached {
			api.OKCached(w, entry)
			return
		}
		api.OK(w, entry)
	}
}

type checklistRequest struct {
	Changes string `json:"changes"`
}

func handlePRChecklist(store *Store, pipeline *Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := completedRecord(store, w, r)
		if rec == nil {
			return
		}

		var req checklistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Changes == "" {
			api.Error(w, http.StatusBadRequest, "changes description is required")
			return
		}

		checklist, err := pipeline.ChecklistForChanges(r.Context(), rec, req.Changes)
		if err != nil {
			api.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.OK(w, checklist)
	}
}
