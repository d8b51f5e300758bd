// Package repos exposes the repository-facing API: triggering analyses,
// polling status, fetching records and discovering beginner issues.
package repos

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/contrimap/contrimap/internal/analysis"
	"github.com/contrimap/contrimap/internal/api"
	"github.com/contrimap/contrimap/internal/github"
	"github.com/contrimap/contrimap/internal/queue"
)

// IssueLister fetches beginner-labelled issues from the repository host.
type IssueLister interface {
	GetBeginnerIssues(ctx context.Context, owner, name string) ([]github.Issue, error)
}

// RegisterRoutes mounts the repository API routes.
func RegisterRoutes(r chi.Router, store *analysis.Store, jobs queue.Queue, issues IssueLister) {
	r.Route("/api/repos", func(r chi.Router) {
		r.Post("/analyze", handleAnalyze(store, jobs))
		r.Get("/analysis/{id}/status", handleStatus(store))
		r.Get("/search", handleSearch(store))
		r.Get("/{owner}/{name}", handleGet(store))
		r.Get("/{owner}/{name}/issues/beginner", handleBeginnerIssues(issues))
	})
}

type analyzeRequest struct {
	RepoURL string `json:"repoUrl"`
}

func handleAnalyze(store *analysis.Store, jobs queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RepoURL == "" {
			api.Error(w, http.StatusBadRequest, "repoUrl is required")
			return
		}

		owner, name, err := github.ParseRepoURL(req.RepoURL)
		if err != nil {
			api.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		rec, err := store.GetByURL(r.Context(), req.RepoURL)
		if err != nil {
			api.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		if rec != nil {
			switch rec.Status {
			case analysis.StatusCompleted:
				api.OKCached(w, rec)
				return
			case analysis.StatusPending, analysis.StatusProcessing:
				api.OK(w, map[string]any{"analysisId": rec.ID, "status": rec.Status})
				return
			}
			// failed: rerun under the existing record
			if err := store.MarkProcessing(r.Context(), rec.ID); err != nil {
				api.Error(w, http.StatusInternalServerError, err.Error())
				return
			}
		} else {
			rec, err = store.Create(r.Context(), req.RepoURL, owner, name)
			if err != nil {
				api.Error(w, http.StatusInternalServerError, err.Error())
				return
			}
		}

		job := queue.Job{AnalysisID: rec.ID, Owner: owner, Name: name}
		if err := jobs.Enqueue(r.Context(), job); err != nil {
			log.Printf("repos: enqueue failed for %s/%s: %v", owner, name, err)
			if serr := store.SetFailed(r.Context(), rec.ID, "could not queue analysis"); serr != nil {
				log.Printf("repos: marking %s failed: %v", rec.ID, serr)
			}
			api.Error(w, http.StatusInternalServerError, "could not queue analysis")
			return
		}

		api.OK(w, map[string]any{"analysisId": rec.ID, "status": analysis.StatusProcessing})
	}
}

func handleStatus(store *analysis.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			api.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			api.Error(w, http.StatusNotFound, "analysis not found")
			return
		}

		payload := map[string]any{"status": rec.Status}
		if rec.Error != "" {
			payload["error"] = rec.Error
		}
		if rec.LastAnalyzedAt != nil {
			payload["lastAnalyzedAt"] = rec.LastAnalyzedAt
		}
		api.OK(w, payload)
	}
}

func handleGet(store *analysis.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name")
		rec, err := store.GetByFullName(r.Context(), fullName)
		if err != nil {
			api.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			api.Error(w, http.StatusNotFound, "repository not analyzed: "+fullName)
			return
		}
		api.OK(w, rec)
	}
}

func handleBeginnerIssues(issues IssueLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")
		name := chi.URLParam(r, "name")

		list, err := issues.GetBeginnerIssues(r.Context(), owner, name)
		if err != nil {
			api.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.OK(w, list)
	}
}

func handleSearch(store *analysis.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if query == "" {
			api.Error(w, http.StatusBadRequest, "query is required")
			return
		}

		records, err := store.Search(r.Context(), query)
		if err != nil {
			api.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.OK(w, records)
	}
}
