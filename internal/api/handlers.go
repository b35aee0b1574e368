package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rejectly/rejectly/internal/app/engagement"
	"github.com/rejectly/rejectly/internal/domain"
)

// ─── Quests ─────────────────────────────────────────────────────────────────

func (s *Server) handleCreateQuest(w http.ResponseWriter, r *http.Request) {
	var tmpl domain.QuestTemplate
	if err := decode(r, &tmpl); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.svc.Tracker.CreateTemplate(r.Context(), callerID(r), tmpl)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleStartQuest(w http.ResponseWriter, r *http.Request) {
	inst, err := s.svc.Tracker.StartQuest(r.Context(), callerID(r), chi.URLParam(r, "questID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	insts, err := s.svc.Tracker.Instances(r.Context(), callerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"instances": insts})
}

type actionRequest struct {
	Action domain.Action `json:"action"`
}

func (s *Server) handleRecordAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.svc.Tracker.RecordUserAction(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Action)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Tracker.Profile(r.Context(), callerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := map[string]interface{}{"profile": p}
	if s.svc.Ledger != nil {
		if bal, err := s.svc.Ledger.Balance(r.Context(), p.UserID); err == nil {
			resp["balance"] = bal
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Badges ─────────────────────────────────────────────────────────────────

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := s.svc.Badges.Classify(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user_quest_id": id, "badges": b})
}

type badgeBatchRequest struct {
	IDs []string `json:"user_quest_ids"`
}

func (s *Server) handleBadgeBatch(w http.ResponseWriter, r *http.Request) {
	var req badgeBatchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.svc.Badges.ClassifyBatch(r.Context(), req.IDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"badges": out})
}

// ─── Challenges ─────────────────────────────────────────────────────────────

type enrollRequest struct {
	Category string `json:"category"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.svc.Challenges.Enroll(r.Context(), callerID(r), req.Category)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Challenges.View(r.Context(), chi.URLParam(r, "id"), s.now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if v.UserID != callerID(r) {
		writeDomainError(w, domain.ErrChallengeNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ─── Live Suggestions ───────────────────────────────────────────────────────

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req engagement.SuggestRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.SessionID = chi.URLParam(r, "sessionID")
	req.SuggesterID = callerID(r)
	sug, err := s.svc.Suggestions.Suggest(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sug)
}

func (s *Server) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Suggestions.ListPending(r.Context(), callerID(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": list})
}

type respondRequest struct {
	Action domain.ResponseAction `json:"action"`
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sug, err := s.svc.Suggestions.Respond(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Action)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sug)
}

// ─── Notifications ──────────────────────────────────────────────────────────

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Dispatcher.Recent(r.Context(), callerID(r), queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": list})
}

type preferenceRequest struct {
	Type    domain.NotificationType `json:"type"`
	Enabled bool                    `json:"enabled"`
}

func (s *Server) handlePreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Dispatcher.SetPreference(r.Context(), callerID(r), req.Type, req.Enabled); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type deviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Dispatcher.RegisterDevice(r.Context(), callerID(r), req.Token, req.Platform); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ─── Credits ────────────────────────────────────────────────────────────────

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	user := callerID(r)
	if user == "" {
		writeDomainError(w, domain.ErrMissingUser)
		return
	}
	bal, err := s.svc.Ledger.Balance(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	hist, err := s.svc.Ledger.History(r.Context(), user, queryInt(r, "limit", 20))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"balance": bal, "entries": hist})
}

// ─── Scheduler ──────────────────────────────────────────────────────────────

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": s.svc.Runner.Statuses()})
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Runner.RunNow(r.Context(), chi.URLParam(r, "job"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
