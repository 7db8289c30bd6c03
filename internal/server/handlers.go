package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helmfi/helm/internal/domain"
	"github.com/helmfi/helm/internal/modules/automation"
	"github.com/helmfi/helm/internal/modules/rebalancing"
	"github.com/helmfi/helm/internal/modules/risk"
)

const defaultMetricsDays = 90

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "helm",
	})
}

// createAutomationRequest is the wire form of an automation creation. The
// params payload is resolved against the declared type.
type createAutomationRequest struct {
	UserID    string          `json:"user_id"`
	Type      automation.Type `json:"type"`
	Frequency string          `json:"frequency,omitempty"`
	StartDate time.Time       `json:"start_date,omitempty"`
	EndDate   *time.Time      `json:"end_date,omitempty"`
	Params    json.RawMessage `json:"params"`
}

func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	var req createAutomationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.NewValidationError("body", "malformed JSON"))
		return
	}

	params, err := automation.UnmarshalParams(req.Type, req.Params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	a, err := s.scheduler.CreateAutomation(r.Context(), automation.CreateSpec{
		UserID:    req.UserID,
		Type:      req.Type,
		Frequency: automation.Frequency(req.Frequency),
		Params:    params,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, domain.NewValidationError("user_id", "is required"))
		return
	}

	automations, err := s.scheduler.ListByUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"automations": automations})
}

func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	a, err := s.scheduler.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePauseAutomation(w http.ResponseWriter, r *http.Request) {
	a, err := s.scheduler.Pause(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleResumeAutomation(w http.ResponseWriter, r *http.Request) {
	a, err := s.scheduler.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleCancelAutomation(w http.ResponseWriter, r *http.Request) {
	a, err := s.scheduler.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, domain.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = parsed
	}

	executions, err := s.scheduler.ListExecutions(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"executions": executions})
}

type riskAssessmentRequest struct {
	UserID    string               `json:"user_id"`
	Tolerance domain.RiskTolerance `json:"tolerance"`
}

func (s *Server) handleRiskAssessment(w http.ResponseWriter, r *http.Request) {
	var req riskAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.NewValidationError("body", "malformed JSON"))
		return
	}
	if req.UserID == "" {
		s.writeError(w, domain.NewValidationError("user_id", "is required"))
		return
	}

	portfolio, err := s.ledger.GetPortfolio(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	assessment, err := s.assessor.AssessPortfolioRisk(r.Context(), portfolio, req.Tolerance)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, assessment)
}

type rebalanceRequest struct {
	UserID            string               `json:"user_id"`
	Tolerance         domain.RiskTolerance `json:"tolerance"`
	TargetAllocations map[string]float64   `json:"target_allocations,omitempty"`
}

func (s *Server) handleRebalanceRecommendation(w http.ResponseWriter, r *http.Request) {
	var req rebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.NewValidationError("body", "malformed JSON"))
		return
	}
	if req.UserID == "" {
		s.writeError(w, domain.NewValidationError("user_id", "is required"))
		return
	}

	targets := req.TargetAllocations
	if len(targets) == 0 {
		profile, err := risk.ProfileFor(req.Tolerance)
		if err != nil {
			s.writeError(w, err)
			return
		}
		targets = rebalancing.OptimalAllocation(profile)
	}

	portfolio, err := s.ledger.GetPortfolio(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	recommendation, err := s.advisor.GenerateRebalanceRecommendation(r.Context(), portfolio, req.Tolerance, targets)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, recommendation)
}

func (s *Server) handleListScenarios(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"scenarios": s.tester.Scenarios()})
}

type stressTestRequest struct {
	UserID   string `json:"user_id"`
	Scenario string `json:"scenario,omitempty"`
}

func (s *Server) handleStressTest(w http.ResponseWriter, r *http.Request) {
	var req stressTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.NewValidationError("body", "malformed JSON"))
		return
	}
	if req.UserID == "" {
		s.writeError(w, domain.NewValidationError("user_id", "is required"))
		return
	}

	portfolio, err := s.ledger.GetPortfolio(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if req.Scenario != "" {
		result, err := s.tester.RunStressScenario(portfolio, req.Scenario)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
		return
	}

	summary, err := s.tester.RunAllScenarios(portfolio)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handlePerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, domain.NewValidationError("user_id", "is required"))
		return
	}

	days := defaultMetricsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, domain.NewValidationError("days", "must be a positive integer"))
			return
		}
		days = parsed
	}

	portfolio, err := s.ledger.GetPortfolio(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	transactions, err := s.ledger.GetTransactions(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	metrics := s.analyzer.CalculatePerformanceMetrics(transactions, portfolio.TotalValue, time.Duration(days)*24*time.Hour)
	s.writeJSON(w, http.StatusOK, metrics)
}

type projectionsRequest struct {
	CurrentValue        float64          `json:"current_value"`
	MonthlyContribution float64          `json:"monthly_contribution"`
	HorizonMonths       int              `json:"horizon_months"`
	ExpectedAPY         float64          `json:"expected_apy"`
	RiskLevel           domain.RiskLevel `json:"risk_level"`
}

func (s *Server) handleProjections(w http.ResponseWriter, r *http.Request) {
	var req projectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.NewValidationError("body", "malformed JSON"))
		return
	}

	projections, err := s.analyzer.GenerateProjections(
		req.CurrentValue, req.MonthlyContribution, req.HorizonMonths, req.ExpectedAPY, req.RiskLevel)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, projections)
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := s.backups.ListBackups(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"backups": backups})
}

func (s *Server) handleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if err := s.backups.Backup(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps engine errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case domain.IsValidationError(err), domain.IsConfigurationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, automation.ErrNotFound):
		status = http.StatusNotFound
	default:
		var ee *domain.ExecutionError
		if errors.As(err, &ee) && (ee.Kind == domain.ErrKindLedgerUnavailable || ee.Kind == domain.ErrKindProtocolUnavailable) {
			status = http.StatusBadGateway
		}
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
