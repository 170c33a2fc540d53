package httpapi

import (
	"net/http"

	"retail-backoffice/internal/ability"

	"go.uber.org/zap"
)

type AbilityHandler struct {
	accesses AccessLoader
	logger   *zap.Logger
}

func NewAbilityHandler(accesses AccessLoader, logger *zap.Logger) *AbilityHandler {
	return &AbilityHandler{accesses: accesses, logger: logger}
}

// Rules handles GET /api/v1/abilities
func (h *AbilityHandler) Rules(w http.ResponseWriter, r *http.Request) {
	actor := resolveActor(w, r, h.accesses, h.logger)
	if actor == nil {
		return
	}
	rules := actor.BuildAbilityRules()
	if rules == nil {
		rules = []ability.Rule{}
	}
	writeJSON(w, http.StatusOK, Ok(rules))
}

type checkRequest struct {
	Action  ability.Action `json:"action"`
	Subject string         `json:"subject"`
	Field   string         `json:"field,omitempty"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

// Check handles POST /api/v1/abilities/check
func (h *AbilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if req.Action == "" || req.Subject == "" {
		writeJSON(w, http.StatusBadRequest, Fail("action and subject are required"))
		return
	}
	actor := resolveActor(w, r, h.accesses, h.logger)
	if actor == nil {
		return
	}
	allowed := actor.Can(req.Action, req.Subject, req.Field)
	Metrics.ObserveAbility(string(req.Action), allowed)
	writeJSON(w, http.StatusOK, Ok(checkResponse{Allowed: allowed}))
}
