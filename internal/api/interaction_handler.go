package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ListRunInteractions возвращает взаимодействия run.
// GET /api/v1/runs/{id}/interactions
func (h *Handler) ListRunInteractions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.existingRun(w, r)
	if !ok {
		return
	}

	items, err := h.interactions.ListByRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]InteractionResponse, len(items))
	for i, it := range items {
		result[i] = InteractionFromDomain(it)
	}

	List(w, result, len(result))
}

// GetInteractionPage отдаёт переписанную страницу взаимодействия.
// GET /runs/{id}/proxy/{interaction}
func (h *Handler) GetInteractionPage(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	uniqueID := r.PathValue("interaction")
	it, err := h.interactions.GetByUniqueID(r.Context(), id, uniqueID)
	if handleRunError(w, h.logger, err, runErrorMapping{runID: id, interactionID: uniqueID, notFound: "interaction not found"}) {
		return
	}
	if !it.HasPage() {
		ErrorWith(w, http.StatusNotFound, ErrorDetail{
			Code:          ErrCodePageNotReady,
			Message:       "interaction page is not available yet",
			RunID:         id.String(),
			InteractionID: uniqueID,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(it.Page))
}

// ReplyInteraction сохраняет ответ пользователя. На сервер его
// пересылает воркер при следующем опросе.
// POST /runs/{id}/proxy/{interaction}
func (h *Handler) ReplyInteraction(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Feed) == "" || req.Value == "" {
		BadRequest(w, "feed and value are required")
		return
	}

	uniqueID := r.PathValue("interaction")
	err := h.interactions.SetReply(r.Context(), id, uniqueID, req.Feed, req.Value)
	m := runErrorMapping{runID: id, interactionID: uniqueID, notFound: "interaction not found", invalidState: ErrCodeAlreadyReplied}
	if handleRunError(w, h.logger, err, m) {
		return
	}

	Accepted(w, map[string]string{"id": uniqueID, "status": "accepted"})
}
