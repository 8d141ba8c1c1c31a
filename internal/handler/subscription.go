package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"

	"github.com/sakif/menu-subscriptions/internal/apperror"
	"github.com/sakif/menu-subscriptions/internal/model"
	"github.com/sakif/menu-subscriptions/internal/service"
)

// maxFormBytes caps request bodies. A subscribe form is one short field.
const maxFormBytes = 4 << 10

// SubscriptionManager is the part of service.SubscriptionService the public
// endpoints use. Accepting an interface lets tests pass a fake.
type SubscriptionManager interface {
	Subscribe(ctx context.Context, rawEmail string) (*model.Subscriber, error)
	Unsubscribe(ctx context.Context, token string) error
	PendingUnsubscribe(ctx context.Context, token string) (*service.Pending, error)
}

// SubscriptionHandler serves the public subscribe and unsubscribe endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSubscribe        → POST /subscribe
//   - HandleUnsubscribePage  → GET  /unsubscribe?token=...
//   - HandleUnsubscribe      → POST /unsubscribe
//   - HandleHealth           → GET  /healthz
type SubscriptionHandler struct {
	subs   SubscriptionManager
	logger *slog.Logger

	// confirm makes GET /unsubscribe read-only. When false the GET commits
	// the unsubscribe directly, like the old single-click links.
	confirm bool
}

func NewSubscriptionHandler(subs SubscriptionManager, confirm bool, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subs:    subs,
		confirm: confirm,
		logger:  logger,
	}
}

type subscribeRequest struct {
	Email string `json:"email"`
}

type subscribeResponse struct {
	Status string `json:"status"`
	Email  string `json:"email"`
}

type unsubscribeResponse struct {
	Status string `json:"status"`
	Email  string `json:"email,omitempty"` // masked, confirmation step only
	Token  string `json:"token,omitempty"` // echoed back for the confirming POST
	Action string `json:"action,omitempty"`
}

// HandleSubscribe registers an email address for the daily menu.
//
// HTTP: POST /subscribe
// REQUEST: form field "email", or a JSON body {"email": "..."}
//
// The unsubscribe token is deliberately absent from the response. It only
// ever reaches the subscriber through the emails themselves.
func (h *SubscriptionHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	email, err := readEmail(r)
	if err != nil {
		h.logger.Warn("unreadable subscribe request", slog.String("error", err.Error()))
		writeError(w, apperror.InvalidEmail("request body must carry an email field"))
		return
	}

	sub, err := h.subs.Subscribe(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, subscribeResponse{
		Status: "subscribed",
		Email:  sub.Email,
	})
}

// readEmail accepts both a browser form post and a JSON API call.
func readEmail(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req subscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", err
		}
		return req.Email, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostFormValue("email"), nil
}

// HandleUnsubscribePage is the link target in every email.
//
// HTTP: GET /unsubscribe?token=...
//
// Mail clients and link scanners fetch URLs on their own, so by default this
// only describes the pending action and the actual change happens on POST.
// An unknown or missing token gets the same confirm_required answer.
func (h *SubscriptionHandler) HandleUnsubscribePage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	if !h.confirm {
		h.commitUnsubscribe(w, r, token)
		return
	}

	pending, err := h.subs.PendingUnsubscribe(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := unsubscribeResponse{
		Status: "confirm_required",
		Action: "POST /unsubscribe",
		Token:  pending.Token,
	}
	if pending.Known && pending.Active {
		resp.Email = pending.MaskedEmail
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleUnsubscribe commits an unsubscribe.
//
// HTTP: POST /unsubscribe
// REQUEST: "token" as a form field or query parameter. The query form
// covers RFC 8058 one-click posts, whose body is only
// "List-Unsubscribe=One-Click".
func (h *SubscriptionHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	h.commitUnsubscribe(w, r, r.FormValue("token"))
}

func (h *SubscriptionHandler) commitUnsubscribe(w http.ResponseWriter, r *http.Request, token string) {
	if err := h.subs.Unsubscribe(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unsubscribeResponse{Status: "unsubscribed"})
}

// HandleHealth reports liveness. It does not touch the store.
//
// HTTP: GET /healthz
func (h *SubscriptionHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
