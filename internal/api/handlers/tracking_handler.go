package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/zatekoja/productsearch/internal/application/services"
	"github.com/zatekoja/productsearch/internal/domain/entities"
	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
)

// maxTrackingBody bounds tracking payloads.
const maxTrackingBody = 16 << 10

// Tracker defines the fire-and-forget tracking operations used by the handler.
type Tracker interface {
	TrackView(ctx context.Context, in services.InteractionInput)
	TrackCartAdd(ctx context.Context, in services.InteractionInput)
	TrackCartRemove(ctx context.Context, in services.InteractionInput)
	TrackFavorite(ctx context.Context, in services.InteractionInput)
	TrackPurchase(ctx context.Context, in services.InteractionInput)
	TrackSearch(ctx context.Context, in services.SearchInput)
	TrackSearchClick(ctx context.Context, click entities.SearchClick)
	TrackPageExit(ctx context.Context, in services.PageExitInput)
}

// TrackingHandler accepts client interaction events. Every endpoint answers
// 202 Accepted; malformed events are logged and dropped.
type TrackingHandler struct {
	tracker Tracker
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(tracker Tracker) *TrackingHandler {
	return &TrackingHandler{tracker: tracker}
}

type interactionRequest struct {
	UserID    string  `json:"user_id"`
	SessionID string  `json:"session_id"`
	ProductID string  `json:"product_id"`
	From      string  `json:"from"`
	Quantity  int     `json:"quantity"`
	Source    string  `json:"source"`
	Reason    string  `json:"reason"`
	OrderID   string  `json:"order_id"`
	Price     float64 `json:"price"`
}

func (req interactionRequest) input() services.InteractionInput {
	return services.InteractionInput{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		ProductID: req.ProductID,
		Metadata: entities.InteractionMetadata{
			From:     req.From,
			Quantity: req.Quantity,
			Source:   req.Source,
			Reason:   req.Reason,
			OrderID:  req.OrderID,
			Price:    req.Price,
		},
	}
}

type searchRequest struct {
	UserID       string `json:"user_id"`
	SessionID    string `json:"session_id"`
	Query        string `json:"query"`
	ResultsCount int    `json:"results_count"`
}

type searchClickRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	ProductID string `json:"product_id"`
	Position  int    `json:"position"`
}

type pageExitRequest struct {
	SessionID   string `json:"session_id"`
	ProductID   string `json:"product_id"`
	Duration    int    `json:"duration"`
	ScrollDepth *int   `json:"scroll_depth"`
}

// decodeEvent reads the JSON body into dst. It reports false after
// acknowledging a malformed body.
func decodeEvent(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxTrackingBody)).Decode(dst)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn().
			Err(err).
			Str("path", r.URL.Path).
			Msg("dropping malformed tracking event")
		accepted(w)
		return false
	}
	return true
}

func accepted(w http.ResponseWriter) {
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *TrackingHandler) interaction(track func(context.Context, services.InteractionInput)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req interactionRequest
		if !decodeEvent(w, r, &req) {
			return
		}
		track(r.Context(), req.input())
		accepted(w)
	}
}

// TrackView handles POST /api/track/view
func (h *TrackingHandler) TrackView(w http.ResponseWriter, r *http.Request) {
	h.interaction(h.tracker.TrackView)(w, r)
}

// TrackCartAdd handles POST /api/track/cart-add
func (h *TrackingHandler) TrackCartAdd(w http.ResponseWriter, r *http.Request) {
	h.interaction(h.tracker.TrackCartAdd)(w, r)
}

// TrackCartRemove handles POST /api/track/cart-remove
func (h *TrackingHandler) TrackCartRemove(w http.ResponseWriter, r *http.Request) {
	h.interaction(h.tracker.TrackCartRemove)(w, r)
}

// TrackFavorite handles POST /api/track/favorite
func (h *TrackingHandler) TrackFavorite(w http.ResponseWriter, r *http.Request) {
	h.interaction(h.tracker.TrackFavorite)(w, r)
}

// TrackPurchase handles POST /api/track/purchase
func (h *TrackingHandler) TrackPurchase(w http.ResponseWriter, r *http.Request) {
	h.interaction(h.tracker.TrackPurchase)(w, r)
}

// TrackSearch handles POST /api/track/search
func (h *TrackingHandler) TrackSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeEvent(w, r, &req) {
		return
	}
	h.tracker.TrackSearch(r.Context(), services.SearchInput{
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		Query:        req.Query,
		ResultsCount: req.ResultsCount,
	})
	accepted(w)
}

// TrackSearchClick handles POST /api/track/search-click
func (h *TrackingHandler) TrackSearchClick(w http.ResponseWriter, r *http.Request) {
	var req searchClickRequest
	if !decodeEvent(w, r, &req) {
		return
	}
	h.tracker.TrackSearchClick(r.Context(), entities.SearchClick{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Query:     req.Query,
		ProductID: req.ProductID,
		Position:  req.Position,
	})
	accepted(w)
}

// TrackPageExit handles POST /api/track/page-exit
func (h *TrackingHandler) TrackPageExit(w http.ResponseWriter, r *http.Request) {
	var req pageExitRequest
	if !decodeEvent(w, r, &req) {
		return
	}
	h.tracker.TrackPageExit(r.Context(), services.PageExitInput{
		SessionID:   req.SessionID,
		ProductID:   req.ProductID,
		Duration:    req.Duration,
		ScrollDepth: req.ScrollDepth,
	})
	accepted(w)
}
