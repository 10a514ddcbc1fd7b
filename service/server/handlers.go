package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/brojonat/solboard/service/config"
	"github.com/brojonat/solboard/service/db"
	"github.com/brojonat/solboard/service/lookup"
	"github.com/brojonat/solboard/service/ranking"
	"github.com/brojonat/solboard/service/solana"
	"github.com/mr-tron/base58"
)

const (
	maxRequestBodySize = 1 << 10 // a lookup request is a single address
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
	maxSignatureLimit  = 1000
	defaultLookupsPage = 50
	maxLookupsPage     = 500

	// sessionCookie carries the lookup session id.
	sessionCookie = "solboard_session"
)

// handleWalletHistory returns a handler that fetches a wallet's recent history
// directly, outside of any lookup session.
// GET /api/v1/wallets/{address}/history?limit=&batch_size=&delay=&policy=
func handleWalletHistory(fetcher lookup.Fetcher, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		opts, err := historyOptionsFromQuery(cfg.HistoryOptions(), r.URL.Query())
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		if cfg.FetchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
			defer cancel()
		}

		snapshot, err := fetcher.FetchWalletHistory(ctx, address, opts)
		if err != nil {
			logger.WarnContext(ctx, "history fetch failed", "address", address, "error", err)
			writeError(w, err.Error(), fetchErrorStatus(err))
			return
		}

		writeJSON(w, snapshot, http.StatusOK)
	})
}

// historyOptionsFromQuery overlays query parameters on the configured defaults.
func historyOptionsFromQuery(opts solana.HistoryOptions, query url.Values) (solana.HistoryOptions, error) {
	if v := query.Get("limit"); v != "" {
		limit, err := parseIntParam("limit", v, 1, maxSignatureLimit)
		if err != nil {
			return opts, err
		}
		opts.SignatureLimit = limit
	}
	if v := query.Get("batch_size"); v != "" {
		size, err := parseIntParam("batch_size", v, 1, maxSignatureLimit)
		if err != nil {
			return opts, err
		}
		opts.BatchSize = size
	}
	if v := query.Get("delay"); v != "" {
		delay, err := time.ParseDuration(v)
		if err != nil {
			return opts, errorf("invalid delay parameter: %v", err)
		}
		opts.InterBatchDelay = delay
	}
	if v := query.Get("policy"); v != "" {
		policy, err := solana.ParsePolicy(v)
		if err != nil {
			return opts, errorf("invalid policy parameter: %v", err)
		}
		opts.Policy = policy
	}
	return opts, nil
}

// fetchErrorStatus maps a history fetch failure to an HTTP status.
func fetchErrorStatus(err error) int {
	switch {
	case errors.Is(err, solana.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, solana.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type lookupRequest struct {
	Address string `json:"address"`
}

type lookupResponse struct {
	SessionID string       `json:"session_id"`
	State     lookup.State `json:"state"`
}

// sessionView resolves the caller's lookup session from its cookie and
// (re)issues the cookie when a new session was created.
func sessionView(w http.ResponseWriter, r *http.Request, sessions *lookup.Sessions) *lookup.View {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	view := sessions.GetOrCreate(id)
	if view.ID() != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    view.ID(),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return view
}

// handleSubmitLookup returns a handler that runs a lookup in the caller's
// session. A lookup that lost to a newer one in the same session answers 409
// with the winner's state.
// POST /api/v1/lookup
func handleSubmitLookup(sessions *lookup.Sessions, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req lookupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		address := strings.TrimSpace(req.Address)
		if address == "" {
			writeError(w, "address is required", http.StatusBadRequest)
			return
		}
		if len(address) > maxAddressLength {
			writeError(w, fmt.Sprintf("address too long: maximum length is %d characters", maxAddressLength), http.StatusBadRequest)
			return
		}

		view := sessionView(w, r, sessions)

		// The lookup outlives a dropped connection so the session still
		// commits it; the view's own timeout bounds it.
		state, err := view.Submit(context.WithoutCancel(r.Context()), address)

		status := http.StatusOK
		switch {
		case err == nil:
		case errors.Is(err, lookup.ErrSuperseded):
			status = http.StatusConflict
		default:
			status = fetchErrorStatus(err)
			logger.DebugContext(r.Context(), "lookup failed", "session", view.ID(), "address", address, "error", err)
		}
		writeJSON(w, lookupResponse{SessionID: view.ID(), State: state}, status)
	})
}

// handleGetLookup returns the caller's current lookup state.
// GET /api/v1/lookup
func handleGetLookup(sessions *lookup.Sessions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		view := sessionView(w, r, sessions)
		writeJSON(w, lookupResponse{SessionID: view.ID(), State: view.State()}, http.StatusOK)
	})
}

type lookupRecordResponse struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Generation   int64     `json:"generation"`
	Address      string    `json:"address"`
	Success      bool      `json:"success"`
	Error        *string   `json:"error,omitempty"`
	Balance      string    `json:"balance"`
	Transactions int       `json:"transactions"`
	Dropped      int       `json:"dropped"`
	DurationMS   int64     `json:"duration_ms"`
	CompletedAt  time.Time `json:"completed_at"`
}

func lookupToResponse(l *db.Lookup) lookupRecordResponse {
	return lookupRecordResponse{
		ID:           l.ID,
		SessionID:    l.SessionID,
		Generation:   l.Generation,
		Address:      l.Address,
		Success:      l.Success,
		Error:        l.Error,
		Balance:      solana.SOL(l.Balance).String(),
		Transactions: l.Transactions,
		Dropped:      l.Dropped,
		DurationMS:   l.Duration.Milliseconds(),
		CompletedAt:  l.CompletedAt,
	}
}

// handleListLookups returns a handler that lists committed lookups, newest first.
// GET /api/v1/lookups?address={address}&limit={limit}
func handleListLookups(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		address := query.Get("address")
		if address != "" {
			if err := validateFilterAddress(address); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		limit := defaultLookupsPage
		if v := query.Get("limit"); v != "" {
			parsed, err := parseIntParam("limit", v, 1, maxLookupsPage)
			if err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		lookups, err := store.ListLookups(r.Context(), db.ListLookupsParams{Address: address, Limit: int32(limit)})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list lookups", "error", err)
			writeError(w, "failed to list lookups", http.StatusInternalServerError)
			return
		}

		resp := make([]lookupRecordResponse, 0, len(lookups))
		for _, l := range lookups {
			resp = append(resp, lookupToResponse(l))
		}
		writeJSON(w, map[string]interface{}{
			"lookups": resp,
			"count":   len(resp),
		}, http.StatusOK)
	})
}

// resolveQuery reads a leaderboard query from the request. A toggle
// parameter selects or deselects one metric against the requested selection.
func resolveQuery(board *ranking.Board, values url.Values) (ranking.Query, error) {
	q := ranking.Query{
		Text:    strings.TrimSpace(values.Get("q")),
		Sort:    strings.TrimSpace(values.Get("sort")),
		Display: metricList(values["metrics"]),
	}

	toggle := strings.TrimSpace(values.Get("toggle"))
	if toggle == "" {
		return q, nil
	}

	sel, err := board.Selection(q)
	if err != nil {
		return q, err
	}
	if sel.IsSelected(toggle) {
		err = sel.Deselect(toggle)
	} else {
		err = sel.Select(toggle)
	}
	if err != nil {
		return q, err
	}
	q.Sort = sel.Sort()
	q.Display = sel.Display()
	return q, nil
}

// metricList accepts both repeated and comma separated metric parameters.
func metricList(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func queryErrorStatus(err error) int {
	if errors.Is(err, ranking.ErrUnknownMetric) || errors.Is(err, ranking.ErrDuplicateMetric) || errors.Is(err, ranking.ErrLastSortMetric) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// handleListUsers returns a handler that ranks creators.
// GET /api/v1/users?q={text}&sort={metric}&metrics={a,b}&toggle={metric}
func handleListUsers(board *ranking.Board, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := resolveQuery(board, r.URL.Query())
		if err != nil {
			writeError(w, err.Error(), queryErrorStatus(err))
			return
		}

		page, err := board.Query(r.Context(), q)
		if err != nil {
			status := queryErrorStatus(err)
			if status == http.StatusInternalServerError {
				logger.ErrorContext(r.Context(), "failed to rank users", "error", err)
				writeError(w, "failed to rank users", status)
				return
			}
			writeError(w, err.Error(), status)
			return
		}

		writeJSON(w, page, http.StatusOK)
	})
}

// handleMetricDefinitions returns the metric catalogue grouped by category.
// GET /api/v1/metric-definitions
func handleMetricDefinitions(registry *ranking.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"categories":      registry.Categories(),
			"default_sort":    ranking.DefaultSortMetric,
			"default_display": ranking.DefaultDisplay,
		}, http.StatusOK)
	})
}

// Helper functions

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress performs cheap syntactic checks before an address reaches
// the fetch pipeline. Decoding is left to the solana package so its error
// text reaches the caller unchanged.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	// Check for null bytes and control characters
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	return nil
}

// validateFilterAddress checks an address used as a database filter or a
// NATS subject token. Those never pass through the decoder, so the base58
// alphabet is enforced here.
func validateFilterAddress(address string) error {
	if err := validateAddress(address); err != nil {
		return err
	}

	// Valid Solana address characters: base58 (no 0, O, I, l)
	if _, err := base58.Decode(address); err != nil {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

func parseIntParam(name, value string, lo, hi int) (int, error) {
	var parsed int
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil {
		return 0, errorf("invalid %s parameter: must be an integer", name)
	}
	if parsed < lo {
		return 0, errorf("%s must be at least %d", name, lo)
	}
	if parsed > hi {
		return 0, errorf("%s cannot exceed %d", name, hi)
	}
	return parsed, nil
}

func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
