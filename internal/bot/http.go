package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/purchase"
)

const (
	webhookPath = "/telegram-webhook"

	initDataMaxAge = 24 * time.Hour
)

type ctxKey int

const authUserKey ctxKey = iota

// HTTPServer serves the Mini App API and the Telegram webhook
type HTTPServer struct {
	bot             *Bot
	webhookMode     bool
	requireInitData bool
}

// NewHTTPServer creates a new HTTP server for the Mini App
func NewHTTPServer(bot *Bot, webhookMode, requireInitData bool) *HTTPServer {
	return &HTTPServer{
		bot:             bot,
		webhookMode:     webhookMode,
		requireInitData: requireInitData,
	}
}

// Handler builds the router with all routes and middleware
func (hs *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(hs.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(withCORS)
	hs.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the service and Mini App routes
func (hs *HTTPServer) RegisterRoutes(r chi.Router) {
	r.Get("/", hs.handleRoot)
	r.Head("/", hs.handleRoot)
	r.Get("/health", hs.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(hs.authMiddleware)
		r.Get("/api/content", hs.handleContent)
		r.Get("/api/purchases", hs.handlePurchases)
		r.Post("/api/create_invoice", hs.handleCreateInvoice)
	})

	if hs.webhookMode {
		r.Post(webhookPath, hs.handleWebhook)
	}
}

// withCORS allows the Mini App origin to call the API
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (hs *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		hs.bot.logger.Debug("Request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps a domain error to its HTTP status
func (hs *HTTPServer) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch apperror.Kind(err) {
	case apperror.ErrNotFound:
		writeError(w, http.StatusNotFound, "Content not found")
	case apperror.ErrAlreadyPurchased:
		writeError(w, http.StatusBadRequest, "Already purchased")
	case apperror.ErrBanned:
		writeError(w, http.StatusForbidden, "User is banned")
	case apperror.ErrPermissionDenied:
		writeError(w, http.StatusForbidden, "Forbidden")
	case apperror.ErrInvalidInput:
		writeError(w, http.StatusBadRequest, apperror.Message(err))
	case apperror.ErrUpstream:
		hs.bot.logger.Error("Upstream failure", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadGateway, "Failed to create invoice")
	default:
		hs.bot.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (hs *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "bot": "running"})
}

func (hs *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// handleWebhook accepts a Telegram update and processes it in the background
func (hs *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		hs.bot.logger.Warn("Failed to decode webhook update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Respond quickly to Telegram
	go hs.bot.HandleWebhookUpdate(update)

	w.WriteHeader(http.StatusOK)
}

// validateTelegramInitData validates the Telegram Mini App initData and returns the user id
func (hs *HTTPServer) validateTelegramInitData(initData string) (int64, error) {
	if initData == "" {
		return 0, fmt.Errorf("missing initData")
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, fmt.Errorf("invalid initData format: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return 0, fmt.Errorf("missing hash in initData")
	}
	values.Del("hash")

	// Create data-check-string
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var dataCheckString strings.Builder
	for i, k := range keys {
		if i > 0 {
			dataCheckString.WriteByte('\n')
		}
		dataCheckString.WriteString(k)
		dataCheckString.WriteByte('=')
		dataCheckString.WriteString(values.Get(k))
	}

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(hs.bot.token))
	secret := secretKey.Sum(nil)

	h := hmac.New(sha256.New, secret)
	h.Write([]byte(dataCheckString.String()))
	calculatedHash := hex.EncodeToString(h.Sum(nil))

	if !hmac.Equal([]byte(calculatedHash), []byte(hash)) {
		return 0, fmt.Errorf("invalid hash")
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("missing auth_date")
	}
	if time.Since(time.Unix(authDate, 0)) > initDataMaxAge {
		return 0, fmt.Errorf("initData is too old")
	}

	userStr := values.Get("user")
	if userStr == "" {
		return 0, fmt.Errorf("missing user data")
	}

	var userData struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(userStr), &userData); err != nil {
		return 0, fmt.Errorf("invalid user data: %w", err)
	}
	return userData.ID, nil
}

// authMiddleware validates Telegram Mini App authentication when it is required
func (hs *HTTPServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hs.requireInitData {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "tma ") {
			hs.bot.logger.Warn("Missing or invalid authorization header", zap.String("path", r.URL.Path))
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		userID, err := hs.validateTelegramInitData(strings.TrimPrefix(authHeader, "tma "))
		if err != nil {
			hs.bot.logger.Warn("Failed to validate initData",
				zap.Error(err),
				zap.String("remote_addr", r.RemoteAddr),
			)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		hs.bot.logger.Debug("Authenticated request",
			zap.Int64("user_id", userID),
			zap.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authUserKey, userID)))
	})
}

// checkUser rejects requests acting for a user other than the authenticated one
func checkUser(r *http.Request, userID int64) error {
	authUser, ok := r.Context().Value(authUserKey).(int64)
	if ok && authUser != userID {
		return apperror.PermissionDenied()
	}
	return nil
}

// contentView is Content as the Mini App sees it
type contentView struct {
	models.Content
	Purchased *bool `json:"purchased,omitempty"`
}

// handleContent lists approved content, optionally filtered by type and
// annotated with the user's ownership
func (hs *HTTPServer) handleContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var kind models.MediaKind
	if t := query.Get("type"); t != "" {
		k, err := models.ParseMediaKind(t)
		if err != nil {
			writeJSON(w, http.StatusOK, []contentView{})
			return
		}
		kind = k
	}

	items, err := hs.bot.db.ListApprovedContent(ctx, kind)
	if err != nil {
		hs.writeAppError(w, r, err)
		return
	}

	var owned map[int64]bool
	if userID, err := strconv.ParseInt(query.Get("user_id"), 10, 64); err == nil {
		if err := checkUser(r, userID); err != nil {
			hs.writeAppError(w, r, err)
			return
		}
		purchased, err := hs.bot.db.ListPurchases(ctx, userID)
		if err != nil {
			hs.writeAppError(w, r, err)
			return
		}
		owned = make(map[int64]bool, len(purchased))
		for _, c := range purchased {
			owned[c.ID] = true
		}
	}

	views := make([]contentView, 0, len(items))
	for _, c := range items {
		v := contentView{Content: c}
		if owned != nil {
			p := owned[c.ID]
			v.Purchased = &p
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

// handlePurchases lists the content a user owns
func (hs *HTTPServer) handlePurchases(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	if err := checkUser(r, userID); err != nil {
		hs.writeAppError(w, r, err)
		return
	}

	items, err := hs.bot.db.ListPurchases(r.Context(), userID)
	if err != nil {
		hs.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// flexInt accepts a JSON number or a numeric string
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %s", data)
	}
	*f = flexInt(n)
	return nil
}

// maxInvoiceBodyBytes caps the create_invoice request body
const maxInvoiceBodyBytes = 4 << 10

// CreateInvoiceRequest represents the request body for buying content
type CreateInvoiceRequest struct {
	UserID    flexInt `json:"user_id"`
	ContentID flexInt `json:"content_id"`
}

// handleCreateInvoice runs the purchase decision for the Mini App
func (hs *HTTPServer) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxInvoiceBodyBytes)

	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		hs.bot.logger.Warn("Failed to decode request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID <= 0 || req.ContentID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id and content_id are required")
		return
	}

	userID, contentID := int64(req.UserID), int64(req.ContentID)
	if err := checkUser(r, userID); err != nil {
		hs.writeAppError(w, r, err)
		return
	}

	res, err := hs.bot.purchases.Purchase(r.Context(), userID, contentID)
	if err != nil {
		if !errors.Is(err, apperror.ErrUpstream) && apperror.Kind(err) != nil {
			hs.bot.logger.Info("Purchase rejected",
				zap.Int64("user_id", userID),
				zap.Int64("content_id", contentID),
				zap.String("reason", apperror.Message(err)),
			)
		}
		hs.writeAppError(w, r, err)
		return
	}

	switch res.Outcome {
	case purchase.OutcomeFree:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true, "free": true})
	case purchase.OutcomeTestGranted:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true, "test_mode": true})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"invoice_link": res.InvoiceLink})
	}
}
