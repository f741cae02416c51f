package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"paypal-bridge/internal/logger"
	"paypal-bridge/internal/payment"
	"paypal-bridge/internal/utils"

	"go.uber.org/zap"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type Credentials struct {
	Email        string
	PasswordHash string
	JWTSecret    string
}

// Handler serves the admin login and the read-only payment reports.
type Handler struct {
	payments payment.Repository
	creds    Credentials
}

func NewHandler(payments payment.Repository, creds Credentials) *Handler {
	return &Handler{payments: payments, creds: creds}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.authenticate(req.Email, req.Password)
	if err != nil {
		logger.FromCtx(r.Context()).Warn("Admin login rejected", zap.String("email", req.Email), zap.Error(err))
		if errors.Is(err, ErrMissingSecret) {
			utils.WriteJSONError(w, "admin login is not configured", http.StatusServiceUnavailable)
			return
		}
		utils.WriteJSONError(w, ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}

	claims, _ := ParseJWT(h.creds.JWTSecret, token)
	res := LoginResponse{Token: token}
	if claims != nil && claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	utils.WriteJSON(w, res, http.StatusOK)
}

func (h *Handler) authenticate(email, password string) (string, error) {
	if h.creds.Email == "" || h.creds.PasswordHash == "" {
		return "", ErrInvalidCredentials
	}
	if !strings.EqualFold(email, h.creds.Email) || !CheckPasswordHash(password, h.creds.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return GenerateJWT(h.creds.JWTSecret, h.creds.Email)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	limit := utils.QueryInt(r, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	page := utils.QueryInt(r, "page", 1)

	rows, err := h.payments.List(r.Context(), payment.Filter{
		Currency: strings.ToUpper(r.URL.Query().Get("currency")),
		Search:   strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:    limit,
		Page:     page,
	})
	if err != nil {
		logger.FromCtx(r.Context()).Error("Failed to list payments", zap.Error(err))
		utils.WriteJSONError(w, "failed to list payments", http.StatusInternalServerError)
		return
	}

	res := PaymentListResponse{Items: make([]PaymentResponse, 0, len(rows)), Limit: limit, Page: page}
	for i := range rows {
		res.Items = append(res.Items, toPaymentResponse(&rows[i].Payment, rows[i].Status))
	}
	utils.WriteJSON(w, res, http.StatusOK)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseInt64(r.PathValue("id"))
	if err != nil || id <= 0 {
		utils.WriteJSONError(w, "invalid payment id", http.StatusBadRequest)
		return
	}

	p, err := h.payments.GetByID(r.Context(), id)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromCtx(r.Context()).Error("Failed to load payment", zap.Int64("payment_id", id), zap.Error(err))
		utils.WriteJSONError(w, "failed to load payment", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, toPaymentResponse(p, p.CurrentStatus()), http.StatusOK)
}
