package checkout

import (
	"errors"
	"net/http"

	"paypal-bridge/internal/logger"
	"paypal-bridge/internal/payment"
	"paypal-bridge/internal/paypal"
	"paypal-bridge/internal/session"
	"paypal-bridge/internal/utils"

	"go.uber.org/zap"
)

type Handler struct {
	svc         Service
	siteURL     string
	thankYouURL string
}

func NewHandler(svc Service, siteURL, thankYouURL string) *Handler {
	return &Handler{svc: svc, siteURL: siteURL, thankYouURL: thankYouURL}
}

// Checkout starts a PayPal checkout for the current session and redirects
// the buyer to the approval page.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := h.svc.Initiate(r.Context(), sessionKey(r), h.baseURL(r))
	if err != nil {
		logger.FromCtx(r.Context()).Warn("Checkout failed", zap.Error(err))
		h.renderError(w, err)
		return
	}

	http.Redirect(w, r, res.ApproveURL, http.StatusSeeOther)
}

// CapturePayment is the return URL PayPal sends the buyer back to.
func (h *Handler) CapturePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.FormValue("token")
	}

	if _, err := h.svc.Capture(r.Context(), sessionKey(r), token); err != nil {
		logger.FromCtx(r.Context()).Warn("Capture failed", zap.String("token", token), zap.Error(err))
		h.renderError(w, err)
		return
	}

	http.Redirect(w, r, h.thankYouURL, http.StatusSeeOther)
}

func (h *Handler) PaymentCancelled(w http.ResponseWriter, r *http.Request) {
	utils.RenderPaymentCancelled(w)
}

func (h *Handler) renderError(w http.ResponseWriter, err error) {
	code, msg := errorStatus(err)
	utils.RenderPaymentError(w, code, utils.ErrorPage{Message: msg, BackURL: h.siteURL + "/"})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return http.StatusBadRequest, "Your cart is empty."
	case errors.Is(err, ErrMissingCustomer):
		return http.StatusBadRequest, "Please enter your shipping details first."
	case errors.Is(err, payment.ErrPaymentNotFound):
		return http.StatusNotFound, "We could not find this payment."
	case errors.Is(err, paypal.ErrAuthFailed):
		return http.StatusBadGateway, "PayPal is currently not reachable. Please try again later."
	case errors.Is(err, ErrCaptureFailed):
		return http.StatusPaymentRequired, "PayPal did not complete the payment."
	case errors.Is(err, paypal.ErrProviderRequest):
		return http.StatusBadGateway, "PayPal rejected the payment request."
	}
	return http.StatusInternalServerError, "Something went wrong while processing your payment."
}

// baseURL prefers the configured site URL and falls back to the request host.
func (h *Handler) baseURL(r *http.Request) string {
	if h.siteURL != "" {
		return h.siteURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func sessionKey(r *http.Request) string {
	if key := session.KeyFrom(r.Context()); key != "" {
		return key
	}
	return session.ExtractKey(r)
}
