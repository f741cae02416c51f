package ipn

import (
	"io"
	"net/http"
	"strings"

	"paypal-bridge/internal/logger"
	"paypal-bridge/internal/metrics"
	"paypal-bridge/internal/notification"
	"paypal-bridge/internal/order"
	"paypal-bridge/internal/paypal"
	"paypal-bridge/internal/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Options struct {
	ReceiverEmail string
	SiteURL       string
	ThankYouURL   string
	ShopName      string
}

type Handler struct {
	gateway    paypal.LegacyGateway
	store      Repository
	orders     order.Repository
	reconciler notification.Reconciler[*Notification]
	metrics    *metrics.Registry
	opts       Options
}

func NewHandler(
	gateway paypal.LegacyGateway,
	store Repository,
	orders order.Repository,
	reconciler notification.Reconciler[*Notification],
	m *metrics.Registry,
	opts Options,
) *Handler {
	return &Handler{
		gateway:    gateway,
		store:      store,
		orders:     orders,
		reconciler: reconciler,
		metrics:    m,
		opts:       opts,
	}
}

// IPN receives PayPal's instant payment notifications. Once the form is
// readable the answer is 200 unless the postback, storing or reconciling failed.
func (h *Handler) IPN(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	log := logger.FromCtx(ctx)

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	n, err := ParseNotification(string(raw))
	if err != nil {
		log.Warn("Unparseable IPN", zap.Error(err))
		http.Error(w, "invalid ipn", http.StatusBadRequest)
		return
	}
	h.metrics.Inc(metrics.IPNReceived)
	log = log.With(zap.String("txn_id", n.TxnID), zap.String("order_uuid", n.Custom))

	postback, err := h.gateway.VerifyIPN(ctx, raw)
	if err != nil {
		// PayPal redelivers on non-2xx, so the notification is judged once the postback works
		log.Error("IPN postback failed", zap.Error(err))
		http.Error(w, "ipn verification unavailable", http.StatusInternalServerError)
		return
	}
	verify(n, postback, h.opts.ReceiverEmail)
	n.Signal = signalFor(n)

	if err := h.store.Save(ctx, n); err != nil {
		log.Error("Failed to store IPN", zap.Error(err))
		http.Error(w, "failed to store ipn", http.StatusInternalServerError)
		return
	}

	if n.Signal != "" {
		if _, err := h.reconciler.Reconcile(ctx, n); err != nil {
			log.Error("Failed to reconcile IPN", zap.String("signal", n.Signal), zap.Error(err))
			http.Error(w, "failed to process ipn", http.StatusInternalServerError)
			return
		}
	} else {
		log.Info("IPN recorded without signal", zap.String("payment_status", n.PaymentStatus))
	}

	w.WriteHeader(http.StatusOK)
}

// PDT handles the buyer's return from a legacy payment with ?tx=.
func (h *Handler) PDT(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tx := r.URL.Query().Get("tx")
	log := logger.FromCtx(ctx).With(zap.String("tx", tx))

	if tx == "" {
		h.renderError(w, http.StatusBadRequest, "Missing transaction id.")
		return
	}

	res, err := h.gateway.FetchPDT(ctx, tx)
	if err != nil {
		log.Error("PDT lookup failed", zap.Error(err))
		h.renderError(w, http.StatusBadGateway, "PayPal is currently not reachable. Please try again later.")
		return
	}

	n := FromPDT(res.Fields)
	n.TxnID = tx
	n.Signal = SignalPDTFailed
	if res.Success {
		n.Signal = SignalPDTSuccessful
	}

	if _, err := h.reconciler.Reconcile(ctx, n); err != nil {
		log.Error("Failed to reconcile PDT", zap.Error(err))
		h.renderError(w, http.StatusInternalServerError, "Something went wrong while processing your payment.")
		return
	}

	if !res.Success {
		h.renderError(w, http.StatusPaymentRequired, "PayPal did not confirm the payment.")
		return
	}
	http.Redirect(w, r, h.opts.ThankYouURL, http.StatusSeeOther)
}

// PayLink redirects to the legacy PayPal payment page for an existing order.
func (h *Handler) PayLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderUUID := r.PathValue("uuid")

	o, err := h.orders.GetByUUID(ctx, orderUUID)
	if err != nil {
		logger.FromCtx(ctx).Warn("Pay link for unknown order", zap.String("order_uuid", orderUUID), zap.Error(err))
		h.renderError(w, http.StatusNotFound, "We could not find this order.")
		return
	}

	link := h.gateway.PayLink(paypal.PayLinkParams{
		Business:  h.opts.ReceiverEmail,
		Currency:  o.Currency,
		NotifyURL: h.opts.SiteURL + "/paypal/ipn/",
		ReturnURL: h.absolute(h.opts.ThankYouURL),
		FirstName: o.InvoiceAddress.FirstName,
		LastName:  o.InvoiceAddress.LastName,
		Invoice: paypal.Address{
			Line1:      o.InvoiceAddress.Line1,
			Line2:      o.InvoiceAddress.Line2,
			City:       o.InvoiceAddress.City,
			State:      o.InvoiceAddress.State,
			PostalCode: o.InvoiceAddress.ZipCode,
		},
		OrderUUID: o.UUID,
		ItemName:  h.opts.ShopName,
		Amount:    o.Net(),
		Tax:       o.Tax,
	})

	http.Redirect(w, r, link, http.StatusSeeOther)
}

func (h *Handler) absolute(path string) string {
	if strings.HasPrefix(path, "/") {
		return h.opts.SiteURL + path
	}
	return path
}

func (h *Handler) renderError(w http.ResponseWriter, code int, msg string) {
	utils.RenderPaymentError(w, code, utils.ErrorPage{Message: msg, BackURL: h.opts.SiteURL + "/"})
}
