package paypal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paypal-bridge/internal/config"
	"paypal-bridge/internal/logger"

	"go.uber.org/zap"
)

const (
	sandboxAPIBase = "https://api-m.sandbox.paypal.com"
	liveAPIBase    = "https://api-m.paypal.com"

	sandboxIPNURL = "https://ipnpb.sandbox.paypal.com/cgi-bin/webscr"
	liveIPNURL    = "https://ipnpb.paypal.com/cgi-bin/webscr"

	sandboxWebscrURL = "https://www.sandbox.paypal.com/cgi-bin/webscr"
	liveWebscrURL    = "https://www.paypal.com/cgi-bin/webscr"

	requestIDHeader = "PayPal-Request-Id"
)

type Gateway interface {
	AccessToken(ctx context.Context) (string, error)
	CreateOrder(ctx context.Context, token string, req CreateOrderRequest) (*CreatedOrder, error)
	CaptureOrder(ctx context.Context, token, orderID string) (*Capture, error)
	VerifyWebhookSignature(ctx context.Context, token string, h http.Header, body []byte) (bool, error)
}

// LegacyGateway covers the IPN/PDT era endpoints.
type LegacyGateway interface {
	VerifyIPN(ctx context.Context, rawBody []byte) (string, error)
	FetchPDT(ctx context.Context, txID string) (*PDTResult, error)
	PayLink(p PayLinkParams) string
}

type Client struct {
	clientID     string
	clientSecret string
	webhookID    string
	pdtToken     string

	apiBase   string
	ipnURL    string
	webscrURL string

	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	if cfg.PayPalClientID == "" || cfg.PayPalClientSecret == "" {
		logger.L().Warn("PayPal client credentials are empty")
	}

	c := &Client{
		clientID:     cfg.PayPalClientID,
		clientSecret: cfg.PayPalClientSecret,
		webhookID:    cfg.PayPalWebhookID,
		pdtToken:     cfg.PayPalPDTIdentityToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}

	if cfg.Sandbox() {
		c.apiBase, c.ipnURL, c.webscrURL = sandboxAPIBase, sandboxIPNURL, sandboxWebscrURL
	} else {
		c.apiBase, c.ipnURL, c.webscrURL = liveAPIBase, liveIPNURL, liveWebscrURL
	}
	return c
}

// WebhookVerificationEnabled reports whether a webhook id is configured.
func (c *Client) WebhookVerificationEnabled() bool {
	return c.webhookID != ""
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read paypal response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) newJSONRequest(ctx context.Context, path, token string, payload any) (*http.Request, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// ----------------- AccessToken -----------------

func (c *Client) AccessToken(ctx context.Context) (string, error) {
	log := logger.FromCtx(ctx)

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := c.do(req)
	if err != nil {
		log.Error("PayPal token request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	if status != http.StatusOK {
		log.Error("PayPal token endpoint returned non-success status",
			zap.Int("status", status),
			zap.ByteString("response", body),
		)
		return "", fmt.Errorf("%w: %s", ErrAuthFailed, string(body))
	}

	var res tokenResponse
	if err := json.Unmarshal(body, &res); err != nil || res.AccessToken == "" {
		log.Error("Failed decoding PayPal token response", zap.Error(err))
		return "", fmt.Errorf("%w: malformed token response", ErrAuthFailed)
	}
	return res.AccessToken, nil
}

// ----------------- CreateOrder -----------------

func (c *Client) CreateOrder(ctx context.Context, token string, in CreateOrderRequest) (*CreatedOrder, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("temporary_order_id", in.ReferenceID),
		zap.String("amount", in.Amount.StringFixed(2)),
		zap.String("currency", in.Currency),
	)

	unit := purchaseUnit{
		ReferenceID: in.ReferenceID,
		Amount: money{
			CurrencyCode: in.Currency,
			Value:        in.Amount.StringFixed(2),
		},
	}
	if in.Shipping.CountryCode != "" {
		unit.Shipping = &shipping{
			Name: shippingName{FullName: in.Shipping.FullName},
			Address: shippingAddress{
				AddressLine1: in.Shipping.Line1,
				AddressLine2: in.Shipping.Line2,
				AdminArea2:   in.Shipping.City,
				AdminArea1:   in.Shipping.State,
				PostalCode:   in.Shipping.PostalCode,
				CountryCode:  in.Shipping.CountryCode,
			},
		}
	}

	payload := orderPayload{
		Intent:        IntentCapture,
		PurchaseUnits: []purchaseUnit{unit},
		ApplicationContext: applicationContext{
			ReturnURL:          in.ReturnURL,
			CancelURL:          in.CancelURL,
			ShippingPreference: "SET_PROVIDED_ADDRESS",
			UserAction:         "PAY_NOW",
		},
	}

	req, err := c.newJSONRequest(ctx, "/v2/checkout/orders", token, payload)
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, err
	}
	req.Header.Set(requestIDHeader, in.ReferenceID)

	log.Info("Sending order request to PayPal")

	status, body, err := c.do(req)
	if err != nil {
		log.Error("PayPal order request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}

	if status != http.StatusCreated {
		log.Error("PayPal returned non-success status",
			zap.Int("status", status),
			zap.ByteString("response", body),
		)
		return nil, fmt.Errorf("%w: %s", ErrProviderRequest, string(body))
	}

	var res orderResponse
	if err := json.Unmarshal(body, &res); err != nil {
		log.Error("Failed decoding PayPal order response", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}

	out := &CreatedOrder{ID: res.ID, Status: res.Status}
	for _, l := range res.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			out.ApproveURL = l.Href
			break
		}
	}
	if out.ID == "" || out.ApproveURL == "" {
		log.Error("PayPal order response is missing id or approval link", zap.ByteString("response", body))
		return nil, fmt.Errorf("%w: %w", ErrProviderRequest, ErrNoApproveLink)
	}

	log.Info("PayPal order created", zap.String("provider_order_id", out.ID))
	return out, nil
}

// ----------------- CaptureOrder -----------------

// CaptureOrder returns ErrProviderRequest unless PayPal answers 201. The
// request id is derived from the order id so a repeated capture is replayed
// by PayPal instead of being rejected.
func (c *Client) CaptureOrder(ctx context.Context, token, orderID string) (*Capture, error) {
	log := logger.FromCtx(ctx).With(zap.String("provider_order_id", orderID))

	req, err := c.newJSONRequest(ctx, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", token, struct{}{})
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, err
	}
	req.Header.Set(requestIDHeader, "capture-"+orderID)

	status, body, err := c.do(req)
	if err != nil {
		log.Error("PayPal capture request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}

	if status != http.StatusCreated {
		log.Error("PayPal capture returned non-success status",
			zap.Int("status", status),
			zap.ByteString("response", body),
		)
		return nil, fmt.Errorf("%w: %s", ErrProviderRequest, string(body))
	}

	var res orderResponse
	if err := json.Unmarshal(body, &res); err != nil {
		log.Error("Failed decoding PayPal capture response", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}

	return &Capture{
		ID:      res.ID,
		Status:  res.Status,
		PayerID: res.Payer.PayerID,
		Raw:     json.RawMessage(body),
	}, nil
}

// ----------------- VerifyWebhookSignature -----------------

func (c *Client) VerifyWebhookSignature(ctx context.Context, token string, h http.Header, body []byte) (bool, error) {
	if c.webhookID == "" {
		return true, nil
	}
	log := logger.FromCtx(ctx).With(zap.String("transmission_id", h.Get("PAYPAL-TRANSMISSION-ID")))

	payload := verifySignaturePayload{
		AuthAlgo:         h.Get("PAYPAL-AUTH-ALGO"),
		CertURL:          h.Get("PAYPAL-CERT-URL"),
		TransmissionID:   h.Get("PAYPAL-TRANSMISSION-ID"),
		TransmissionSig:  h.Get("PAYPAL-TRANSMISSION-SIG"),
		TransmissionTime: h.Get("PAYPAL-TRANSMISSION-TIME"),
		WebhookID:        c.webhookID,
		WebhookEvent:     json.RawMessage(body),
	}

	req, err := c.newJSONRequest(ctx, "/v1/notifications/verify-webhook-signature", token, payload)
	if err != nil {
		return false, err
	}

	status, respBody, err := c.do(req)
	if err != nil {
		log.Error("PayPal signature verification failed", zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	if status != http.StatusOK {
		log.Error("PayPal signature verification returned error",
			zap.Int("status", status),
			zap.ByteString("response", respBody),
		)
		return false, fmt.Errorf("%w: %s", ErrProviderRequest, string(respBody))
	}

	var res verifySignatureResponse
	if err := json.Unmarshal(respBody, &res); err != nil {
		return false, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	return res.VerificationStatus == "SUCCESS", nil
}

// ----------------- Legacy: IPN / PDT / pay link -----------------

// VerifyIPN posts the notification back with cmd=_notify-validate and
// returns the raw answer, normally VERIFIED or INVALID.
func (c *Client) VerifyIPN(ctx context.Context, rawBody []byte) (string, error) {
	body := append([]byte("cmd=_notify-validate&"), rawBody...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ipnURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, respBody, err := c.do(req)
	if err != nil {
		logger.FromCtx(ctx).Error("IPN postback failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: ipn postback status %d", ErrProviderRequest, status)
	}
	return strings.TrimSpace(string(respBody)), nil
}

// FetchPDT asks PayPal for the transaction details of a PDT return. The
// answer is SUCCESS or FAIL on the first line followed by key=value lines.
func (c *Client) FetchPDT(ctx context.Context, txID string) (*PDTResult, error) {
	form := url.Values{
		"cmd": {"_notify-synch"},
		"tx":  {txID},
		"at":  {c.pdtToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webscrURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := c.do(req)
	if err != nil {
		logger.FromCtx(ctx).Error("PDT request failed", zap.String("tx", txID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: pdt status %d", ErrProviderRequest, status)
	}

	return parsePDT(body), nil
}

func parsePDT(body []byte) *PDTResult {
	res := &PDTResult{Fields: map[string]string{}}

	sc := bufio.NewScanner(bytes.NewReader(body))
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if first {
			res.Success = line == "SUCCESS"
			first = false
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if uv, err := url.QueryUnescape(v); err == nil {
			v = uv
		}
		res.Fields[k] = v
	}
	return res
}

// PayLink builds the _xclick redirect for an existing shop order. Amount is
// the net price, tax is sent separately.
func (c *Client) PayLink(p PayLinkParams) string {
	q := url.Values{
		"cmd":           {"_xclick"},
		"upload":        {"1"},
		"business":      {p.Business},
		"currency_code": {p.Currency},
		"notify_url":    {p.NotifyURL},
		"return":        {p.ReturnURL},
		"first_name":    {p.FirstName},
		"last_name":     {p.LastName},
		"address1":      {p.Invoice.Line1},
		"address2":      {p.Invoice.Line2},
		"city":          {p.Invoice.City},
		"state":         {p.Invoice.State},
		"zip":           {p.Invoice.PostalCode},
		"no_shipping":   {"1"},
		"custom":        {p.OrderUUID},
		"invoice":       {p.OrderUUID},
		"item_name":     {p.ItemName},
		"amount":        {p.Amount.StringFixed(2)},
		"tax":           {p.Tax.StringFixed(2)},
	}
	return c.webscrURL + "?" + q.Encode()
}
