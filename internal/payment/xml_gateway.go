package payment

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// XMLConfig carries the credentials and URLs for the XML bank protocol.
// RedirectTemplate embeds the bank session into the buyer-facing URL via
// the {SESSION_ID} and {ORDER_ID} placeholders.
type XMLConfig struct {
	Endpoint         string
	MerchantID       string
	Currency         string
	ApproveURL       string
	CancelURL        string
	DeclineURL       string
	RedirectTemplate string
	Timeout          time.Duration
}

// XMLGateway speaks the bank's XML request/response protocol over HTTPS.
type XMLGateway struct {
	cfg    XMLConfig
	client *resty.Client
}

type xmlOrder struct {
	OrderID     string `xml:"OrderID"`
	Amount      string `xml:"Amount"`
	Currency    string `xml:"Currency"`
	Description string `xml:"Description"`
	ApproveURL  string `xml:"ApproveURL,omitempty"`
	CancelURL   string `xml:"CancelURL,omitempty"`
	DeclineURL  string `xml:"DeclineURL,omitempty"`
}

type xmlRequest struct {
	XMLName   xml.Name `xml:"Request"`
	Operation string   `xml:"Operation"`
	Merchant  string   `xml:"Merchant"`
	Order     xmlOrder `xml:"Order"`
}

type xmlResponse struct {
	XMLName     xml.Name `xml:"Response"`
	Status      string   `xml:"Status"`
	SessionID   string   `xml:"SessionID"`
	OrderStatus string   `xml:"OrderStatus"`
}

const xmlStatusOK = "00"

func NewXMLGateway(cfg XMLConfig) *XMLGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/xml")
	return &XMLGateway{cfg: cfg, client: client}
}

func (g *XMLGateway) CreatePayment(ctx context.Context, amountMinor int64, description string) (*PaymentIntent, error) {
	orderID := uuid.NewString()

	req := xmlRequest{
		Operation: "CreateOrder",
		Merchant:  g.cfg.MerchantID,
		Order: xmlOrder{
			OrderID:     orderID,
			Amount:      formatAmount(amountMinor),
			Currency:    g.cfg.Currency,
			Description: description,
			ApproveURL:  g.cfg.ApproveURL,
			CancelURL:   g.cfg.CancelURL,
			DeclineURL:  g.cfg.DeclineURL,
		},
	}

	res, err := g.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	if res.Status != xmlStatusOK {
		return nil, fmt.Errorf("%w: create order declined with status %q", ErrGateway, res.Status)
	}
	if strings.TrimSpace(res.SessionID) == "" {
		return nil, fmt.Errorf("%w: create order response is missing SessionID", ErrGateway)
	}

	url := strings.ReplaceAll(g.cfg.RedirectTemplate, "{SESSION_ID}", res.SessionID)
	url = strings.ReplaceAll(url, "{ORDER_ID}", orderID)

	return &PaymentIntent{PaymentURL: url, PaymentID: orderID}, nil
}

func (g *XMLGateway) VerifyPayment(ctx context.Context, paymentID string) (bool, error) {
	req := xmlRequest{
		Operation: "GetOrderStatus",
		Merchant:  g.cfg.MerchantID,
		Order:     xmlOrder{OrderID: paymentID},
	}

	res, err := g.roundTrip(ctx, req)
	if err != nil {
		return false, err
	}
	if res.Status != xmlStatusOK {
		return false, fmt.Errorf("%w: order status query declined with status %q", ErrGateway, res.Status)
	}

	return strings.EqualFold(strings.TrimSpace(res.OrderStatus), "APPROVED"), nil
}

func (g *XMLGateway) roundTrip(ctx context.Context, req xmlRequest) (*xmlResponse, error) {
	body, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(append([]byte(xml.Header), body...)).
		Post(g.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: gateway returned HTTP %d", ErrGateway, resp.StatusCode())
	}

	var out xmlResponse
	if err := xml.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: malformed response body: %v", ErrGateway, err)
	}
	return &out, nil
}
