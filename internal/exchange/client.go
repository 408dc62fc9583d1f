package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"marketbot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Client talks to the exchange spot REST API. Credentials are passed per
// call: one client serves every user.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type balanceRow struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type accountResponse struct {
	Balances []balanceRow `json:"balances"`
}

// Balance is one raw account row, free+locked already summed.
type Balance struct {
	Asset string
	Total float64
}

// Balances fetches the signed account snapshot.
func (c *Client) Balances(ctx context.Context, creds models.Credentials) ([]Balance, error) {
	body, err := c.signedGet(ctx, creds, "/api/v3/account", url.Values{})
	if err != nil {
		return nil, errors.Wrap(err, "account")
	}

	var acc accountResponse
	if err := sonic.Unmarshal(body, &acc); err != nil {
		return nil, errors.Wrap(err, "decode account")
	}

	out := make([]Balance, 0, len(acc.Balances))
	for _, b := range acc.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		out = append(out, Balance{Asset: b.Asset, Total: free + locked})
	}
	return out, nil
}

// Price fetches the public last price for a pair like "BTCUSDT".
func (c *Client) Price(ctx context.Context, pair string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", pair)

	body, err := c.get(ctx, "/api/v3/ticker/price", q, "")
	if err != nil {
		return 0, errors.Wrapf(err, "ticker price %s", pair)
	}

	var resp struct {
		Price string `json:"price"`
	}
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return 0, errors.Wrapf(err, "decode price %s", pair)
	}
	p, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse price %s", pair)
	}
	return p, nil
}

// TradeRow is one account trade as the exchange reports it.
type TradeRow struct {
	ID              int64  `json:"id"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	QuoteQty        string `json:"quoteQty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	IsBuyer         bool   `json:"isBuyer"`
	Time            int64  `json:"time"`
}

// MyTrades fetches one page of account trades for a symbol, ascending by
// trade ID. fromID <= 0 starts at the beginning.
func (c *Client) MyTrades(ctx context.Context, creds models.Credentials, symbol string, limit int, fromID int64) ([]TradeRow, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(limit))
	if fromID > 0 {
		q.Set("fromId", strconv.FormatInt(fromID, 10))
	}

	body, err := c.signedGet(ctx, creds, "/api/v3/myTrades", q)
	if err != nil {
		return nil, errors.Wrapf(err, "myTrades %s", symbol)
	}

	var rows []TradeRow
	if err := sonic.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrapf(err, "decode myTrades %s", symbol)
	}
	return rows, nil
}

// signedGet signs the query the way the spot API expects: an HMAC-SHA256
// of the encoded query string appended as the signature parameter.
func (c *Client) signedGet(ctx context.Context, creds models.Credentials, path string, q url.Values) ([]byte, error) {
	q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	payload := q.Encode()
	h := hmac.New(sha256.New, []byte(creds.APISecret))
	h.Write([]byte(payload))
	q.Set("signature", hex.EncodeToString(h.Sum(nil)))

	return c.get(ctx, path, q, creds.APIKey)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(rb))
	}
	return rb, nil
}
