package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"marketbot/internal/models"
	"marketbot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// Client streams ticker messages for a set of symbols over one combined
// websocket connection.
type Client struct {
	streamURL string
	wsDialer  *websocket.Dialer
}

func NewClient(streamURL string) *Client {
	return &Client{
		streamURL: streamURL,
		wsDialer:  &websocket.Dialer{},
	}
}

// StreamTicks opens the combined miniTicker stream and republishes each
// frame as a models.Tick. The stream is not restartable mid-sequence: on
// any read error the connection is dropped and re-subscribed from scratch
// after a short pause, until ctx is cancelled.
func (c *Client) StreamTicks(ctx context.Context, symbols []string) <-chan models.Tick {
	ch := make(chan models.Tick)

	go func() {
		defer close(ch)

		if len(symbols) == 0 {
			return
		}

		streams := make([]string, 0, len(symbols))
		for _, s := range symbols {
			streams = append(streams, strings.ToLower(s)+"@miniTicker")
		}
		url := c.streamURL + "/stream?streams=" + strings.Join(streams, "/")

		for {
			logger.Info("[WS] connect %d symbols", len(symbols))
			conn, _, err := c.wsDialer.Dial(url, nil)
			if err != nil {
				logger.Error("[WS] dial error: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			// read loop until the connection dies
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					logger.Error("[WS] read error: %v", err)
					_ = conn.Close()
					break
				}

				var frame struct {
					Stream string `json:"stream"`
					Data   struct {
						EventTime   int64  `json:"E"`
						Symbol      string `json:"s"`
						Close       string `json:"c"`
						Open        string `json:"o"`
						QuoteVolume string `json:"q"`
					} `json:"data"`
				}
				if err := sonic.Unmarshal(msg, &frame); err != nil {
					continue
				}
				if frame.Data.Symbol == "" {
					continue
				}

				closep, err := strconv.ParseFloat(frame.Data.Close, 64)
				if err != nil {
					continue
				}
				open, _ := strconv.ParseFloat(frame.Data.Open, 64)
				volQuote, _ := strconv.ParseFloat(frame.Data.QuoteVolume, 64)

				pct := 0.0
				if open > 0 {
					pct = (closep - open) / open * 100
				}

				tick := models.Tick{
					Symbol:        frame.Data.Symbol,
					LastPrice:     closep,
					PercentChange: pct,
					QuoteVolume:   volQuote,
					Timestamp:     time.UnixMilli(frame.Data.EventTime),
				}

				select {
				case ch <- tick:
				case <-ctx.Done():
					_ = conn.Close()
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			default:
				time.Sleep(time.Second)
			}
		}
	}()

	return ch
}
