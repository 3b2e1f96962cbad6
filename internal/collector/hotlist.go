package collector

import (
	"context"
	"time"

	"HeatPulse/internal/domain/models"
	xhttp "HeatPulse/pkg/http"
	applogger "HeatPulse/pkg/logger"
)

// THSHotList pulls the 10jqka hourly hot-stock ranking and converts
// rank position into a sentiment signal: hotter rank, higher count.
type THSHotList struct {
	client  *xhttp.Client
	baseURL string
	l       *applogger.Logger
}

func NewTHSHotList(client *xhttp.Client, baseURL string, l *applogger.Logger) *THSHotList {
	return &THSHotList{client: client, baseURL: baseURL, l: l}
}

func (t *THSHotList) Name() string { return "ths_hot" }

type hotItem struct {
	Code string    `json:"code"`
	Rate flexFloat `json:"rate"`
}

type hotListResponse struct {
	Data *struct {
		StockList []hotItem `json:"stock_list"`
	} `json:"data"`
}

// Collect returns one row per requested code that appears on the hot
// list; codes off the list are omitted. With no codes given, the whole
// list is returned.
func (t *THSHotList) Collect(ctx context.Context, codes []string) ([]models.SentimentSnapshot, error) {
	now := time.Now()
	var resp hotListResponse
	err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    t.baseURL + "/fuyao/hot_list_data/out/hot_list/v1/stock",
		Headers: map[string]string{
			"User-Agent": userAgent,
		},
		QueryParams: map[string][]string{
			"stock_type": {"a"},
			"type":       {"hour"},
			"list_type":  {"normal"},
			"page_size":  {"100"},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, nil
	}

	type hotInfo struct {
		rank int
		rate float64
	}
	hot := make(map[string]hotInfo, len(resp.Data.StockList))
	for i, item := range resp.Data.StockList {
		if item.Code == "" {
			continue
		}
		hot[item.Code] = hotInfo{rank: i + 1, rate: float64(item.Rate)}
	}

	target := codes
	if len(target) == 0 {
		target = make([]string, 0, len(hot))
		for _, item := range resp.Data.StockList {
			if item.Code != "" {
				target = append(target, item.Code)
			}
		}
	}

	out := make([]models.SentimentSnapshot, 0, len(target))
	for _, code := range target {
		info, ok := hot[code]
		if !ok {
			continue
		}
		out = append(out, models.SentimentSnapshot{
			Code:         code,
			Source:       t.Name(),
			PostCount:    100 - info.rank,
			CommentCount: int(info.rate),
			Ts:           now,
		})
	}
	t.l.Info("hot list collect ok", applogger.Int("codes", len(out)))
	return out, nil
}
