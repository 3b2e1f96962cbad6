package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"HeatPulse/internal/domain/models"
	xhttp "HeatPulse/pkg/http"
	applogger "HeatPulse/pkg/logger"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// flexFloat tolerates the quote feed's mixed field encoding: numbers,
// quoted numbers, "-" for suspended instruments, and null all decode
// without error ("-" and null become zero).
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `"-"` || s == `""` || s == "-" {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// EastmoneyQuotes pulls the full A-share realtime quote board, paged.
type EastmoneyQuotes struct {
	client   *xhttp.Client
	baseURL  string
	pageSize int
	l        *applogger.Logger
}

func NewEastmoneyQuotes(client *xhttp.Client, baseURL string, pageSize int, l *applogger.Logger) *EastmoneyQuotes {
	if pageSize <= 0 {
		pageSize = 5000
	}
	return &EastmoneyQuotes{client: client, baseURL: baseURL, pageSize: pageSize, l: l}
}

type quoteRow struct {
	Price        flexFloat       `json:"f2"`
	ChangePct    flexFloat       `json:"f3"`
	Volume       flexFloat       `json:"f5"`
	Amount       flexFloat       `json:"f6"`
	TurnoverRate flexFloat       `json:"f8"`
	VolumeRatio  flexFloat       `json:"f10"`
	Code         string          `json:"f12"`
	Name         json.RawMessage `json:"f14"`
}

type quoteResponse struct {
	Data *struct {
		Total int        `json:"total"`
		Diff  []quoteRow `json:"diff"`
	} `json:"data"`
}

// Quotes fetches every page of the quote board and returns one snapshot
// per instrument. Rows without a code are dropped; a page-level failure
// aborts the whole pull.
func (e *EastmoneyQuotes) Quotes(ctx context.Context) ([]models.TradeSnapshot, error) {
	now := time.Now()
	var out []models.TradeSnapshot
	for page := 1; ; page++ {
		rows, total, err := e.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("quote page %d: %w", page, err)
		}
		for _, r := range rows {
			if r.Code == "" {
				continue
			}
			out = append(out, models.TradeSnapshot{
				Code:         r.Code,
				Name:         decodeName(r.Name),
				Price:        float64(r.Price),
				ChangePct:    float64(r.ChangePct),
				Volume:       float64(r.Volume),
				Amount:       float64(r.Amount),
				TurnoverRate: float64(r.TurnoverRate),
				VolumeRatio:  float64(r.VolumeRatio),
				Ts:           now,
			})
		}
		if len(rows) == 0 || len(out) >= total {
			break
		}
		// a feed that repeats its last page for out-of-range pn would
		// otherwise never terminate
		if page >= (total+e.pageSize-1)/e.pageSize {
			break
		}
	}
	e.l.Info("quote collect ok",
		applogger.Int("instruments", len(out)),
		applogger.Duration("duration_ms", time.Since(now)),
	)
	return out, nil
}

func (e *EastmoneyQuotes) fetchPage(ctx context.Context, page int) ([]quoteRow, int, error) {
	var resp quoteResponse
	err := e.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    e.baseURL + "/api/qt/clist/get",
		Headers: map[string]string{
			"User-Agent": userAgent,
		},
		QueryParams: map[string][]string{
			"pn":     {strconv.Itoa(page)},
			"pz":     {strconv.Itoa(e.pageSize)},
			"po":     {"1"},
			"np":     {"1"},
			"fltt":   {"2"},
			"invt":   {"2"},
			"fid":    {"f3"},
			"fs":     {"m:0 t:6,m:0 t:80,m:1 t:2,m:1 t:23"},
			"fields": {"f2,f3,f5,f6,f8,f10,f12,f14"},
		},
	}, &resp)
	if err != nil {
		return nil, 0, err
	}
	if resp.Data == nil {
		return nil, 0, nil
	}
	return resp.Data.Diff, resp.Data.Total, nil
}

func decodeName(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
