package collector

import (
	"context"
	"time"

	"HeatPulse/internal/domain/models"
	"HeatPulse/internal/service/ratelimit"
	xhttp "HeatPulse/pkg/http"
	applogger "HeatPulse/pkg/logger"
)

// GubaSource pulls per-code discussion counts from the eastmoney guba
// forum API. One request per code, paced by a token bucket so the
// upstream never sees a burst.
type GubaSource struct {
	client  *xhttp.Client
	baseURL string
	limiter *ratelimit.Limiter
	rps     float64
	l       *applogger.Logger
}

func NewGubaSource(client *xhttp.Client, baseURL string, limiter *ratelimit.Limiter, rps float64, l *applogger.Logger) *GubaSource {
	if rps <= 0 {
		rps = 5
	}
	return &GubaSource{client: client, baseURL: baseURL, limiter: limiter, rps: rps, l: l}
}

func (g *GubaSource) Name() string { return "guba" }

type gubaPost struct {
	ReplyCount int `json:"rc"`
}

type gubaResponse struct {
	Count int        `json:"count"`
	Posts []gubaPost `json:"re"`
}

// Collect fetches discussion counts for each code. A failed code yields
// zero counts rather than an error; the row is still recorded so the
// sentiment join stays dense.
func (g *GubaSource) Collect(ctx context.Context, codes []string) ([]models.SentimentSnapshot, error) {
	now := time.Now()
	out := make([]models.SentimentSnapshot, 0, len(codes))
	for _, code := range codes {
		if err := g.wait(ctx); err != nil {
			return out, err
		}
		posts, comments := g.fetchOne(ctx, code)
		out = append(out, models.SentimentSnapshot{
			Code:         code,
			Source:       g.Name(),
			PostCount:    posts,
			CommentCount: comments,
			Ts:           now,
		})
	}
	g.l.Info("guba collect ok", applogger.Int("codes", len(out)))
	return out, nil
}

func (g *GubaSource) fetchOne(ctx context.Context, code string) (posts, comments int) {
	// guba addresses instruments by market-prefixed code
	market := "0"
	if len(code) > 0 && code[0] == '6' {
		market = "1"
	}
	var resp gubaResponse
	err := g.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    g.baseURL + "/interface/GetData.aspx",
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Referer":    g.baseURL + "/",
		},
		QueryParams: map[string][]string{
			"path": {"newtopic/api"},
			"ps":   {"1"},
			"p":    {"1"},
			"type": {"0"},
			"code": {market + code},
		},
	}, &resp)
	if err != nil {
		g.l.Debug("guba fetch failed",
			applogger.String("code", code),
			applogger.Error(err),
		)
		return 0, 0
	}
	for _, p := range resp.Posts {
		comments += p.ReplyCount
	}
	return resp.Count, comments
}

func (g *GubaSource) wait(ctx context.Context) error {
	for !g.limiter.Allow("guba", g.rps, g.rps) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}
