// Package captcha talks to a 2captcha-compatible solving service.
// Solves are slow (tens of seconds), the caller is expected to treat
// them as ordinary awaited I/O.
package captcha

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/captcha")

type Client struct {
	http         *resty.Client
	apiKey       string
	pollInterval time.Duration
}

type ClientOptions struct {
	BaseUrl string
	ApiKey  string
	// defaults to 5s when unset
	PollInterval time.Duration
}

func NewClient(options ClientOptions) Client {
	interval := options.PollInterval
	if interval == 0 {
		interval = time.Second * 5
	}
	return Client{
		http:         resty.New().SetBaseURL(options.BaseUrl),
		apiKey:       options.ApiKey,
		pollInterval: interval,
	}
}

type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Solve submits a recaptcha task for the given page and site key and
// polls until the service returns a response token.
func (c Client) Solve(ctx context.Context, pageUrl, siteKey string) (string, error) {
	ctx, span := tracer.Start(ctx, "Solve")
	defer span.End()

	var submitted apiResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":       c.apiKey,
			"method":    "userrecaptcha",
			"googlekey": siteKey,
			"pageurl":   pageUrl,
			"json":      "1",
		}).
		SetResult(&submitted).
		Get("/in.php")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if res.IsError() || submitted.Status != 1 {
		err = fmt.Errorf("submit captcha: %s", submitted.Request)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}

		var polled apiResponse
		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"key":    c.apiKey,
				"action": "get",
				"id":     submitted.Request,
				"json":   "1",
			}).
			SetResult(&polled).
			Get("/res.php")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		if res.IsError() {
			err = fmt.Errorf("poll captcha: status %d", res.StatusCode())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		if polled.Status == 1 {
			return polled.Request, nil
		}
		if polled.Request != "CAPCHA_NOT_READY" {
			err = fmt.Errorf("solve captcha: %s", polled.Request)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
	}
}
