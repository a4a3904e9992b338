// Package mailproxy issues disposable proxy email addresses so the
// caller's real address never reaches the portal.
package mailproxy

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/mailproxy")

type Client struct {
	http *resty.Client
}

func NewClient(baseUrl string) Client {
	return Client{http: resty.New().SetBaseURL(baseUrl)}
}

type registerRequest struct {
	RealEmail  string `json:"real_email"`
	ExpireDate string `json:"expire_date"`
}

type registerResponse struct {
	ProxyEmail string `json:"proxy_email"`
}

// Register obtains a proxy address forwarding to realEmail until expire.
func (c Client) Register(ctx context.Context, realEmail string, expire time.Time) (string, error) {
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	var out registerResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(registerRequest{
			RealEmail:  realEmail,
			ExpireDate: expire.Format("2006-01-02"),
		}).
		SetResult(&out).
		Post("/register")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if res.IsError() {
		err = fmt.Errorf("register proxy email: status %d", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if out.ProxyEmail == "" {
		err = fmt.Errorf("register proxy email: empty address in response")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return out.ProxyEmail, nil
}
