package main

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"instantdmv-backend/lib/captcha"
	"instantdmv-backend/lib/configutil"
	"instantdmv-backend/lib/geo"
	"instantdmv-backend/lib/mailproxy"
	"instantdmv-backend/lib/serviceutil"
	"instantdmv-backend/lib/telemetry"
	"instantdmv-backend/services/watcher"
	"instantdmv-backend/services/watcher/db"
)

type Config struct {
	Port        int    `json:"port"`
	PortalUrl   string `json:"portal_url"`
	DevtoolsUrl string `json:"devtools_url"`
	ZipTable    string `json:"zip_table"`
	Database    string `json:"database"`

	RefreshIntervalSecs int `json:"refresh_interval_secs"`

	CaptchaBaseUrl   string `json:"captcha_baseurl"`
	CaptchaApiKey    string `json:"captcha_apikey"`
	MailproxyBaseUrl string `json:"mailproxy_baseurl"`

	// "remove-one" or "flush-all"
	RegistryPolicy string `json:"registry_policy"`
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to load configuration", err)
	}
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.DevtoolsUrl == "" {
		config.DevtoolsUrl = "ws://127.0.0.1:9222"
	}
	if config.RefreshIntervalSecs == 0 {
		config.RefreshIntervalSecs = 1
	}

	tel, err := telemetry.SetupFromEnv(ctx, "dmvd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer tel.Shutdown(context.Background())

	zipTable, err := geo.LoadTable(config.ZipTable)
	if err != nil {
		serviceutil.Fatal("failed to load zip table", err)
	}

	var queries *db.Queries
	if config.Database != "" {
		sqlite, err := sql.Open("sqlite", config.Database)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		_, err = sqlite.ExecContext(ctx, db.Schema)
		if err != nil && !isAlreadyExists(err) {
			serviceutil.Fatal("failed to apply schema", err)
		}
		queries = db.New(sqlite)
	}

	service := watcher.NewService(watcher.ServiceOptions{
		Registry: watcher.NewFalsePositiveRegistry(
			watcher.RemovalPolicy(config.RegistryPolicy),
		),
		Cache: watcher.NewAvailabilityCache(),
		Geo:   zipTable,
		Solver: captcha.NewClient(captcha.ClientOptions{
			BaseUrl: config.CaptchaBaseUrl,
			ApiKey:  config.CaptchaApiKey,
		}),
		Mail:    mailproxy.NewClient(config.MailproxyBaseUrl),
		Queries: queries,
		NewSurface: func(ctx context.Context) (watcher.Surface, error) {
			return watcher.NewBrowserSurface(ctx, watcher.BrowserOptions{
				DevtoolsUrl: config.DevtoolsUrl,
			})
		},
		PortalUrl:       config.PortalUrl,
		RefreshInterval: time.Duration(config.RefreshIntervalSecs) * time.Second,
	})

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)
	go serviceutil.StartHttpServer(config.Port, mux)

	<-ctx.Done()
}

// sqlite reports re-applied schemas as "table ... already exists"
func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}
