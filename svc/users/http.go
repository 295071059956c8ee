package users

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPConfig points at the user service.
type HTTPConfig struct {
	BaseURL string        `env:"USER_SERVICE_URL"`
	Timeout time.Duration `env:"USER_SERVICE_TIMEOUT" envDefault:"5s"`
}

// HTTPDirectory fetches profiles from GET {base}/api/v1/users/{id}, which
// answers with the standard {success, data, error, message} envelope.
type HTTPDirectory struct {
	http *resty.Client
}

// NewHTTPDirectory creates a user-service client.
func NewHTTPDirectory(cfg HTTPConfig) (*HTTPDirectory, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("users: USER_SERVICE_URL is required")
	}
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	return &HTTPDirectory{http: rc}, nil
}

type profileEnvelope struct {
	Success bool    `json:"success"`
	Data    Profile `json:"data"`
	Error   string  `json:"error,omitempty"`
}

func (d *HTTPDirectory) Lookup(ctx context.Context, userID string) (Profile, error) {
	var env profileEnvelope
	resp, err := d.http.R().
		SetContext(ctx).
		SetPathParam("id", userID).
		SetResult(&env).
		Get("/api/v1/users/{id}")
	if err != nil {
		return Profile{}, errors.Join(ErrLookupFailed, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return Profile{}, ErrUserNotFound
	case resp.IsError():
		return Profile{}, fmt.Errorf("%w: user service status %d", ErrLookupFailed, resp.StatusCode())
	case !env.Success:
		return Profile{}, fmt.Errorf("%w: %s", ErrLookupFailed, env.Error)
	}

	if env.Data.ID == "" {
		env.Data.ID = userID
	}
	return env.Data, nil
}
