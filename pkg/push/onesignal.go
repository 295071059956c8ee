package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

const defaultLanguage = "en"

// OneSignalClient sends notifications through the OneSignal REST API.
type OneSignalClient struct {
	http  *resty.Client
	appID string
}

// NewOneSignalClient creates a client from cfg.
func NewOneSignalClient(cfg Config) (*OneSignalClient, error) {
	if cfg.AppID == "" {
		return nil, fmt.Errorf("%w: AppID is required", ErrInvalidConfig)
	}
	if cfg.RESTAPIKey == "" {
		return nil, fmt.Errorf("%w: RESTAPIKey is required", ErrInvalidConfig)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://onesignal.com/api/v1"
	}

	rc := resty.New().
		SetBaseURL(cfg.APIURL).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetHeader("Authorization", "Basic "+cfg.RESTAPIKey)
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}

	return &OneSignalClient{http: rc, appID: cfg.AppID}, nil
}

type createNotification struct {
	AppID            string            `json:"app_id"`
	IncludePlayerIDs []string          `json:"include_player_ids"`
	Headings         map[string]string `json:"headings,omitempty"`
	Contents         map[string]string `json:"contents"`
	Data             map[string]any    `json:"data,omitempty"`
	URL              string            `json:"url,omitempty"`
	Priority         int               `json:"priority,omitempty"`
}

type createResponse struct {
	ID         string          `json:"id"`
	Recipients int             `json:"recipients"`
	Errors     json.RawMessage `json:"errors,omitempty"`
}

type errorResponse struct {
	Errors json.RawMessage `json:"errors"`
}

// Send posts msg to /notifications.
func (c *OneSignalClient) Send(ctx context.Context, msg Message) (Result, error) {
	if err := msg.Validate(); err != nil {
		return Result{}, err
	}

	body := createNotification{
		AppID:            c.appID,
		IncludePlayerIDs: msg.PlayerIDs,
		Contents:         map[string]string{defaultLanguage: msg.Body},
		Data:             msg.Data,
		URL:              msg.URL,
		Priority:         msg.Priority,
	}
	if msg.Title != "" {
		body.Headings = map[string]string{defaultLanguage: msg.Title}
	}

	var (
		res    createResponse
		apiErr errorResponse
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&res).
		SetError(&apiErr).
		Post("/notifications")
	if err != nil {
		return Result{}, errors.Join(ErrSendFailed, err)
	}

	if resp.IsError() {
		cause := fmt.Errorf("onesignal status %d: %s", resp.StatusCode(), string(apiErr.Errors))
		if permanentStatus(resp.StatusCode()) {
			return Result{}, errors.Join(ErrSendFailed, ErrRejected, cause)
		}
		return Result{}, errors.Join(ErrSendFailed, cause)
	}

	if res.ID == "" || res.Recipients == 0 {
		return Result{}, errors.Join(ErrSendFailed, ErrNoRecipients,
			fmt.Errorf("onesignal errors: %s", string(res.Errors)))
	}

	return Result{ID: res.ID, Recipients: res.Recipients}, nil
}

func permanentStatus(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout
}
