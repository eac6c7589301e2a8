// Package posapi is the client of the POS backend's REST API.
//
// Importing it sets decimal.MarshalJSONWithoutQuotes for the whole process: amounts
// are encoded as JSON numbers, which is what the backend reads, and the console's
// --json output uses the same form.
package posapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pos_console/internal/config"
	"pos_console/internal/session"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	apiMediaType    = "application/json"
	requestIDHeader = "X-Request-ID"
)

var (
	// ErrUnauthorized is a 401: the token was rejected and the session has been invalidated.
	ErrUnauthorized = errors.New("pos api unauthorized")
	// ErrForbidden is a 403: the user's role may not perform the call.
	ErrForbidden = errors.New("pos api forbidden")
	ErrNotFound  = errors.New("pos api resource not found")
)

// APIError is a response received with a failure status.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("pos api error: %s: %s", e.Status, e.Message)
	case e.Body != "":
		return fmt.Sprintf("pos api error: %s: %s", e.Status, e.Body)
	default:
		return fmt.Sprintf("pos api error: %s", e.Status)
	}
}

// NetworkError means no response was received.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("pos api request %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Client issues the authenticated calls. None of them is retried.
type Client struct {
	http    *resty.Client
	session *session.Session
	logger  *zap.Logger
}

func NewClient(cfg config.Config, sess *session.Session, logger *zap.Logger) *Client {
	logger = logger.Named("posapi")
	httpClient := newHTTPClient(cfg, logger)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetHeaders(sess.AuthHeader())
		return nil
	})

	return &Client{
		http:    httpClient,
		session: sess,
		logger:  logger,
	}
}

func newHTTPClient(cfg config.Config, logger *zap.Logger) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIBaseURL, "/")).
		SetHeader("Accept", apiMediaType).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			req.SetHeader(requestIDHeader, uuid.NewString())
			return nil
		}).
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			logger.Debug("pos api response",
				zap.String("method", resp.Request.Method),
				zap.String("url", resp.Request.URL),
				zap.Int("status", resp.StatusCode()),
				zap.String("request_id", resp.Request.Header.Get(requestIDHeader)),
				zap.Duration("took", resp.Time()),
			)
			return nil
		})
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// send runs req and maps its outcome onto the error taxonomy.
func (c *Client) send(ctx context.Context, req *resty.Request, method, path string) error {
	if !c.session.IsAuthenticated() {
		return session.ErrNotAuthenticated
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("pos api unreachable", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	if resp.IsError() {
		return c.failure(ctx, resp)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, result any) error {
	req := c.request(ctx).SetResult(result)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	return c.send(ctx, req, http.MethodGet, path)
}

func (c *Client) write(ctx context.Context, method, path string, body, result any) error {
	req := c.request(ctx)
	if body != nil {
		req.SetHeader("Content-Type", apiMediaType).SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	return c.send(ctx, req, method, path)
}

func (c *Client) failure(ctx context.Context, resp *resty.Response) error {
	apiErr := apiErrorFromResponse(resp)

	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		if err := c.session.Invalidate(ctx, session.ReasonRejected); err != nil {
			c.logger.Warn("session invalidation incomplete", zap.Error(err))
		}
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Error())
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Error())
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	default:
		return apiErr
	}
}

func apiErrorFromResponse(resp *resty.Response) *APIError {
	body := strings.TrimSpace(resp.String())
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Body:       body,
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if body != "" && json.Unmarshal([]byte(body), &payload) == nil {
		apiErr.Message = strings.TrimSpace(payload.Message)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(payload.Error)
		}
	}
	if apiErr.Status == "" {
		apiErr.Status = fmt.Sprintf("%d %s", resp.StatusCode(), http.StatusText(resp.StatusCode()))
	}
	return apiErr
}
