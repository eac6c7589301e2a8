package posapi

import (
	"context"
	"net/http"

	"pos_console/internal/config"
	"pos_console/internal/session"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const loginPath = "/auth/login"

// AuthClient performs the one unauthenticated call, the login.
type AuthClient struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewAuthClient(cfg config.Config, logger *zap.Logger) *AuthClient {
	logger = logger.Named("auth")
	return &AuthClient{
		http:   newHTTPClient(cfg, logger),
		logger: logger,
	}
}

func (a *AuthClient) Authenticate(ctx context.Context, username, password string) (string, error) {
	var out loginResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", apiMediaType).
		SetBody(loginRequest{Username: username, Password: password}).
		SetResult(&out).
		Post(loginPath)
	if err != nil {
		return "", &NetworkError{Method: http.MethodPost, Path: loginPath, Err: err}
	}
	if resp.IsError() {
		apiErr := apiErrorFromResponse(resp)
		message := apiErr.Message
		if message == "" {
			message = "invalid credentials (" + apiErr.Status + ")"
		}
		return "", &session.AuthenticationError{Message: message, Err: apiErr}
	}
	return out.JWTToken, nil
}
