// Package gateway talks to the school backend's /auth endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/schoolhub-client/internal/logger"
	"github.com/dtroode/schoolhub-client/internal/model"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodySize     = 1 << 20
)

// Operation names used in GatewayError.Op and logs.
const (
	OpLogin   = "login"
	OpSignup  = "signup"
	OpLogout  = "logout"
	OpRefresh = "refresh"
	OpWhoAmI  = "whoami"
)

var _ model.Gateway = (*Client)(nil)

// Client is an HTTP JSON implementation of model.Gateway.
// Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout}, log)
}

// NewClientWithHTTP allows injecting the underlying http.Client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

func (c *Client) Login(ctx context.Context, creds model.LoginCredentials) (model.LoginResponse, error) {
	var resp model.LoginResponse
	err := c.do(ctx, call{
		op:         OpLogin,
		method:     http.MethodPost,
		path:       "/auth/login",
		body:       creds,
		out:        &resp,
		credential: true,
	})
	if err != nil {
		return model.LoginResponse{}, err
	}
	if resp.Token == "" {
		return model.LoginResponse{}, &model.GatewayError{Op: OpLogin, Kind: model.KindServer, Message: "response carries no token"}
	}
	return resp, nil
}

func (c *Client) Signup(ctx context.Context, profile model.SignupProfile) (model.SignupConfirmation, error) {
	var resp model.SignupConfirmation
	err := c.do(ctx, call{
		op:         OpSignup,
		method:     http.MethodPost,
		path:       "/auth/signup",
		body:       profile,
		out:        &resp,
		credential: true,
	})
	if err != nil {
		return model.SignupConfirmation{}, err
	}
	return resp, nil
}

func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, call{
		op:     OpLogout,
		method: http.MethodPost,
		path:   "/auth/logout",
		token:  accessToken,
	})
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (model.RefreshResponse, error) {
	if refreshToken == "" {
		return model.RefreshResponse{}, &model.GatewayError{
			Op:      OpRefresh,
			Kind:    model.KindUnauthenticated,
			Message: "no refresh token held",
			Err:     model.ErrNoRefreshToken,
		}
	}

	var resp model.RefreshResponse
	err := c.do(ctx, call{
		op:     OpRefresh,
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   map[string]string{"refreshToken": refreshToken},
		out:    &resp,
	})
	if err != nil {
		return model.RefreshResponse{}, err
	}
	if resp.Token == "" {
		return model.RefreshResponse{}, &model.GatewayError{Op: OpRefresh, Kind: model.KindServer, Message: "response carries no token"}
	}
	return resp, nil
}

func (c *Client) WhoAmI(ctx context.Context, accessToken string) (model.User, error) {
	var user model.User
	err := c.do(ctx, call{
		op:     OpWhoAmI,
		method: http.MethodGet,
		path:   "/auth/me",
		token:  accessToken,
		out:    &user,
	})
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

type call struct {
	op     string
	method string
	path   string
	token  string
	body   any
	out    any
	// credential marks login/signup, where any 4xx is a rejected input.
	credential bool
}

func (c *Client) do(ctx context.Context, cl call) error {
	var payload io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return &model.GatewayError{Op: cl.op, Kind: model.KindNetwork, Message: "failed to encode request", Err: err}
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, payload)
	if err != nil {
		return &model.GatewayError{Op: cl.op, Kind: model.KindNetwork, Message: "failed to build request", Err: err}
	}

	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("Gateway: request failed", "op", cl.op, "request_id", requestID, "error", err)
		return &model.GatewayError{Op: cl.op, Kind: model.KindNetwork, Message: "backend unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	c.log.Debug("Gateway: request done",
		"op", cl.op,
		"method", cl.method,
		"path", cl.path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)
	if err != nil {
		return &model.GatewayError{Op: cl.op, Kind: model.KindNetwork, Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &model.GatewayError{
			Op:      cl.op,
			Kind:    classify(resp.StatusCode, cl.credential),
			Status:  resp.StatusCode,
			Message: errorMessage(body, resp.StatusCode),
		}
	}

	data, err := unwrapEnvelope(body)
	if err != nil {
		var rejected *envelopeRejection
		if errors.As(err, &rejected) {
			kind := model.KindServer
			if cl.credential {
				kind = model.KindCredential
			}
			return &model.GatewayError{Op: cl.op, Kind: kind, Status: resp.StatusCode, Message: rejected.message}
		}
		return &model.GatewayError{Op: cl.op, Kind: model.KindServer, Status: resp.StatusCode, Message: "invalid response body", Err: err}
	}

	if cl.out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, cl.out); err != nil {
		return &model.GatewayError{Op: cl.op, Kind: model.KindServer, Status: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}

func classify(status int, credential bool) model.GatewayErrorKind {
	switch {
	case status >= 500:
		return model.KindServer
	case credential && status >= 400:
		return model.KindCredential
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return model.KindUnauthenticated
	default:
		return model.KindServer
	}
}

type envelopeRejection struct {
	message string
}

func (e *envelopeRejection) Error() string {
	return fmt.Sprintf("backend rejected request: %s", e.message)
}

// unwrapEnvelope accepts both bare payloads and {success, data, message} wrappers.
func unwrapEnvelope(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return trimmed, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}

	rawSuccess, ok := fields["success"]
	if !ok {
		return trimmed, nil
	}

	var success bool
	if err := json.Unmarshal(rawSuccess, &success); err != nil {
		return nil, fmt.Errorf("invalid success flag: %w", err)
	}
	if !success {
		return nil, &envelopeRejection{message: errorMessage(trimmed, 0)}
	}
	if data, ok := fields["data"]; ok {
		return data, nil
	}
	return trimmed, nil
}

func errorMessage(body []byte, status int) string {
	var fields struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &fields); err == nil {
		if fields.Message != "" {
			return fields.Message
		}
		if fields.Error != "" {
			return fields.Error
		}
	}
	if status != 0 {
		return http.StatusText(status)
	}
	return "request failed"
}
