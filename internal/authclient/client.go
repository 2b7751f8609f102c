// Package authclient performs the credential exchanges (login,
// register, refresh, logout) against the platform API and validates
// every payload shape before it is trusted.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mentorlink/mentorlink-client/internal/domain/user"
	"github.com/mentorlink/mentorlink-client/internal/observability"
)

// TokenPair is the opaque bearer credentials returned by the server.
// ExpiresIn is the optional self-reported access token lifetime in
// seconds; absence means the caller falls back to its own policy.
type TokenPair struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
}

// LoginResult couples the authenticated user with their token pair.
type LoginResult struct {
	User      user.User
	TokenPair TokenPair
}

type Client struct {
	baseURL  string
	client   *http.Client
	validate *validator.Validate
	log      *slog.Logger
	tracer   trace.Tracer
	prom     *observability.Prom

	// the backend wraps some payloads in a single {data: ...} envelope;
	// unwrapping is on by default but overridable since the trigger
	// condition server-side is not consistent
	unwrapEnvelope bool
	timeout        time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithMetrics(p *observability.Prom) Option {
	return func(c *Client) { c.prom = p }
}

func WithEnvelope(unwrap bool) Option {
	return func(c *Client) { c.unwrapEnvelope = unwrap }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         &http.Client{},
		validate:       newValidator(),
		log:            slog.Default(),
		tracer:         otel.Tracer("mentorlink/authclient"),
		unwrapEnvelope: true,
		timeout:        10 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// report validation errors with json field names, not Go field names
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return v
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginPayload struct {
	User         user.User `json:"user" validate:"required"`
	AccessToken  string    `json:"accessToken" validate:"required"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresIn    int64     `json:"expiresIn,omitempty"`
}

// Login exchanges credentials for an authenticated user and token
// pair. Input shape is checked locally first; a malformed email or a
// short password never reaches the network.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	req := loginRequest{Email: email, Password: password}

	if err := c.checkInput(req); err != nil {
		return LoginResult{}, err
	}

	var payload loginPayload

	err := c.exchange(ctx, "login", http.MethodPost, "/auth/login", req, "", &payload)

	if err != nil {
		return LoginResult{}, err
	}

	if err := c.checkShape("login", payload); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		User: payload.User,
		TokenPair: TokenPair{
			AccessToken:  payload.AccessToken,
			RefreshToken: payload.RefreshToken,
			ExpiresIn:    payload.ExpiresIn,
		},
	}, nil
}

// Register creates an account. It does not establish a session; the
// caller logs in afterwards.
func (c *Client) Register(ctx context.Context, email, name, password string) (user.User, error) {
	req := registerRequest{Email: email, Name: name, Password: password}

	if err := c.checkInput(req); err != nil {
		return user.User{}, err
	}

	var u user.User

	err := c.exchange(ctx, "register", http.MethodPost, "/auth/register", req, "", &u)

	if err != nil {
		return user.User{}, err
	}

	if err := c.checkShape("register", u); err != nil {
		return user.User{}, err
	}

	return u, nil
}

// Refresh trades a refresh token for a new token pair. The token
// travels as a query parameter, not in the body.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, newAuthError("no_refresh", "no refresh token available")
	}

	path := "/auth/refresh?refreshToken=" + url.QueryEscape(refreshToken)

	var pair TokenPair

	err := c.exchange(ctx, "refresh", http.MethodPost, path, nil, "", &pair)

	if err != nil {
		return TokenPair{}, err
	}

	if err := c.checkShape("refresh", pair); err != nil {
		return TokenPair{}, err
	}

	return pair, nil
}

// Logout asks the server to invalidate the access token. Best effort:
// the caller tears the local session down whether or not this
// succeeds.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.exchange(ctx, "logout", http.MethodPost, "/auth/logout", nil, accessToken, nil)
}

// checkInput validates a request struct locally and converts validator
// failures into a ValidationError with json field names.
func (c *Client) checkInput(req interface{}) error {
	err := c.validate.Struct(req)

	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors

	if !errors.As(err, &verrs) {
		return &Error{Kind: KindValidation, Message: "invalid input", Cause: err}
	}

	fields := make([]FieldError, 0, len(verrs))

	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: validationMessage(fe.Tag(), fe.Param()),
		})
	}

	return &Error{Kind: KindValidation, Message: "invalid input", Fields: fields}
}

// checkShape validates a decoded 2xx payload. A mismatch is contract
// drift, not a credential problem.
func (c *Client) checkShape(op string, payload interface{}) error {
	if err := c.validate.Struct(payload); err != nil {
		return newProtocolError(op+" payload failed shape validation", err)
	}
	return nil
}

// exchange performs one HTTP exchange and decodes the (optionally
// enveloped) 2xx body into out. Non-2xx responses come back as
// AuthError, undecodable 2xx bodies as ProtocolError.
func (c *Client) exchange(ctx context.Context, op, method, path string, body interface{}, bearer string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "auth."+op)
	defer span.End()

	start := time.Now()

	err := c.do(ctx, method, path, body, bearer, out)

	outcome := "ok"

	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			outcome = string(e.Kind)
		} else {
			outcome = "auth"
		}
	}

	span.SetAttributes(attribute.String("auth.outcome", outcome))

	if c.prom != nil {
		c.prom.ObserveExchange(op, outcome, time.Since(start))
	}

	if err != nil {
		c.log.DebugContext(ctx, "credential exchange failed", "op", op, "outcome", outcome, "err", err)
	}

	return err
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, bearer string, out interface{}) error {
	var bodyReader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return newProtocolError("marshal request body", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return newProtocolError("create request", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	req.Header.Set("User-Agent", "mentorlink-client/1.0")

	resp, err := c.client.Do(req)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newTimeoutError(method+" "+path, err)
		}
		return &Error{Kind: KindAuth, Code: "network_error", Message: "exchange failed", Cause: err}
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newTimeoutError(method+" "+path, err)
		}
		return newProtocolError("read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseServerError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}

	payload := raw

	if c.unwrapEnvelope {
		payload = unwrapData(raw)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return newProtocolError("decode response body", err)
	}

	return nil
}

// parseServerError maps a non-2xx body onto an AuthError, keeping the
// server's error code when the body follows the API error envelope.
func (c *Client) parseServerError(status int, raw []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		return newAuthError(envelope.Error.Code, envelope.Error.Message)
	}

	return newAuthError("http_"+fmt.Sprint(status), fmt.Sprintf("server rejected request with status %d", status))
}

// unwrapData strips a single level of {data: ...} nesting when the
// body is an object with a data key; anything else passes through
// untouched. Never recurses.
func unwrapData(raw []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(raw, &envelope); err != nil {
		return raw
	}

	if len(envelope.Data) == 0 {
		return raw
	}

	return envelope.Data
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
