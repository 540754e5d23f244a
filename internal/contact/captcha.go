package contact

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/foundation/errors"
)

// Verifier checks a CAPTCHA response token before a submission is
// accepted.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// PassVerifier accepts every token. Used when no CAPTCHA is configured.
type PassVerifier struct{}

func (PassVerifier) Verify(context.Context, string, string) error { return nil }

// SiteVerifier posts tokens to a siteverify-style endpoint. reCAPTCHA,
// hCaptcha, and Turnstile all share this request and response shape.
type SiteVerifier struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
}

// NewVerifier builds the verifier matching the CAPTCHA configuration.
// A disabled configuration yields a PassVerifier.
func NewVerifier(cfg config.CaptchaConfig) (Verifier, error) {
	if !cfg.Enabled {
		return PassVerifier{}, nil
	}
	if cfg.Secret == "" || cfg.VerifyURL == "" {
		return nil, errors.ConfigError("captcha requires secret and verify_url").Build()
	}
	return &SiteVerifier{
		secret:     cfg.Secret,
		verifyURL:  cfg.VerifyURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify posts the token and rejects the submission unless the endpoint
// reports success.
func (v *SiteVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return errors.CaptchaError("captcha token missing").Build()
	}

	params := url.Values{}
	params.Set("secret", v.secret)
	params.Set("response", token)
	if remoteIP != "" {
		params.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(params.Encode()))
	if err != nil {
		return errors.CaptchaError("failed to build verify request").WithCause(err).Build()
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return errors.NetworkError("captcha verify request failed").WithCause(err).Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.CaptchaError("captcha verify endpoint rejected the request").
			WithContext("status", resp.Status).
			Build()
	}

	var result siteVerifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&result); err != nil {
		return errors.CaptchaError("captcha verify response unreadable").WithCause(err).Build()
	}
	if !result.Success {
		return errors.CaptchaError("captcha check failed").
			WithContext("codes", strings.Join(result.ErrorCodes, ",")).
			Build()
	}
	return nil
}
