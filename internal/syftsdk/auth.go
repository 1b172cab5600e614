package syftsdk

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/imroc/req/v3"
	"github.com/openmined/syftbox-client/internal/utils"
)

const (
	authOtpRequest = "/auth/otp/request"
	authOtpVerify  = "/auth/otp/verify"
	authRefresh    = "/auth/refresh"

	// access tokens within this window of expiry are refreshed proactively
	tokenExpirySkew = 30 * time.Second
)

var otpRegex = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// IsValidOTP reports whether code looks like a server-issued one-time
// password: 8 uppercase alphanumeric characters.
func IsValidOTP(code string) bool {
	return otpRegex.MatchString(code)
}

func authClient(serverURL string) *req.Client {
	return req.C().
		SetBaseURL(serverURL).
		SetUserAgent(SyftBoxUserAgent).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal).
		SetCommonErrorResult(&APIError{})
}

// RequestEmailCode starts the email verification flow by requesting a
// one-time password from the server.
func RequestEmailCode(ctx context.Context, serverURL string, email string) error {
	if !utils.IsValidURL(serverURL) {
		return ErrNoServerURL
	}
	if !utils.IsValidEmail(email) {
		return ErrInvalidEmail
	}

	resp, err := authClient(serverURL).R().
		SetContext(ctx).
		SetBody(&VerifyEmailRequest{Email: email}).
		Post(authOtpRequest)

	if err := handleAPIError(resp, err, "auth otp request"); err != nil {
		return err
	}

	return nil
}

// VerifyEmailCode exchanges an OTP for an access/refresh token pair.
func VerifyEmailCode(ctx context.Context, serverURL string, codeReq *VerifyEmailCodeRequest) (*AuthTokenResponse, error) {
	if !utils.IsValidURL(serverURL) {
		return nil, ErrNoServerURL
	}
	if !IsValidOTP(codeReq.Code) {
		return nil, ErrInvalidOTP
	}

	var tokens *AuthTokenResponse
	resp, err := authClient(serverURL).R().
		SetContext(ctx).
		SetBody(codeReq).
		SetSuccessResult(&tokens).
		Post(authOtpVerify)

	if err := handleAPIError(resp, err, "auth otp verify"); err != nil {
		return nil, err
	}

	if tokens == nil || tokens.RefreshToken == "" {
		return nil, fmt.Errorf("auth otp verify: empty token response")
	}

	return tokens, nil
}

// RefreshAuthTokens exchanges a refresh token for a new token pair.
func RefreshAuthTokens(ctx context.Context, serverURL string, refreshToken string) (*AuthTokenResponse, error) {
	if !utils.IsValidURL(serverURL) {
		return nil, ErrNoServerURL
	}
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	var tokens *AuthTokenResponse
	resp, err := authClient(serverURL).R().
		SetContext(ctx).
		SetBody(&RefreshTokenRequest{RefreshToken: refreshToken}).
		SetSuccessResult(&tokens).
		Post(authRefresh)

	if err := handleAPIError(resp, err, "auth refresh"); err != nil {
		return nil, err
	}

	if tokens == nil || tokens.AccessToken == "" {
		return nil, fmt.Errorf("auth refresh: empty token response")
	}

	return tokens, nil
}

// ParseToken decodes a JWT's claims without verifying the signature (only
// the server holds the key) and checks the token type and expiry.
func ParseToken(tokenStr string, expect AuthTokenType) (*AuthClaims, error) {
	claims := &AuthClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if claims.Type != expect {
		return nil, fmt.Errorf("invalid token type: got %q, want %q", claims.Type, expect)
	}

	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("token expired at %s", claims.ExpiresAt.Time)
	}

	return claims, nil
}

// tokenNeedsRefresh reports whether the access token is absent, malformed,
// minted for another user, or expiring within the skew window.
func tokenNeedsRefresh(accessToken string, email string) bool {
	if accessToken == "" {
		return true
	}

	claims, err := ParseToken(accessToken, AccessToken)
	if err != nil {
		return true
	}

	if err := claims.Validate(email); err != nil {
		return true
	}

	if claims.ExpiresAt == nil {
		return false
	}

	return time.Until(claims.ExpiresAt.Time) < tokenExpirySkew
}
