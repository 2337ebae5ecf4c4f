package oauth2

import "fmt"

// ReauthReason explains why the browser has to go through the provider's
// authorization page again.
type ReauthReason string

const (
	ReasonExpiredGrant       ReauthReason = "expired_grant"
	ReasonMissingToken       ReauthReason = "missing_token"
	ReasonMissingConsent     ReauthReason = "missing_consent"
	ReasonInvalidToken       ReauthReason = "invalid_token"
	ReasonUnexpectedResponse ReauthReason = "unexpected_response"
)

// FailureReason classifies provider failures that re-authorizing will not fix.
type FailureReason string

const (
	ReasonRateLimited       FailureReason = "rate_limited"
	ReasonUpstreamError     FailureReason = "upstream_error"
	ReasonProfileFetchError FailureReason = "profile_fetch_error"
)

// ReauthRequired is returned when the user must authorize again. AuthorizeURL
// is always populated.
type ReauthRequired struct {
	Reason       ReauthReason
	AuthorizeURL string
}

func (e *ReauthRequired) Error() string {
	return fmt.Sprintf("provider re-authorization required: %s", e.Reason)
}

// Failed is a provider failure to be reported as a retryable error.
type Failed struct {
	Reason FailureReason
	Status int // upstream HTTP status, 0 when no response was received
	Err    error
}

func (e *Failed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider call failed: %s: %v", e.Reason, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("provider call failed: %s (status %d)", e.Reason, e.Status)
	}
	return fmt.Sprintf("provider call failed: %s", e.Reason)
}

func (e *Failed) Unwrap() error {
	return e.Err
}
