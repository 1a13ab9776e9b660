// Package authz provides the authorization gate for portfolio operations and
// the identity plumbing that turns an HTTP request into a CallerContext.
//
// The gate is a pure classification function. Callers are expected to load
// any state it needs (eligible emails, existing reviews) fresh from storage
// on every mutating call.
package authz

// Principal is an authenticated caller as reported by the identity provider.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email"`
	IsAdmin     bool   `json:"isAdmin"`
}

// CallerContext is threaded explicitly through every service operation.
// A nil Principal means the caller is anonymous.
type CallerContext struct {
	Principal     *Principal
	RequestID     string
	CorrelationID string
}

// Anonymous returns a CallerContext with no principal.
func Anonymous() CallerContext {
	return CallerContext{}
}

// AsPrincipal returns a CallerContext for the given principal.
func AsPrincipal(p Principal) CallerContext {
	return CallerContext{Principal: &p}
}

// Authenticated reports whether the caller carries a principal with an ID.
func (c CallerContext) Authenticated() bool {
	return c.Principal != nil && c.Principal.ID != ""
}

// IsAdmin reports whether the caller is an authenticated administrator.
func (c CallerContext) IsAdmin() bool {
	return c.Authenticated() && c.Principal.IsAdmin
}

// Actor returns a stable label for audit records.
func (c CallerContext) Actor() string {
	if !c.Authenticated() {
		return "anonymous"
	}
	if c.Principal.Email != "" {
		return c.Principal.Email
	}
	return c.Principal.ID
}

// Operation classifies what a call is allowed to do.
type Operation string

const (
	OpAdministrative Operation = "administrative"
	OpReviewWrite    Operation = "review-write"
	OpPublicRead     Operation = "public-read"
)

// Outcome is the result class of an authorization check.
type Outcome string

const (
	Allowed               Outcome = "allowed"
	DeniedUnauthenticated Outcome = "unauthenticated"
	DeniedForbidden       Outcome = "forbidden"
)

// DenyReason explains a denial in machine-readable form.
type DenyReason string

const (
	ReasonNone              DenyReason = ""
	ReasonNotAuthenticated  DenyReason = "not_authenticated"
	ReasonNotAdmin          DenyReason = "not_admin"
	ReasonAdminCannotReview DenyReason = "admin_cannot_review"
	ReasonNotEligible       DenyReason = "not_eligible"
	ReasonAlreadyReviewed   DenyReason = "already_reviewed"
	ReasonMissingTarget     DenyReason = "missing_target"
	ReasonUnknownOperation  DenyReason = "unknown_operation"
)

// Decision is returned by Gate.Authorize.
type Decision struct {
	Outcome Outcome    `json:"outcome"`
	Reason  DenyReason `json:"reason,omitempty"`
}

// Allowed reports whether the decision permits the operation.
func (d Decision) Allowed() bool {
	return d.Outcome == Allowed
}

// ReviewTarget is the live state of the item a review-write is aimed at.
type ReviewTarget struct {
	EligibleEmails  []string
	AlreadyReviewed bool
}
