package authz

import "strings"

// Gate classifies a caller against an operation class.
type Gate struct{}

// NewGate creates a Gate.
func NewGate() *Gate {
	return &Gate{}
}

// Authorize evaluates caller for op. For OpReviewWrite the target must be
// non-nil and reflect storage as of this call.
func (g *Gate) Authorize(caller CallerContext, op Operation, target *ReviewTarget) Decision {
	switch op {
	case OpPublicRead:
		return Decision{Outcome: Allowed}

	case OpAdministrative:
		if !caller.Authenticated() {
			return deny(DeniedUnauthenticated, ReasonNotAuthenticated)
		}
		if !caller.Principal.IsAdmin {
			return deny(DeniedForbidden, ReasonNotAdmin)
		}
		return Decision{Outcome: Allowed}

	case OpReviewWrite:
		if !caller.Authenticated() {
			return deny(DeniedUnauthenticated, ReasonNotAuthenticated)
		}
		if caller.Principal.IsAdmin {
			return deny(DeniedForbidden, ReasonAdminCannotReview)
		}
		if target == nil {
			return deny(DeniedForbidden, ReasonMissingTarget)
		}
		if !EmailListed(target.EligibleEmails, caller.Principal.Email) {
			return deny(DeniedForbidden, ReasonNotEligible)
		}
		if target.AlreadyReviewed {
			return deny(DeniedForbidden, ReasonAlreadyReviewed)
		}
		return Decision{Outcome: Allowed}
	}

	return deny(DeniedForbidden, ReasonUnknownOperation)
}

// EdgeCheck is the subset of Authorize that can run without storage: it is
// used by HTTP middleware ahead of the service, which re-checks in full.
func (g *Gate) EdgeCheck(caller CallerContext, op Operation) Decision {
	if op != OpReviewWrite {
		return g.Authorize(caller, op, nil)
	}
	if !caller.Authenticated() {
		return deny(DeniedUnauthenticated, ReasonNotAuthenticated)
	}
	if caller.Principal.IsAdmin {
		return deny(DeniedForbidden, ReasonAdminCannotReview)
	}
	return Decision{Outcome: Allowed}
}

// EmailListed reports whether email appears in list. Comparison ignores
// surrounding whitespace and case. An empty email never matches.
func EmailListed(list []string, email string) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}
	for _, e := range list {
		if NormalizeEmail(e) == email {
			return true
		}
	}
	return false
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func deny(o Outcome, r DenyReason) Decision {
	return Decision{Outcome: o, Reason: r}
}
