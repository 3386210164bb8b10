// Package validator decides whether a candidate image URL is eligible
// for ingestion.
package validator

import (
	"net/url"

	"github.com/sotarylen/mediapress/internal/domain"
)

// Reason is a typed rejection reason.
type Reason string

// Rejection reasons, in rule order.
const (
	ReasonNotExternal    Reason = "not-external"
	ReasonDomainExcluded Reason = "domain-excluded"
	ReasonTypeExcluded   Reason = "type-excluded"
	ReasonMalformedURL   Reason = "malformed-url"
	ReasonCustom         Reason = "custom"
)

// Result is the outcome of validating one candidate URL.
type Result struct {
	Eligible bool
	Reason   Reason
	Message  string
}

// eligible is the success result.
var eligible = Result{Eligible: true}

// Decision is an extension-point verdict.
type Decision int

// Extension-point verdicts.
const (
	// DecisionDefault leaves the rule outcome unchanged.
	DecisionDefault Decision = iota
	// DecisionAllow confirms eligibility.
	DecisionAllow
	// DecisionVeto rejects a URL the rules accepted.
	DecisionVeto
)

// Hook is the extension point consulted after the built-in rules pass.
type Hook func(rawURL string, doc *domain.Document) Decision

// Config holds validation configuration.
type Config struct {
	// SiteHost is the local site's host. References to it are skipped.
	SiteHost string
	// ExcludedDomains lists hosts that must never be ingested.
	ExcludedDomains []string
	// ExcludedTypes lists document types that are never processed.
	ExcludedTypes []string
}

// Validator applies the eligibility rules in order, short-circuiting on
// the first failure.
type Validator struct {
	siteHost        string
	excludedDomains map[string]struct{}
	excludedTypes   map[string]struct{}
	hook            Hook
}

// New creates a validator from configuration and an optional hook.
func New(cfg Config, hook Hook) *Validator {
	v := &Validator{
		siteHost:        cfg.SiteHost,
		excludedDomains: make(map[string]struct{}, len(cfg.ExcludedDomains)),
		excludedTypes:   make(map[string]struct{}, len(cfg.ExcludedTypes)),
		hook:            hook,
	}
	for _, d := range cfg.ExcludedDomains {
		v.excludedDomains[d] = struct{}{}
	}
	for _, t := range cfg.ExcludedTypes {
		v.excludedTypes[t] = struct{}{}
	}
	return v
}

// Validate runs the rules against one candidate URL in the context of
// the document it was found in.
func (v *Validator) Validate(rawURL string, doc *domain.Document) Result {
	parsed, parseErr := url.Parse(rawURL)

	// Rule 1: the reference must point off-site. Relative URLs and
	// data URIs have no host and are same-site by definition.
	host := ""
	if parseErr == nil {
		host = parsed.Host
	}
	if host == "" || host == v.siteHost {
		return Result{Reason: ReasonNotExternal, Message: "URL is not external to the site"}
	}

	// Rule 2: exact-host match against the excluded-domains list.
	if _, excluded := v.excludedDomains[host]; excluded {
		return Result{Reason: ReasonDomainExcluded, Message: "host is on the excluded-domains list"}
	}

	// Rule 3: the owning document's type must be processable.
	if doc != nil {
		if _, excluded := v.excludedTypes[doc.Type]; excluded {
			return Result{Reason: ReasonTypeExcluded, Message: "document type is excluded"}
		}
	}

	// Rule 4: syntactically valid absolute URL.
	if parseErr != nil || !parsed.IsAbs() {
		return Result{Reason: ReasonMalformedURL, Message: "URL is not a valid absolute URL"}
	}

	// Rule 5: the extension point may veto or confirm.
	if v.hook != nil {
		switch v.hook(rawURL, doc) {
		case DecisionVeto:
			return Result{Reason: ReasonCustom, Message: "rejected by extension hook"}
		case DecisionAllow, DecisionDefault:
		}
	}

	return eligible
}
