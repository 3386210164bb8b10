package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sotarylen/mediapress/internal/domain"
	"github.com/sotarylen/mediapress/internal/validator"
)

func newValidator(hook validator.Hook) *validator.Validator {
	return validator.New(validator.Config{
		SiteHost:        "my-site.example",
		ExcludedDomains: []string{"blocked.example"},
		ExcludedTypes:   []string{"revision"},
	}, hook)
}

func TestValidate_Rules(t *testing.T) {
	t.Parallel()

	doc := &domain.Document{ID: 1, Type: "post"}

	tests := []struct {
		name     string
		url      string
		doc      *domain.Document
		eligible bool
		reason   validator.Reason
	}{
		{
			name:     "external host accepted",
			url:      "https://ext.example/pic.png",
			doc:      doc,
			eligible: true,
		},
		{
			name:   "same-site host rejected",
			url:    "https://my-site.example/pic.png",
			doc:    doc,
			reason: validator.ReasonNotExternal,
		},
		{
			name:   "relative URL rejected as not external",
			url:    "/uploads/pic.png",
			doc:    doc,
			reason: validator.ReasonNotExternal,
		},
		{
			name:   "data URI rejected as not external",
			url:    "data:image/png;base64,iVBOR",
			doc:    doc,
			reason: validator.ReasonNotExternal,
		},
		{
			name:   "excluded domain rejected",
			url:    "https://blocked.example/pic.png",
			doc:    doc,
			reason: validator.ReasonDomainExcluded,
		},
		{
			name:   "excluded document type rejected",
			url:    "https://ext.example/pic.png",
			doc:    &domain.Document{ID: 2, Type: "revision"},
			reason: validator.ReasonTypeExcluded,
		},
		{
			name:     "nil document skips the type rule",
			url:      "https://ext.example/pic.png",
			doc:      nil,
			eligible: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := newValidator(nil).Validate(tt.url, tt.doc)
			assert.Equal(t, tt.eligible, res.Eligible)
			if !tt.eligible {
				assert.Equal(t, tt.reason, res.Reason)
			}
		})
	}
}

func TestValidate_HookVeto(t *testing.T) {
	t.Parallel()

	veto := func(rawURL string, _ *domain.Document) validator.Decision {
		if rawURL == "https://ext.example/banned.png" {
			return validator.DecisionVeto
		}
		return validator.DecisionDefault
	}

	v := newValidator(veto)

	res := v.Validate("https://ext.example/banned.png", nil)
	assert.False(t, res.Eligible)
	assert.Equal(t, validator.ReasonCustom, res.Reason)

	res = v.Validate("https://ext.example/fine.png", nil)
	assert.True(t, res.Eligible)
}

func TestValidate_HookNotConsultedAfterRuleFailure(t *testing.T) {
	t.Parallel()

	called := false
	hook := func(string, *domain.Document) validator.Decision {
		called = true
		return validator.DecisionAllow
	}

	res := newValidator(hook).Validate("https://blocked.example/pic.png", nil)
	assert.False(t, res.Eligible)
	assert.False(t, called, "hook must only run after the built-in rules pass")
}
