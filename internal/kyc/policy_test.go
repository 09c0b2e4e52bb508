package kyc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultPolicyYAML = `
regular:
  not_submitted: [pending, submitted]
  pending: [submitted]
  submitted: [in_review, needs_more_info, rejected]
  in_review: [needs_more_info, reviewed, rejected]
  needs_more_info: [submitted, in_review, rejected]
  reviewed: [approved, rejected, in_review]
  approved: []
  rejected: [submitted]
privileged:
  not_submitted: [pending, submitted]
  pending: [submitted]
  submitted: [in_review, needs_more_info, rejected]
  in_review: [needs_more_info, reviewed, rejected]
  needs_more_info: [submitted, in_review, rejected]
  reviewed: [approved, rejected, in_review]
  approved: [in_review, rejected]
  rejected: [submitted, in_review]
submitter_only:
  rejected: [submitted]
`

func TestParsePolicy_MatchesDefault(t *testing.T) {
	p, err := ParsePolicy([]byte(defaultPolicyYAML))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Digest(), "sha256:"))

	wantRegular, wantPrivileged := DefaultPolicy().Tables()
	gotRegular, gotPrivileged := p.Tables()
	assert.Equal(t, wantRegular, gotRegular)
	assert.Equal(t, wantPrivileged, gotPrivileged)
	assert.Empty(t, DefaultPolicy().Digest())
}

func TestLoadPolicy_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kyc-policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(defaultPolicyYAML), 0o600))

	p, err := LoadPolicy(path)
	require.NoError(t, err)

	again, err := ParsePolicy([]byte(defaultPolicyYAML))
	require.NoError(t, err)
	assert.Equal(t, again.Digest(), p.Digest())

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewPolicy_RejectsBrokenTables(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(regular, privileged, submitter Table)
		detail string
	}{
		{
			name:   "privileged drops a regular edge",
			mutate: func(_, privileged, _ Table) { privileged[StatusSubmitted] = []Status{StatusInReview} },
			detail: "privileged table lacks regular edge",
		},
		{
			name:   "self loop",
			mutate: func(regular, _, _ Table) { regular[StatusPending] = []Status{StatusPending} },
			detail: "self transition",
		},
		{
			name:   "missing status key",
			mutate: func(regular, _, _ Table) { delete(regular, StatusReviewed) },
			detail: "missing status reviewed",
		},
		{
			name:   "unknown target",
			mutate: func(_, privileged, _ Table) { privileged[StatusApproved] = []Status{"archived"} },
			detail: "unknown target",
		},
		{
			name: "final status reachable by a regular reviewer",
			mutate: func(regular, privileged, _ Table) {
				regular[StatusApproved] = []Status{StatusInReview}
			},
			detail: "final status approved",
		},
		{
			name:   "submitter edge outside the regular table",
			mutate: func(_, _, submitter Table) { submitter[StatusApproved] = []Status{StatusSubmitted} },
			detail: "submitter_only edge",
		},
		{
			name:   "dead-end non-final status",
			mutate: func(regular, _, submitter Table) { submitter[StatusPending] = []Status{StatusSubmitted} },
			detail: "non-final status pending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regular, privileged, submitter := defaultRegular(), defaultPrivileged(), defaultSubmitterOnly()
			tt.mutate(regular, privileged, submitter)

			_, err := NewPolicy(regular, privileged, submitter)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
			assert.Contains(t, err.Error(), tt.detail)
		})
	}
}

func TestNewPolicy_CopiesInputs(t *testing.T) {
	regular := defaultRegular()
	p, err := NewPolicy(regular, defaultPrivileged(), defaultSubmitterOnly())
	require.NoError(t, err)

	regular[StatusPending] = []Status{StatusRejected}
	assert.Equal(t, []Status{StatusSubmitted}, p.AvailableNextStates(StatusPending, false))
}

func TestNewPolicy_WithoutSubmitterEdgesRejectedIsNotFinal(t *testing.T) {
	_, err := NewPolicy(defaultRegular(), defaultPrivileged(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "final status rejected")
}

func TestParsePolicy_RejectsUnknownNames(t *testing.T) {
	_, err := ParsePolicy([]byte("regular:\n  archived: [approved]\n"))
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = ParsePolicy([]byte("regular: [not, a, map]"))
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestAvailableNextStates_UnknownStatus(t *testing.T) {
	assert.Empty(t, DefaultPolicy().AvailableNextStates(Status("archived"), true))
	assert.NotNil(t, DefaultPolicy().AvailableNextStates(Status("archived"), false))
}
