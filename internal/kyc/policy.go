// ==============================================================================
// KYC TRANSITION POLICY - internal/kyc/policy.go
// ==============================================================================
// Per-tier transition tables, built once and injected into the Reviewer
// ==============================================================================

package kyc

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPolicy is returned when a transition table breaks a policy invariant.
var ErrInvalidPolicy = errors.New("invalid kyc transition policy")

// Table maps a status to the statuses reachable from it in one step.
type Table map[Status][]Status

// Policy holds the transition tables for regular reviewers and privileged
// overseers. A Policy is immutable once constructed and safe for concurrent use.
//
// submitterOnly lists edges of the regular table that belong to the submitting
// organization rather than to a reviewer (resubmitting a rejected record). They
// are legal transitions, but a regular reviewer is never offered them.
type Policy struct {
	regular       map[Status]map[Status]struct{}
	privileged    map[Status]map[Status]struct{}
	submitterOnly map[Status]map[Status]struct{}
	digest        string
}

// defaultRegular is the authoritative rule set for regular reviewers.
func defaultRegular() Table {
	return Table{
		StatusNotSubmitted:  {StatusPending, StatusSubmitted},
		StatusPending:       {StatusSubmitted},
		StatusSubmitted:     {StatusInReview, StatusNeedsMoreInfo, StatusRejected},
		StatusInReview:      {StatusNeedsMoreInfo, StatusReviewed, StatusRejected},
		StatusNeedsMoreInfo: {StatusSubmitted, StatusInReview, StatusRejected},
		StatusReviewed:      {StatusApproved, StatusRejected, StatusInReview},
		StatusApproved:      {},
		StatusRejected:      {StatusSubmitted},
	}
}

// defaultPrivileged equals the regular table except that terminal states can be reopened.
func defaultPrivileged() Table {
	t := defaultRegular()
	t[StatusApproved] = []Status{StatusInReview, StatusRejected}
	t[StatusRejected] = []Status{StatusSubmitted, StatusInReview}
	return t
}

func defaultSubmitterOnly() Table {
	return Table{
		StatusRejected: {StatusSubmitted},
	}
}

var defaultPolicy = mustPolicy(NewPolicy(defaultRegular(), defaultPrivileged(), defaultSubmitterOnly()))

// DefaultPolicy returns the built-in transition policy.
func DefaultPolicy() *Policy {
	return defaultPolicy
}

func mustPolicy(p *Policy, err error) *Policy {
	if err != nil {
		panic(err)
	}
	return p
}

// NewPolicy copies and validates the given tables. Both tables must cover every
// status, reference only known statuses, contain no self loops, and the
// privileged table must include every regular edge. submitterOnly may be nil.
// Finality must agree with the reviewer-facing regular edges: a status is final
// exactly when a regular reviewer has nowhere to move it.
func NewPolicy(regular, privileged, submitterOnly Table) (*Policy, error) {
	reg, err := buildSet("regular", regular, true)
	if err != nil {
		return nil, err
	}
	priv, err := buildSet("privileged", privileged, true)
	if err != nil {
		return nil, err
	}
	sub, err := buildSet("submitter_only", submitterOnly, false)
	if err != nil {
		return nil, err
	}

	for from, targets := range sub {
		for to := range targets {
			if _, ok := reg[from][to]; !ok {
				return nil, fmt.Errorf("%w: submitter_only edge %s -> %s is not in the regular table", ErrInvalidPolicy, from, to)
			}
		}
	}

	for _, s := range statusOrder {
		for to := range reg[s] {
			if _, ok := priv[s][to]; !ok {
				return nil, fmt.Errorf("%w: privileged table lacks regular edge %s -> %s", ErrInvalidPolicy, s, to)
			}
		}
	}

	p := &Policy{regular: reg, privileged: priv, submitterOnly: sub}
	for _, s := range statusOrder {
		open := len(p.ReviewerNextStates(s, false)) > 0
		if IsFinal(s) && open {
			return nil, fmt.Errorf("%w: final status %s has reviewer transitions", ErrInvalidPolicy, s)
		}
		if !IsFinal(s) && !open {
			return nil, fmt.Errorf("%w: non-final status %s has no reviewer transitions", ErrInvalidPolicy, s)
		}
	}

	return p, nil
}

func buildSet(name string, t Table, complete bool) (map[Status]map[Status]struct{}, error) {
	out := make(map[Status]map[Status]struct{}, len(statusOrder))
	for from, targets := range t {
		if !Valid(from) {
			return nil, fmt.Errorf("%w: %s table has unknown status %q", ErrInvalidPolicy, name, from)
		}
		set := make(map[Status]struct{}, len(targets))
		for _, to := range targets {
			if !Valid(to) {
				return nil, fmt.Errorf("%w: %s table has unknown target %q from %s", ErrInvalidPolicy, name, to, from)
			}
			if to == from {
				return nil, fmt.Errorf("%w: %s table has self transition on %s", ErrInvalidPolicy, name, from)
			}
			set[to] = struct{}{}
		}
		out[from] = set
	}
	if complete {
		for _, s := range statusOrder {
			if _, ok := out[s]; !ok {
				return nil, fmt.Errorf("%w: %s table is missing status %s", ErrInvalidPolicy, name, s)
			}
		}
	}
	return out, nil
}

// AvailableNextStates returns every status reachable from s in one step for the
// given tier, in lifecycle order. Unknown statuses yield an empty slice.
func (p *Policy) AvailableNextStates(s Status, privileged bool) []Status {
	table := p.regular
	if privileged {
		table = p.privileged
	}
	return ordered(table[s], nil)
}

// ReviewerNextStates is AvailableNextStates minus the submitter-only edges for a
// regular reviewer. A privileged overseer sees the full privileged table.
func (p *Policy) ReviewerNextStates(s Status, privileged bool) []Status {
	if privileged {
		return ordered(p.privileged[s], nil)
	}
	return ordered(p.regular[s], p.submitterOnly[s])
}

func (p *Policy) allows(from, to Status, privileged bool) bool {
	table := p.regular
	if privileged {
		table = p.privileged
	}
	_, ok := table[from][to]
	return ok
}

// Digest identifies the policy source; empty for programmatic policies.
func (p *Policy) Digest() string {
	return p.digest
}

// Tables returns copies of the regular and privileged tables.
func (p *Policy) Tables() (regular, privileged Table) {
	regular = make(Table, len(p.regular))
	privileged = make(Table, len(p.privileged))
	for _, s := range statusOrder {
		regular[s] = ordered(p.regular[s], nil)
		privileged[s] = ordered(p.privileged[s], nil)
	}
	return regular, privileged
}

func ordered(set, exclude map[Status]struct{}) []Status {
	out := make([]Status, 0, len(set))
	for _, s := range statusOrder {
		if _, ok := set[s]; !ok {
			continue
		}
		if _, skip := exclude[s]; skip {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ==============================================================================
// POLICY FILE LOADING
// ==============================================================================

type policyFile struct {
	Regular       map[string][]string `yaml:"regular"`
	Privileged    map[string][]string `yaml:"privileged"`
	SubmitterOnly map[string][]string `yaml:"submitter_only"`
}

// LoadPolicy reads an operator-supplied YAML policy and validates it with NewPolicy.
// The returned policy carries a sha256 digest of the file contents.
func LoadPolicy(path string) (*Policy, error) {
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes a YAML policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	regular, err := toTable(f.Regular)
	if err != nil {
		return nil, err
	}
	privileged, err := toTable(f.Privileged)
	if err != nil {
		return nil, err
	}
	submitterOnly, err := toTable(f.SubmitterOnly)
	if err != nil {
		return nil, err
	}

	p, err := NewPolicy(regular, privileged, submitterOnly)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	p.digest = "sha256:" + hex.EncodeToString(sum[:])
	return p, nil
}

func toTable(raw map[string][]string) (Table, error) {
	t := make(Table, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		from, err := ParseStatus(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
		}
		targets := make([]Status, 0, len(raw[k]))
		for _, v := range raw[k] {
			to, err := ParseStatus(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
			}
			targets = append(targets, to)
		}
		t[from] = targets
	}
	return t, nil
}
