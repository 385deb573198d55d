// Package domain contains pure, dependency-free domain models and types
// for the verification engine.
package domain

import (
	"fmt"
	"strconv"
)

// ClaimStatus is the verdict assigned to a single extracted claim.
// The set of valid statuses is closed.
type ClaimStatus string

const (
	// StatusVerified marks a claim that is supported by web evidence.
	StatusVerified ClaimStatus = "verified"
	// StatusUncertain marks a claim that could not be confirmed or refuted.
	StatusUncertain ClaimStatus = "uncertain"
	// StatusHallucination marks a claim or citation with no basis in
	// verifiable reality.
	StatusHallucination ClaimStatus = "hallucination"
)

// ClaimStatuses lists every valid ClaimStatus in display order.
var ClaimStatuses = []ClaimStatus{StatusVerified, StatusUncertain, StatusHallucination}

// ParseClaimStatus converts a raw status string into a ClaimStatus.
// It returns ErrInvalidClaimStatus for anything outside the closed set.
func ParseClaimStatus(s string) (ClaimStatus, error) {
	switch ClaimStatus(s) {
	case StatusVerified, StatusUncertain, StatusHallucination:
		return ClaimStatus(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidClaimStatus, s)
	}
}

// ClaimIDPrefix is prepended to the positional index of every claim.
const ClaimIDPrefix = "claim-"

// ClaimID returns the identifier for the claim at position index.
// Identifiers are always assigned locally and never taken from the
// external service.
func ClaimID(index int) string { return ClaimIDPrefix + strconv.Itoa(index) }

// DefaultSourceTitle labels a grounding source whose title was not reported.
const DefaultSourceTitle = "External Source"

// ClaimAnalysis is one extracted factual claim and its verdict.
type ClaimAnalysis struct {
	// ID is unique within a result and derived from the claim's position.
	ID string `json:"id"`

	// Text is the claim as restated by the analysis.
	Text string `json:"text"`

	// Status is the verdict for the claim.
	Status ClaimStatus `json:"status"`

	// Explanation is the free-text rationale behind the verdict.
	Explanation string `json:"explanation"`

	// Confidence is the externally supplied confidence, expected in [0,1].
	// A missing upstream value is recorded as 0.
	Confidence float64 `json:"confidence"`

	// SupportingEvidence is an optional excerpt backing the verdict.
	SupportingEvidence string `json:"supportingEvidence,omitempty" yaml:"supportingEvidence,omitempty"`
}

// GroundingSource is a web citation reported by the grounding service.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// NewGroundingSource builds a GroundingSource, substituting
// DefaultSourceTitle when title is empty. The boolean result is false when
// uri is empty; such sources carry no navigable value and must be dropped.
func NewGroundingSource(title, uri string) (GroundingSource, bool) {
	if uri == "" {
		return GroundingSource{}, false
	}
	if title == "" {
		title = DefaultSourceTitle
	}
	return GroundingSource{Title: title, URI: uri}, true
}

// VerificationResult is the outcome of one verification request.
// A result is immutable once constructed; the session that holds it
// replaces it wholesale on the next verification.
type VerificationResult struct {
	// OriginalText echoes the verified input.
	OriginalText string `json:"originalText" yaml:"originalText"`

	// OverallScore is the reliability score reported by the service,
	// expected in [0,100].
	OverallScore float64 `json:"overallScore" yaml:"overallScore"`

	// Claims are kept in the order the service returned them.
	Claims []ClaimAnalysis `json:"claims"`

	// Sources are kept in the order the service returned them, after
	// sources without a URI have been removed.
	Sources []GroundingSource `json:"sources"`
}

// ReliabilityLevel is a coarse reading of the overall score.
type ReliabilityLevel string

const (
	ReliabilityLow      ReliabilityLevel = "low"
	ReliabilityModerate ReliabilityLevel = "moderate"
	ReliabilityHigh     ReliabilityLevel = "high"
)

// Reliability maps the overall score onto a ReliabilityLevel.
// Scores below 50 are low and scores below 80 are moderate.
func (r *VerificationResult) Reliability() ReliabilityLevel {
	switch {
	case r.OverallScore < 50:
		return ReliabilityLow
	case r.OverallScore < 80:
		return ReliabilityModerate
	default:
		return ReliabilityHigh
	}
}

// ScoreBand is the indicator band a display surface uses for the score.
type ScoreBand string

const (
	ScoreBandGood ScoreBand = "good"
	ScoreBandFair ScoreBand = "fair"
	ScoreBandPoor ScoreBand = "poor"
)

// ScoreBand returns good above 70, fair above 40 and poor otherwise.
func (r *VerificationResult) ScoreBand() ScoreBand {
	switch {
	case r.OverallScore > 70:
		return ScoreBandGood
	case r.OverallScore > 40:
		return ScoreBandFair
	default:
		return ScoreBandPoor
	}
}

// StatusCounts returns the number of claims for every ClaimStatus.
// Statuses without claims are present with a zero count.
func (r *VerificationResult) StatusCounts() map[ClaimStatus]int {
	counts := make(map[ClaimStatus]int, len(ClaimStatuses))
	for _, s := range ClaimStatuses {
		counts[s] = 0
	}
	for _, c := range r.Claims {
		counts[c.Status]++
	}
	return counts
}
