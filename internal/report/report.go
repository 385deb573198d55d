// Package report renders verification results for terminals and machine
// consumers.
package report

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-veriai/internal/domain"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates s as a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Document is the machine-readable report: the result plus the readings a
// display surface derives from it.
type Document struct {
	Result       *domain.VerificationResult `json:"result" yaml:"result"`
	Reliability  domain.ReliabilityLevel    `json:"reliability" yaml:"reliability"`
	ScoreBand    domain.ScoreBand           `json:"scoreBand" yaml:"scoreBand"`
	StatusCounts map[domain.ClaimStatus]int `json:"statusCounts" yaml:"statusCounts"`
	Alignments   []Alignment                `json:"alignments" yaml:"alignments"`
}

// NewDocument derives a Document from result.
func NewDocument(result *domain.VerificationResult, threshold float64) Document {
	return Document{
		Result:       result,
		Reliability:  result.Reliability(),
		ScoreBand:    result.ScoreBand(),
		StatusCounts: result.StatusCounts(),
		Alignments:   Align(result.OriginalText, result.Claims, threshold),
	}
}

// Renderer writes reports. It is safe for concurrent use.
type Renderer struct {
	policy    *bluemonday.Policy
	threshold float64
}

// NewRenderer returns a Renderer using DefaultAlignThreshold.
func NewRenderer() *Renderer {
	return &Renderer{
		policy:    bluemonday.StrictPolicy(),
		threshold: DefaultAlignThreshold,
	}
}

// Render writes result to w in format.
func (r *Renderer) Render(w io.Writer, result *domain.VerificationResult, format Format) error {
	if result == nil {
		return fmt.Errorf("render: nil result")
	}
	doc := NewDocument(result, r.threshold)

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return r.renderText(w, doc)
	default:
		return fmt.Errorf("render: unknown format %q", format)
	}
}

// RenderError writes a failed verification in format.
func (r *Renderer) RenderError(w io.Writer, text string, err error, format Format) error {
	msg := domain.ErrorMessage(err)
	payload := struct {
		OriginalText string `json:"originalText" yaml:"originalText"`
		Error        string `json:"error" yaml:"error"`
	}{text, msg}

	switch format {
	case FormatJSON:
		return json.NewEncoder(w).Encode(payload)
	case FormatYAML:
		return yaml.NewEncoder(w).Encode(payload)
	default:
		_, werr := fmt.Fprintf(w, "Verification failed: %s\n", r.clean(msg))
		return werr
	}
}

func (r *Renderer) renderText(w io.Writer, doc Document) error {
	res := doc.Result
	var b strings.Builder

	fmt.Fprintf(&b, "Reliability score: %s/100 (%s reliability)\n", formatScore(res.OverallScore), doc.Reliability)
	fmt.Fprintf(&b, "Claims: %d verified, %d uncertain, %d hallucination\n",
		doc.StatusCounts[domain.StatusVerified],
		doc.StatusCounts[domain.StatusUncertain],
		doc.StatusCounts[domain.StatusHallucination],
	)

	if len(res.Claims) == 0 {
		b.WriteString("\nNo factual claims found.\n")
	}
	for i, c := range res.Claims {
		fmt.Fprintf(&b, "\n[%s] %s (%s confidence)\n", c.ID, strings.ToUpper(string(c.Status)), Percent(c.Confidence))
		fmt.Fprintf(&b, "  Claim: %s\n", r.clean(c.Text))
		if c.Explanation != "" {
			fmt.Fprintf(&b, "  Why: %s\n", r.clean(c.Explanation))
		}
		if c.SupportingEvidence != "" {
			fmt.Fprintf(&b, "  Evidence: %s\n", r.clean(c.SupportingEvidence))
		}
		if a := doc.Alignments[i]; a.Sentence >= 0 {
			fmt.Fprintf(&b, "  From sentence %d: %q\n", a.Sentence+1, a.Text)
		}
	}

	if len(res.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for i, s := range res.Sources {
			fmt.Fprintf(&b, "  %d. %s <%s>\n", i+1, r.clean(s.Title), s.URI)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// clean strips markup from model-provided text for terminal display.
func (r *Renderer) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(r.policy.Sanitize(s)))
}

// Percent renders a confidence in [0,1] as a whole percentage, clamped.
func Percent(confidence float64) string {
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}
	return fmt.Sprintf("%.0f%%", confidence*100)
}

func formatScore(score float64) string {
	if score == float64(int64(score)) {
		return fmt.Sprintf("%d", int64(score))
	}
	return fmt.Sprintf("%.1f", score)
}
