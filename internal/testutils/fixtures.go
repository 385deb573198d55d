package testutils

import "github.com/ahrav/go-veriai/internal/ports"

// EiffelText is a single false claim.
const EiffelText = "The Eiffel Tower is in Berlin."

// EiffelResponse is the fact-check body for EiffelText.
const EiffelResponse = `{
  "overallScore": 20,
  "claims": [
    {
      "text": "The Eiffel Tower is in Berlin",
      "status": "hallucination",
      "explanation": "The Eiffel Tower is located in Paris, France.",
      "confidence": 0.99
    }
  ]
}`

// GreatWallResponse answers the built-in example text. It carries three
// claims, one of them without a confidence.
const GreatWallResponse = `{
  "overallScore": 35,
  "claims": [
    {
      "text": "The Great Wall of China is the only human-made structure visible from the moon with the naked eye",
      "status": "hallucination",
      "explanation": "Astronauts report the wall is not visible from the Moon without aid.",
      "confidence": 0.95,
      "supportingEvidence": "NASA: the wall is difficult or impossible to see from low Earth orbit."
    },
    {
      "text": "Construction of the wall began in the 7th century BC",
      "status": "verified",
      "explanation": "The earliest walls date to the 7th century BC.",
      "confidence": 0.8
    },
    {
      "text": "Over 20,000 km of the wall still stands today",
      "status": "uncertain",
      "explanation": "21,196 km is the total historical length, not the standing portion."
    }
  ]
}`

// GreatWallCitations are the grounding sources for GreatWallResponse. The
// second has no URI and the third no title.
var GreatWallCitations = []ports.Citation{
	{Title: "Great Wall of China - Wikipedia", URI: "https://en.wikipedia.org/wiki/Great_Wall_of_China"},
	{Title: "Unlinked source"},
	{URI: "https://www.nasa.gov/image-article/great-wall/"},
}

// NoClaimsResponse reports text with nothing to check.
const NoClaimsResponse = `{"overallScore": 100, "claims": []}`

// MalformedResponse is not JSON.
const MalformedResponse = "I could not produce JSON for this request."

// MalformedPattern triggers MalformedResponse in the default fixtures.
const MalformedPattern = "please respond badly"

// DefaultFixtures returns the responses NewMockLLMClient starts with.
func DefaultFixtures() []MockResponse {
	return []MockResponse{
		{Pattern: "Eiffel Tower", Body: EiffelResponse},
		{Pattern: "Great Wall of China", Body: GreatWallResponse, Citations: GreatWallCitations},
		{Pattern: MalformedPattern, Body: MalformedResponse},
	}
}
