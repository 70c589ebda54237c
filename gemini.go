package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

// ScoreRequest is what the relevance scorer sees of a candidate.
type ScoreRequest struct {
	ThesisTopic string
	Keywords    []string
	Title       string
	Abstract    string
}

// Assessment is the scorer's verdict on one paper.
type Assessment struct {
	// Score is the relevance, 0-100
	Score   float64
	Summary string
	Tags    []string
}

// GeminiScorer scores papers with a Gemini model.
type GeminiScorer struct {
	model    string
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewGeminiScorer creates a scorer using the Gemini API.
func NewGeminiScorer(ctx context.Context, apiKey, model string) (*GeminiScorer, error) {
	if apiKey == "" {
		return nil, &ConfigError{Field: "GEMINI_API_KEY", Reason: "is required"}
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	}
	return &GeminiScorer{
		model: model,
		generate: func(ctx context.Context, prompt string) (string, error) {
			resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
			if err != nil {
				return "", err
			}
			return resp.Text(), nil
		},
	}, nil
}

// Score implements RelevanceScorer.
func (g *GeminiScorer) Score(ctx context.Context, req ScoreRequest) (Assessment, error) {
	text, err := g.generate(ctx, scorePrompt(req))
	if err != nil {
		return Assessment{}, &ExternalServiceError{Service: "gemini", Op: "generate", Err: err}
	}
	a, err := parseAssessment(text)
	if err != nil {
		return Assessment{}, &ExternalServiceError{Service: "gemini", Op: "parse", Err: err}
	}
	return a, nil
}

func scorePrompt(req ScoreRequest) string {
	abstract := strings.TrimSpace(req.Abstract)
	if abstract == "" {
		abstract = "(no abstract)"
	}
	var sb strings.Builder
	sb.WriteString("Rate how relevant the paper below is to the thesis topic.\n")
	fmt.Fprintf(&sb, "Thesis topic: %s\n", req.ThesisTopic)
	if len(req.Keywords) > 0 {
		fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(req.Keywords, ", "))
	}
	fmt.Fprintf(&sb, "\nTitle: %s\nAbstract: %s\n\n", req.Title, abstract)
	sb.WriteString(`Answer with JSON only, keys: "score" (number 0-100), "summary" (one or two sentences), "tags" (three short labels).`)
	return sb.String()
}

type assessmentJSON struct {
	Score   json.RawMessage `json:"score"`
	Summary string          `json:"summary"`
	Tags    json.RawMessage `json:"tags"`
}

// parseAssessment decodes the model's JSON answer. Text around the JSON
// object is ignored. A missing or out-of-range score is an error.
func parseAssessment(text string) (Assessment, error) {
	var raw assessmentJSON
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return Assessment{}, fmt.Errorf("no JSON object in response")
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
			return Assessment{}, fmt.Errorf("decode response: %w", err)
		}
	}

	score, err := parseScore(raw.Score)
	if err != nil {
		return Assessment{}, err
	}
	return Assessment{
		Score:   score,
		Summary: strings.TrimSpace(raw.Summary),
		Tags:    parseTags(raw.Tags),
	}, nil
}

// parseScore accepts a number or a numeric string.
func parseScore(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing score")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("invalid score %s", raw)
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return 0, fmt.Errorf("invalid score %q", s)
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid score %v", f)
	}
	if f < 0 || f > 100 {
		return 0, fmt.Errorf("score %v out of range 0-100", f)
	}
	return f, nil
}

// parseTags accepts a list of strings or one comma-separated string.
func parseTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil
		}
		list = strings.Split(s, ",")
	}
	var tags []string
	for _, t := range list {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
