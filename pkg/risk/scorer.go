package risk

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
)

type Label string

const (
	LabelLow     Label = "low"
	LabelMedium  Label = "medium"
	LabelHigh    Label = "high"
	LabelUnknown Label = "unknown"
)

// Assessment is the normalized oracle verdict. RawModelOutput is nil when the
// oracle could not be reached or parsed.
type Assessment struct {
	Label          Label           `json:"label"`
	Confidence     float64         `json:"confidence"`
	RawModelOutput json.RawMessage `json:"raw_model_output,omitempty"`
}

// Prediction is one label/score pair returned by a classifier.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier sends text to a scoring oracle. raw is the oracle's response
// body, kept for the caller.
type Classifier interface {
	Classify(ctx context.Context, text string) (preds []Prediction, raw json.RawMessage, err error)
}

// DefaultLabels maps oracle labels onto the taxonomy. Sentiment models read
// positive as low risk and negative as high risk.
var DefaultLabels = map[string]Label{
	"positive": LabelLow,
	"neutral":  LabelMedium,
	"negative": LabelHigh,
	"low":      LabelLow,
	"medium":   LabelMedium,
	"high":     LabelHigh,
}

func unknown() Assessment {
	return Assessment{Label: LabelUnknown, Confidence: 0}
}

// Scorer turns features into an Assessment. It never fails: every oracle
// problem yields the unknown assessment.
type Scorer struct {
	classifier Classifier
	labels     map[string]Label
}

// NewScorer builds a scorer. A nil classifier is allowed and always answers
// unknown.
func NewScorer(c Classifier) *Scorer {
	return &Scorer{classifier: c, labels: DefaultLabels}
}

func (s *Scorer) Enabled() bool {
	return s != nil && s.classifier != nil
}

func (s *Scorer) Score(ctx context.Context, f Features) Assessment {
	if !s.Enabled() {
		return unknown()
	}

	preds, raw, err := s.classifier.Classify(ctx, f.DerivedText)
	if err != nil {
		log.Warn().Err(err).Str("chain", string(f.Chain)).Msg("risk oracle failed, label unknown")
		return unknown()
	}
	if len(preds) == 0 {
		log.Warn().Str("chain", string(f.Chain)).Msg("risk oracle returned no predictions")
		return unknown()
	}

	top := preds[0]
	for _, p := range preds[1:] {
		if p.Score > top.Score {
			top = p
		}
	}

	label, ok := s.labels[strings.ToLower(strings.TrimSpace(top.Label))]
	if !ok {
		log.Debug().Str("label", top.Label).Msg("unrecognized oracle label")
		return Assessment{Label: LabelUnknown, Confidence: 0, RawModelOutput: raw}
	}
	return Assessment{Label: label, Confidence: clamp01(top.Score), RawModelOutput: raw}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
