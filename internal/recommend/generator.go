package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/crypto"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/model"
)

// FallbackText is returned when every model in the chain fails. The caller
// always gets a recommendation, never an error.
const FallbackText = "Could not generate recommendations. Please verify your Groq API key and available models."

type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

type AttemptRecorder interface {
	RecordAttempt(model, outcome string, elapsed time.Duration)
}

// Generator walks an ordered model list and returns the first successful
// completion. Attempts are sequential; each is bounded by attemptTimeout, and
// cancelling the request context skips the remaining models.
type Generator struct {
	client         Completer
	models         []string
	attemptTimeout time.Duration
	cache          Cache
	metrics        AttemptRecorder
	logger         *slog.Logger
}

func NewGenerator(client Completer, models []string, attemptTimeout time.Duration, cache Cache, metrics AttemptRecorder, logger *slog.Logger) *Generator {
	return &Generator{
		client:         client,
		models:         models,
		attemptTimeout: attemptTimeout,
		cache:          cache,
		metrics:        metrics,
		logger:         logger,
	}
}

func (g *Generator) Generate(ctx context.Context, riskLabel string, features model.PatientFeatures) string {
	prompt := buildPrompt(riskLabel, features)
	key := cacheKey(riskLabel, features)

	if g.cache != nil {
		if text, ok := g.cache.Get(ctx, key); ok {
			return text
		}
	}

	for _, m := range g.models {
		if ctx.Err() != nil {
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
		start := time.Now()
		text, err := g.client.Complete(attemptCtx, m, prompt)
		elapsed := time.Since(start)
		cancel()

		if err != nil {
			if g.metrics != nil {
				g.metrics.RecordAttempt(m, "failure", elapsed)
			}
			g.logger.Warn("recommendation attempt failed",
				slog.String("model", m),
				slog.String("error", err.Error()),
			)
			continue
		}

		if g.metrics != nil {
			g.metrics.RecordAttempt(m, "success", elapsed)
		}
		if g.cache != nil {
			g.cache.Set(ctx, key, text)
		}
		return text
	}

	g.logger.Error("all recommendation models failed", slog.String("risk", riskLabel))
	return FallbackText
}

func buildPrompt(riskLabel string, f model.PatientFeatures) string {
	return fmt.Sprintf(`You are an expert diabetes specialist. Based on the following patient data, provide detailed medical recommendations:

Patient Details:
- Pregnancies: %d
- Glucose: %g
- Blood Pressure: %g
- Skin Thickness: %g
- Insulin: %g
- BMI: %g
- Diabetes Pedigree Function: %g
- Age: %d

Predicted Risk Level: %s

Now, provide detailed medical advice including:
- Dietary recommendations
- Exercise guidelines
- Lifestyle changes
- Medical checkups needed
- If high risk, suggest immediate medical interventions

Speak like an experienced doctor explaining the condition to a patient.`,
		f.Pregnancies, f.Glucose, f.BloodPressure, f.SkinThickness, f.Insulin, f.BMI, f.DiabetesPedigree, f.Age, riskLabel)
}

func cacheKey(riskLabel string, f model.PatientFeatures) string {
	return "recommendation:" + crypto.HashKey(fmt.Sprintf("%s|%v", riskLabel, f.Vector()))
}
