// Package team implements multi-provider collaboration: the same prompt is
// fanned out to several models and their answers are synthesized into one.
package team

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"opsgate/internal/core"
	"opsgate/internal/gateway"
)

// synthesis candidates, strongest first
var synthesisPriority = []string{"openai", "anthropic", "azure_openai", "gemini", "ollama", "huggingface"}

// Team fans one prompt out to several providers and merges the answers
type Team struct {
	svc *gateway.Service
}

// New creates a collaboration team over the gateway's provider registry
func New(svc *gateway.Service) *Team {
	return &Team{svc: svc}
}

// Collaborate sends the prompt to every selected provider/model pair in
// parallel and synthesizes the answers into a single response.
//
// When providerNames is empty, every reachable registered provider joins.
// When modelNames is empty, each provider contributes its first listed model;
// providers with no models are dropped. After resolution the two lists must
// have equal length.
func (t *Team) Collaborate(ctx context.Context, prompt string, providerNames, modelNames []string, temperature float64) (string, error) {
	providerNames, modelNames, err := t.resolveMembers(ctx, providerNames, modelNames)
	if err != nil {
		return "", err
	}

	answers := t.fanOut(ctx, prompt, providerNames, modelNames, temperature)

	return t.synthesize(ctx, prompt, answers, temperature)
}

// resolveMembers fills in missing provider and model selections
func (t *Team) resolveMembers(ctx context.Context, providerNames, modelNames []string) ([]string, []string, error) {
	if len(providerNames) == 0 {
		for _, name := range t.svc.Names() {
			p, _ := t.svc.Provider(name)
			if p.CheckConnection(ctx) {
				providerNames = append(providerNames, name)
			}
		}
	}

	if len(modelNames) == 0 {
		var kept []string
		for _, name := range providerNames {
			models, err := t.svc.ListModels(ctx, name)
			if err != nil || len(models) == 0 {
				slog.Warn("provider has no models, dropping from team", "provider", name)
				continue
			}
			kept = append(kept, name)
			modelNames = append(modelNames, models[0].Name)
		}
		providerNames = kept
	}

	if len(providerNames) != len(modelNames) {
		return nil, nil, core.NewCollaborationInputError("number of providers must match number of models")
	}
	if len(providerNames) == 0 {
		return nil, nil, core.NewCollaborationInputError("no providers available for collaboration")
	}
	return providerNames, modelNames, nil
}

// fanOut queries every member concurrently, keeping answers in member order
func (t *Team) fanOut(ctx context.Context, prompt string, providerNames, modelNames []string, temperature float64) []core.TeamAnswer {
	answers := make([]core.TeamAnswer, len(providerNames))

	var wg sync.WaitGroup
	for i := range providerNames {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			provider, model := providerNames[i], modelNames[i]

			resp, err := t.svc.Complete(ctx, provider, &core.CompletionRequest{
				Model:       model,
				Prompt:      prompt,
				Temperature: temperature,
			})
			if err != nil {
				slog.Warn("team member failed", "provider", provider, "error", err)
				resp = ""
			}
			answers[i] = core.TeamAnswer{Provider: provider, Model: model, Response: resp}
		}(i)
	}
	wg.Wait()

	return answers
}

// buildMetaPrompt renders the collected answers into the synthesis request
func buildMetaPrompt(prompt string, answers []core.TeamAnswer) string {
	var b strings.Builder
	b.WriteString("You are a meta-analyzer that combines and improves answers from different AI models.\n")
	fmt.Fprintf(&b, "Original request: %s\n\nAnswers from different models:\n", prompt)
	for i, a := range answers {
		fmt.Fprintf(&b, "\n### Model %d (%s/%s):\n%s\n", i+1, a.Provider, a.Model, a.Response)
	}
	b.WriteString("\nProduce a single, coherent, improved answer that uses the best parts of each answer.")
	return b.String()
}

// synthesize asks the strongest reachable provider to merge the answers.
// When no synthesizer is reachable, the longest answer wins.
func (t *Team) synthesize(ctx context.Context, prompt string, answers []core.TeamAnswer, temperature float64) (string, error) {
	metaPrompt := buildMetaPrompt(prompt, answers)

	for _, name := range synthesisPriority {
		p, ok := t.svc.Provider(name)
		if !ok || !p.CheckConnection(ctx) {
			continue
		}
		models, err := t.svc.ListModels(ctx, name)
		if err != nil || len(models) == 0 {
			continue
		}

		resp, err := t.svc.Complete(ctx, name, &core.CompletionRequest{
			Model:       models[0].Name,
			Prompt:      metaPrompt,
			Temperature: temperature,
		})
		if err != nil {
			slog.Warn("synthesis provider failed", "provider", name, "error", err)
			continue
		}
		return resp, nil
	}

	// no synthesizer reachable: longest answer wins
	best := answers[0]
	for _, a := range answers[1:] {
		if len(a.Response) > len(best.Response) {
			best = a
		}
	}
	return best.Response, nil
}
