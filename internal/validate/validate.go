// Package validate is the LLM Validator (C4, spec.md §4.4): batched
// rubric-based adjudication of candidate groups, grounded on the
// teacher's cmd/bd/find_duplicates.go analyzeWithAI pattern (mechanical
// pre-filter -> batched prompt -> JSON-array response), adapted from
// pairwise issue comparison to per-group member-list adjudication.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/cache"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/normalizer"
)

// Decision is the validator's structured per-group output (spec.md
// §4.4).
type Decision struct {
	Confirmed      bool     `json:"confirmed"`
	Confidence     float64  `json:"confidence"`
	CanonicalName  string   `json:"canonical_name"`
	Rationale      string   `json:"rationale"`
	ValidMemberIDs []string `json:"valid_member_ids"`
}

// GroupContext is the resolved geographic context shown in the prompt
// alongside a group's members (spec.md §4.4 "{state?, city?,
// neighborhood?, street?}").
type GroupContext struct {
	State        string
	City         string
	Neighborhood string
	Street       string
}

const cacheTTL = 7 * 24 * time.Hour

// Validator batches candidate groups into adjudication prompts.
type Validator struct {
	client    anthropic.Client
	model     anthropic.Model
	cache     cache.Cache
	batchSize int
	log       *zap.Logger
}

// New builds a Validator. batchSize defaults to 10 when <= 0.
func New(client anthropic.Client, model anthropic.Model, c cache.Cache, batchSize int, log *zap.Logger) *Validator {
	if batchSize <= 0 {
		batchSize = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{client: client, model: model, cache: c, batchSize: batchSize, log: log}
}

// CacheKey is fold(join('|', member_names)) (spec.md §4.4 "Caching").
func CacheKey(memberNames []string) string {
	return "llm:" + normalizer.Fold(strings.Join(memberNames, "|"))
}

// Outcome is one group's adjudication result.
type Outcome struct {
	Group    *domain.DuplicateGroup
	Decision *Decision
	// Bypassed is true when the batch containing this group failed
	// end-to-end (transport error or unparsable response); the group
	// must be persisted with source="trigram", llm_details=nil per
	// spec.md §4.4 "Failure semantics".
	Bypassed bool
}

// ValidateBatches processes groups in fixed-size batches, in the order
// given (spec.md §4.4 "Scheduling": batch order follows the detector's
// score-descending output, which the caller is responsible for having
// already applied).
func (v *Validator) ValidateBatches(ctx context.Context, kind domain.EntityKind, groups []*domain.DuplicateGroup, contexts []GroupContext) []Outcome {
	out := make([]Outcome, 0, len(groups))

	for start := 0; start < len(groups); start += v.batchSize {
		end := start + v.batchSize
		if end > len(groups) {
			end = len(groups)
		}
		out = append(out, v.validateOne(ctx, groups[start:end], contexts[start:end])...)
	}
	return out
}

func (v *Validator) validateOne(ctx context.Context, groups []*domain.DuplicateGroup, contexts []GroupContext) []Outcome {
	outcomes := make([]Outcome, len(groups))
	var missIdx []int

	for i, g := range groups {
		key := CacheKey(g.MemberNames)
		if cached, ok := v.cache.Get(ctx, key); ok && !cache.IsMiss(cached, ok) {
			var d Decision
			if err := json.Unmarshal([]byte(cached), &d); err == nil {
				outcomes[i] = Outcome{Group: g, Decision: &d}
				continue
			}
		}
		missIdx = append(missIdx, i)
	}

	if len(missIdx) == 0 {
		return outcomes
	}

	missGroups := make([]*domain.DuplicateGroup, len(missIdx))
	missContexts := make([]GroupContext, len(missIdx))
	for i, idx := range missIdx {
		missGroups[i] = groups[idx]
		missContexts[i] = contexts[idx]
	}

	decisions, err := v.callLLM(ctx, missGroups, missContexts)
	if err != nil {
		v.log.Warn("llm batch failed, bypassing validation for this batch", zap.Error(err), zap.Int("groups", len(missGroups)))
		for _, idx := range missIdx {
			outcomes[idx] = Outcome{Group: groups[idx], Bypassed: true}
		}
		return outcomes
	}

	for i, idx := range missIdx {
		d := decisions[i]
		if d == nil {
			outcomes[idx] = Outcome{Group: groups[idx], Bypassed: true}
			continue
		}
		outcomes[idx] = Outcome{Group: groups[idx], Decision: d}
		if raw, err := json.Marshal(d); err == nil {
			v.cache.Set(ctx, CacheKey(groups[idx].MemberNames), string(raw), cacheTTL)
		}
	}

	return outcomes
}

// Apply mutates g in place per spec.md §4.4 post-processing. It returns
// false when the group must NOT be persisted (confirmed=false).
func Apply(g *domain.DuplicateGroup, d *Decision) bool {
	if d == nil {
		return true
	}
	if !d.Confirmed {
		return false
	}

	if len(d.ValidMemberIDs) >= 2 && len(d.ValidMemberIDs) < len(g.MemberIDs) && isSubset(d.ValidMemberIDs, g.MemberIDs) {
		names := make([]string, 0, len(d.ValidMemberIDs))
		for _, id := range d.ValidMemberIDs {
			names = append(names, g.NameOf(id))
		}
		g.MemberIDs = append([]string(nil), d.ValidMemberIDs...)
		g.MemberNames = names
	}

	if d.CanonicalName != "" {
		g.NormalizedName = d.CanonicalName
	}

	raw, _ := json.Marshal(d)
	g.LLMDetails = raw
	g.Source = domain.SourceTrigramLLM
	return true
}

func isSubset(subset, superset []string) bool {
	set := make(map[string]bool, len(superset))
	for _, id := range superset {
		set[id] = true
	}
	for _, id := range subset {
		if !set[id] {
			return false
		}
	}
	return true
}

func (v *Validator) callLLM(ctx context.Context, groups []*domain.DuplicateGroup, contexts []GroupContext) ([]*Decision, error) {
	prompt := buildPrompt(groups, contexts)

	message, err := v.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     v.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm messages.new: %w", err)
	}
	if len(message.Content) == 0 || message.Content[0].Type != "text" {
		return nil, fmt.Errorf("llm response: unexpected content format")
	}

	jsonText := extractJSONArray(message.Content[0].Text)

	var raw []struct {
		GroupIndex     int      `json:"group_index"`
		Confirmed      bool     `json:"confirmed"`
		Confidence     float64  `json:"confidence"`
		CanonicalName  string   `json:"canonical_name"`
		Rationale      string   `json:"rationale"`
		ValidMemberIDs []string `json:"valid_member_ids"`
	}
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return nil, fmt.Errorf("parse llm response: %w", err)
	}

	decisions := make([]*Decision, len(groups))
	for _, r := range raw {
		if r.GroupIndex < 0 || r.GroupIndex >= len(groups) {
			continue
		}
		decisions[r.GroupIndex] = &Decision{
			Confirmed:      r.Confirmed,
			Confidence:     r.Confidence,
			CanonicalName:  r.CanonicalName,
			Rationale:      r.Rationale,
			ValidMemberIDs: r.ValidMemberIDs,
		}
	}
	return decisions, nil
}

func extractJSONArray(text string) string {
	out := text
	if idx := strings.Index(out, "["); idx >= 0 {
		out = out[idx:]
	}
	if idx := strings.LastIndex(out, "]"); idx >= 0 {
		out = out[:idx+1]
	}
	return out
}

func buildPrompt(groups []*domain.DuplicateGroup, contexts []GroupContext) string {
	var sb strings.Builder
	sb.WriteString("You are adjudicating candidate duplicate groups of geographic entities.\n")
	sb.WriteString("Apply the following rubric exactly:\n\n")
	sb.WriteString(Rubric)
	sb.WriteString("\n\nFor each group, decide whether its members denote the same real-world place.\n")
	sb.WriteString("Respond with a JSON array of objects, one per group, with fields:\n")
	sb.WriteString("  - group_index (int): 0-based index of the group\n")
	sb.WriteString("  - confirmed (bool): true if the group is a genuine duplicate set\n")
	sb.WriteString("  - confidence (float): 0.0-1.0\n")
	sb.WriteString("  - canonical_name (string): the authoritative name, or empty if unknown\n")
	sb.WriteString("  - rationale (string): brief explanation, citing the rubric rule number when relevant\n")
	sb.WriteString("  - valid_member_ids (array of strings): the subset of member ids that are genuine duplicates\n\n")
	sb.WriteString("Respond ONLY with the JSON array, no other text.\n\n")

	for i, g := range groups {
		ctxFields := contexts[i]
		fmt.Fprintf(&sb, "--- Group %d (%s) ---\n", i, g.EntityKind)
		fmt.Fprintf(&sb, "Context: state=%q city=%q neighborhood=%q street=%q\n", ctxFields.State, ctxFields.City, ctxFields.Neighborhood, ctxFields.Street)
		for j, id := range g.MemberIDs {
			fmt.Fprintf(&sb, "  [%s] %s\n", id, g.MemberNames[j])
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
