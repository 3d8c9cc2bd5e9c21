// Package pipeline orchestrates one full detection pass: Detector ->
// Clusterer -> LLM Validator -> Persister -> Enricher, across entity
// kinds in the fixed order spec.md §5 requires (Cities, Neighborhoods,
// Streets, Condos), so that parent-side canonical names exist before a
// child kind's enrichment runs.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/cluster"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/detect"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/enrich"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/validate"
)

// kindOrder is the fixed sequential processing order (spec.md §5).
var kindOrder = []domain.EntityKind{domain.KindCity, domain.KindNeighborhood, domain.KindStreet, domain.KindCondo}

// Config mirrors detect.Config per kind; a zero Threshold or Limit uses
// the detector's own defaults.
type Config struct {
	Threshold       float64
	Limit           int
	EnrichEnabled   bool
}

// Pipeline wires the detection/clustering/validation/enrichment stages
// over one storage.Store.
type Pipeline struct {
	store     storage.Store
	detector  *detect.Detector
	validator *validate.Validator
	enricher  *enrich.Enricher
	log       *zap.Logger
}

// New builds a Pipeline. validator and enricher may be nil to skip
// those stages (e.g. a dry-run scan/sync preview per spec.md §6).
func New(store storage.Store, validator *validate.Validator, enricher *enrich.Enricher, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		detector:  detect.New(store, store, log),
		validator: validator,
		enricher:  enricher,
		log:       log,
	}
}

// Summary is the per-kind result of one Run.
type Summary struct {
	Kind           domain.EntityKind
	PairsDetected  int
	GroupsFormed   int
	GroupsPersisted int
}

// Run executes one full pass across every entity kind in order,
// recording a RunLog for the whole pass (spec.md §5, §3 RunLog).
func (p *Pipeline) Run(ctx context.Context, cfg Config) ([]Summary, error) {
	run := &domain.RunLog{StartedAt: time.Now(), Status: domain.RunStarted}
	if err := p.store.CreateRunLog(ctx, run); err != nil {
		return nil, fmt.Errorf("pipeline: create run log: %w", err)
	}

	var summaries []Summary
	var runErr error

	for _, kind := range kindOrder {
		select {
		case <-ctx.Done():
			runErr = fmt.Errorf("pipeline: cancelled before kind %s: %w", kind, ctx.Err())
		default:
		}
		if runErr != nil {
			break
		}

		s, err := p.runKind(ctx, kind, cfg)
		if err != nil {
			runErr = fmt.Errorf("pipeline: kind %s: %w", kind, err)
			break
		}
		summaries = append(summaries, s)
		run.TotalAnalyzed += s.PairsDetected
		run.TotalGroups += s.GroupsPersisted
	}

	ended := time.Now()
	run.EndedAt = &ended
	if runErr != nil {
		run.Status = domain.RunErrored
		errText := runErr.Error()
		run.ErrorText = &errText
	} else {
		run.Status = domain.RunCompleted
	}
	if err := p.store.UpdateRunLog(ctx, run); err != nil {
		p.log.Warn("pipeline: failed to update run log", zap.Error(err))
	}

	return summaries, runErr
}

func (p *Pipeline) runKind(ctx context.Context, kind domain.EntityKind, cfg Config) (Summary, error) {
	detectCfg := detect.Config{Threshold: cfg.Threshold, Limit: cfg.Limit}
	pairs, err := p.detector.Run(ctx, kind, detectCfg)
	if err != nil {
		return Summary{}, fmt.Errorf("detect: %w", err)
	}

	groups := cluster.Cluster(kind, pairs)
	s := Summary{Kind: kind, PairsDetected: len(pairs), GroupsFormed: len(groups)}
	if len(groups) == 0 {
		return s, nil
	}

	contexts := make([]validate.GroupContext, len(groups))
	for i, g := range groups {
		contexts[i] = p.groupContext(ctx, kind, g)
	}

	if p.validator != nil {
		outcomes := p.validator.ValidateBatches(ctx, kind, groups, contexts)
		for i, o := range outcomes {
			if o.Decision == nil {
				groups[i].Source = domain.SourceTrigram
				continue
			}
			if !validate.Apply(groups[i], o.Decision) {
				groups[i] = nil
			}
		}
	}

	for _, g := range groups {
		if g == nil {
			continue
		}
		if err := p.store.CreateGroup(ctx, g); err != nil {
			return s, fmt.Errorf("persist group: %w", err)
		}
		s.GroupsPersisted++

		if p.enricher == nil || !cfg.EnrichEnabled {
			continue
		}
		mc, err := p.enricher.ResolveContexts(ctx, g)
		if err != nil {
			p.log.Warn("enrich: context resolution failed", zap.String("group", g.ID), zap.Error(err))
			continue
		}
		if err := p.store.SaveMemberContext(ctx, mc); err != nil {
			p.log.Warn("enrich: save context failed", zap.String("group", g.ID), zap.Error(err))
		}

		res := p.enricher.Enrich(ctx, g, mc)
		if res.CanonicalName == "" {
			continue
		}
		name, source, addr := res.CanonicalName, res.CanonicalSource, res.CanonicalAddress
		g.CanonicalName = &name
		g.CanonicalSource = &source
		if addr != "" {
			g.CanonicalAddress = &addr
		}
		if res.SuggestedMemberIdx >= 0 && res.SuggestedMemberIdx < len(g.MemberIDs) {
			suggested := g.MemberIDs[res.SuggestedMemberIdx]
			g.SuggestedCanonical = &suggested
		}
		if err := p.store.UpdateGroup(ctx, g); err != nil {
			p.log.Warn("enrich: update group failed", zap.String("group", g.ID), zap.Error(err))
		}
	}

	return s, nil
}

// groupContext resolves the lightweight geographic context shown to the
// LLM validator (spec.md §4.4), using the first member's hierarchy as
// representative of the whole candidate group.
func (p *Pipeline) groupContext(ctx context.Context, kind domain.EntityKind, g *domain.DuplicateGroup) validate.GroupContext {
	if len(g.MemberIDs) == 0 {
		return validate.GroupContext{}
	}
	mc, err := p.store.MemberHierarchy(ctx, kind, g.MemberIDs[0], 1)
	if err != nil {
		p.log.Warn("pipeline: member hierarchy lookup failed", zap.String("member", g.MemberIDs[0]), zap.Error(err))
		return validate.GroupContext{}
	}

	gc := validate.GroupContext{}
	if mc.StateCode != nil {
		gc.State = *mc.StateCode
	}
	if mc.CityName != nil {
		gc.City = *mc.CityName
	}
	if mc.NeighborhoodName != nil {
		gc.Neighborhood = *mc.NeighborhoodName
	}
	if mc.StreetName != nil {
		gc.Street = *mc.StreetName
	}
	return gc
}
