// Package coordinator owns the per-investigation state machine and sequences
// identity resolution, source scraping, and persona synthesis.
//
// States: pending → confirming_identity → scraping → building_persona →
// ready, with error reachable from any non-terminal state and
// confirming_identity re-enterable on a re-search with added context.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/events"
	"github.com/myrjola/doppel/internal/models"
	"github.com/myrjola/doppel/internal/persona"
	"github.com/myrjola/doppel/internal/random"
	"github.com/myrjola/doppel/internal/resolver"
	"github.com/myrjola/doppel/internal/scraper"
	"github.com/myrjola/doppel/internal/store"
)

// SessionStarter instantiates a conversation once the persona is ready.
type SessionStarter interface {
	Start(ctx context.Context, persona *models.PersonaModel) (*models.ConversationSession, error)
}

// Confirmation is the client's answer to the identity disambiguation step.
type Confirmation struct {
	Confirmed           bool   `json:"confirmed"`
	SelectedCandidateID string `json:"selectedCandidateId,omitempty"`
	AdditionalContext   string `json:"additionalContext,omitempty"`
}

// Options tune one investigation run.
type Options struct {
	// Deep selects the sequential deep scrape instead of the concurrent fan-out.
	Deep bool
	// Sources restricts the scraped source types. Empty means all.
	Sources []models.SourceType
}

// ErrNotConfirmed is recorded when the client rejects all candidates without
// offering more context.
var ErrNotConfirmed = errors.NewSentinel("identity not confirmed")

// placeholderConfidence is assigned to identities fabricated from free-text
// context or quick starts, which skip real disambiguation.
const placeholderConfidence = 50

// investigationIDLength sizes investigation ids.
const investigationIDLength = 12

// Coordinator sequences the investigation pipeline. All mutations of
// investigation records go through the store's Update so that concurrent
// operations on the same id cannot interleave mid-transition.
type Coordinator struct {
	investigations store.InvestigationStore
	resolver       resolver.Resolver
	scraper        scraper.SourceScraper
	personas       persona.Builder
	sessions       SessionStarter
	events         *events.Log
	logger         *slog.Logger
	stageTimeout   time.Duration

	mu            sync.Mutex
	subscribers   map[string]map[int64]func(models.ProgressUpdate)
	nextSubscribe int64
	options       map[string]Options

	// lifecycle of background pipelines
	baseCtx   context.Context
	cancel    context.CancelFunc
	pipelines sync.WaitGroup
}

// Config wires a Coordinator.
type Config struct {
	Investigations store.InvestigationStore
	Resolver       resolver.Resolver
	Scraper        scraper.SourceScraper
	Personas       persona.Builder
	Sessions       SessionStarter
	Events         *events.Log
	Logger         *slog.Logger
	// StageTimeout bounds each pipeline stage (resolution, scraping, synthesis).
	StageTimeout time.Duration
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		investigations: cfg.Investigations,
		resolver:       cfg.Resolver,
		scraper:        cfg.Scraper,
		personas:       cfg.Personas,
		sessions:       cfg.Sessions,
		events:         cfg.Events,
		logger:         cfg.Logger.With("source", "Coordinator"),
		stageTimeout:   cfg.StageTimeout,
		subscribers:    make(map[string]map[int64]func(models.ProgressUpdate)),
		options:        make(map[string]Options),
		baseCtx:        baseCtx,
		cancel:         cancel,
	}
}

// Close cancels in-flight pipelines and waits for them to finish.
func (c *Coordinator) Close() {
	c.cancel()
	c.pipelines.Wait()
}

// Start begins an investigation. The resolver call is awaited inline, so the
// caller blocks until the identity search completes. Resolver failure lands
// the record in terminal error state; the record is still returned.
func (c *Coordinator) Start(
	ctx context.Context,
	targetName string,
	targetContext string,
	opts Options,
) (*models.Investigation, error) {
	if targetName == "" {
		return nil, errors.WithKind(errors.New("targetName is required"), errors.KindValidation)
	}

	id, err := random.Letters(investigationIDLength)
	if err != nil {
		return nil, errors.Wrap(err, "generate investigation id")
	}

	now := time.Now().UTC()
	investigation := models.Investigation{
		TargetID:      id,
		TargetName:    targetName,
		TargetContext: targetContext,
		Status:        models.StatusConfirmingIdentity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	c.setOptions(id, opts)
	c.publishEvent(id, models.EventInfo, "investigation", fmt.Sprintf("investigation started for %q", targetName), nil)

	stageCtx, cancelStage := c.stageContext(ctx)
	candidates, err := c.resolver.Resolve(stageCtx, targetName, targetContext)
	cancelStage()
	if err != nil {
		investigation.Status = models.StatusError
		investigation.Error = err.Error()
		c.publishEvent(id, models.EventError, "identity", "identity resolution failed", errorDetails(err))
	} else {
		investigation.IdentityCandidates = candidates
		c.publishEvent(id, models.EventInfo, "identity",
			fmt.Sprintf("found %d identity candidates", len(candidates)), nil)
	}

	if err = c.investigations.Put(ctx, &investigation); err != nil {
		return nil, errors.Wrap(err, "store investigation")
	}
	return &investigation, nil
}

// QuickStart skips identity confirmation: a placeholder identity is
// fabricated at fixed confidence and the scrape pipeline starts immediately.
func (c *Coordinator) QuickStart(
	ctx context.Context,
	targetName string,
	targetContext string,
	opts Options,
) (*models.Investigation, error) {
	if targetName == "" {
		return nil, errors.WithKind(errors.New("targetName is required"), errors.KindValidation)
	}

	id, err := random.Letters(investigationIDLength)
	if err != nil {
		return nil, errors.Wrap(err, "generate investigation id")
	}
	candidateID, err := random.Letters(investigationIDLength)
	if err != nil {
		return nil, errors.Wrap(err, "generate candidate id")
	}

	now := time.Now().UTC()
	investigation := models.Investigation{
		TargetID:      id,
		TargetName:    targetName,
		TargetContext: targetContext,
		Status:        models.StatusScraping,
		ConfirmedIdentity: &models.IdentityCandidate{
			ID:          candidateID,
			Name:        targetName,
			Description: targetContext,
			Confidence:  placeholderConfidence,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = c.investigations.Put(ctx, &investigation); err != nil {
		return nil, errors.Wrap(err, "store investigation")
	}
	c.setOptions(id, opts)
	c.publishEvent(id, models.EventInfo, "investigation",
		fmt.Sprintf("quick start for %q, skipping identity confirmation", targetName), nil)
	c.launchPipeline(id)
	return &investigation, nil
}

// Confirm resolves the disambiguation step. On confirmation the scrape
// pipeline is launched in the background and the record is returned
// immediately in scraping state.
func (c *Coordinator) Confirm(ctx context.Context, id string, confirmation Confirmation) (*models.Investigation, error) {
	current, err := c.investigations.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.WithKind(err, errors.KindNotFound)
		}
		return nil, errors.Wrap(err, "get investigation")
	}
	if current.Status != models.StatusConfirmingIdentity {
		return nil, errors.WithKind(
			errors.New("investigation is not awaiting identity confirmation",
				slog.String("status", string(current.Status))),
			errors.KindValidation)
	}

	if !confirmation.Confirmed {
		if confirmation.AdditionalContext == "" {
			return c.markError(ctx, id, errors.WithKind(ErrNotConfirmed, errors.KindResolution))
		}
		return c.reResolve(ctx, current, confirmation.AdditionalContext)
	}

	candidate := findCandidate(current.IdentityCandidates, confirmation.SelectedCandidateID)
	if candidate == nil {
		if confirmation.AdditionalContext == "" {
			return c.markError(ctx, id,
				errors.WithKind(errors.New("selected candidate not found"), errors.KindResolution))
		}
		// Fabricate a lower-confidence identity from the free-text context.
		candidateID, idErr := random.Letters(investigationIDLength)
		if idErr != nil {
			return nil, errors.Wrap(idErr, "generate candidate id")
		}
		candidate = &models.IdentityCandidate{
			ID:          candidateID,
			Name:        current.TargetName,
			Description: confirmation.AdditionalContext,
			Confidence:  placeholderConfidence,
		}
	}

	updated, err := c.investigations.Update(ctx, id, func(investigation *models.Investigation) error {
		investigation.ConfirmedIdentity = candidate
		investigation.Status = models.StatusScraping
		investigation.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "update investigation")
	}
	c.publishEvent(id, models.EventInfo, "identity",
		fmt.Sprintf("identity confirmed as %q, scraping sources", candidate.Name), nil)
	c.launchPipeline(id)
	return updated, nil
}

// Get returns the current investigation record.
func (c *Coordinator) Get(ctx context.Context, id string) (*models.Investigation, error) {
	investigation, err := c.investigations.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.WithKind(err, errors.KindNotFound)
		}
		return nil, errors.Wrap(err, "get investigation")
	}
	return investigation, nil
}

// Subscribe registers a progress callback for the investigation. Multiple
// subscribers are supported; each receives every update. The returned
// function unsubscribes.
func (c *Coordinator) Subscribe(id string, callback func(models.ProgressUpdate)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribers[id] == nil {
		c.subscribers[id] = make(map[int64]func(models.ProgressUpdate))
	}
	subscribeID := c.nextSubscribe
	c.nextSubscribe++
	c.subscribers[id][subscribeID] = callback
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers[id], subscribeID)
	}
}

func (c *Coordinator) reResolve(
	ctx context.Context,
	current *models.Investigation,
	additionalContext string,
) (*models.Investigation, error) {
	mergedContext := current.TargetContext
	if mergedContext != "" {
		mergedContext += "; "
	}
	mergedContext += additionalContext

	stageCtx, cancelStage := c.stageContext(ctx)
	candidates, err := c.resolver.Resolve(stageCtx, current.TargetName, mergedContext)
	cancelStage()
	if err != nil {
		return c.markError(ctx, current.TargetID, err)
	}

	updated, err := c.investigations.Update(ctx, current.TargetID, func(investigation *models.Investigation) error {
		investigation.TargetContext = mergedContext
		investigation.IdentityCandidates = candidates
		investigation.Status = models.StatusConfirmingIdentity
		investigation.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "update investigation")
	}
	c.publishEvent(current.TargetID, models.EventInfo, "identity",
		fmt.Sprintf("re-searched with added context, found %d candidates", len(candidates)), nil)
	return updated, nil
}

func findCandidate(candidates []models.IdentityCandidate, id string) *models.IdentityCandidate {
	if id == "" {
		return nil
	}
	for i := range candidates {
		if candidates[i].ID == id {
			return &candidates[i]
		}
	}
	return nil
}

func (c *Coordinator) setOptions(id string, opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options[id] = opts
}

func (c *Coordinator) optionsFor(id string) Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options[id]
}

func (c *Coordinator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.stageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.stageTimeout)
}

func (c *Coordinator) publishEvent(
	id string,
	level models.EventLevel,
	category string,
	message string,
	details map[string]string,
) {
	if c.events != nil {
		c.events.Publish(id, level, category, message, details)
	}
}

func errorDetails(err error) map[string]string {
	details := map[string]string{}
	if kind := errors.KindOf(err); kind != "" {
		details["kind"] = string(kind)
	}
	return details
}

// markError transitions the investigation to terminal error state and returns
// the updated record. The pipeline error itself is folded into the record, so
// the method only fails on store trouble.
func (c *Coordinator) markError(ctx context.Context, id string, cause error) (*models.Investigation, error) {
	updated, err := c.investigations.Update(ctx, id, func(investigation *models.Investigation) error {
		investigation.Status = models.StatusError
		investigation.Error = cause.Error()
		investigation.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "record investigation error")
	}
	c.publishEvent(id, models.EventError, "investigation", cause.Error(), errorDetails(cause))
	return updated, nil
}
