package coordinator_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/myrjola/doppel/internal/coordinator"
	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/events"
	"github.com/myrjola/doppel/internal/models"
	"github.com/myrjola/doppel/internal/scraper"
	"github.com/myrjola/doppel/internal/store"
	"github.com/myrjola/doppel/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	mu          sync.Mutex
	candidates  []models.IdentityCandidate
	err         error
	lastContext string
}

func (s *stubResolver) Resolve(
	_ context.Context,
	_ string,
	targetContext string,
) ([]models.IdentityCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastContext = targetContext
	return s.candidates, s.err
}

func (s *stubResolver) contextSeen() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastContext
}

type stubScraper struct {
	records []models.ScrapedData
}

func (s *stubScraper) ScrapeAll(
	_ context.Context,
	_ string,
	_ []models.SourceType,
	_ models.IdentityCandidate,
	progress scraper.ProgressFunc,
) []models.ScrapedData {
	for i, record := range s.records {
		if progress != nil {
			progress(record.SourceType, i+1, i+1)
		}
	}
	return s.records
}

func (s *stubScraper) DeepScrape(
	ctx context.Context,
	targetName string,
	sources []models.SourceType,
	identity models.IdentityCandidate,
	progress scraper.ProgressFunc,
) []models.ScrapedData {
	return s.ScrapeAll(ctx, targetName, sources, identity, progress)
}

type stubBuilder struct {
	err   error
	panic bool
}

func (s *stubBuilder) Build(
	_ context.Context,
	targetID string,
	targetName string,
	scraped []models.ScrapedData,
) (*models.PersonaModel, error) {
	if s.panic {
		panic("builder exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	points := 0
	for _, record := range scraped {
		points += models.CountDataPoints(record.Data)
	}
	return &models.PersonaModel{ //nolint:exhaustruct // skeleton persona for pipeline tests
		TargetID:     targetID,
		TargetName:   targetName,
		Identity:     models.Identity{FullName: targetName},
		SystemPrompt: "You are " + targetName + ".",
		DataPoints:   points,
	}, nil
}

type stubSessions struct {
	err error
}

func (s *stubSessions) Start(_ context.Context, persona *models.PersonaModel) (*models.ConversationSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.ConversationSession{ //nolint:exhaustruct // id is all the coordinator records
		ID:          "sess1",
		PersonaID:   persona.TargetID,
		PersonaName: persona.Identity.FullName,
		Status:      models.SessionActive,
	}, nil
}

type deps struct {
	resolver *stubResolver
	scraper  *stubScraper
	builder  *stubBuilder
	sessions *stubSessions
	events   *events.Log
}

func adaCandidates() []models.IdentityCandidate {
	return []models.IdentityCandidate{
		{ID: "c1", Name: "Ada Lovelace", Description: "19th century mathematician", Confidence: 95},
		{ID: "c2", Name: "Ada Lovelace", Description: "contemporary musician", Confidence: 40},
	}
}

func adaScrapedData() []models.ScrapedData {
	return []models.ScrapedData{
		{
			ID:         "r1",
			SourceType: models.SourceEncyclopedia,
			SourceURL:  "https://en.wikipedia.org/wiki/Ada_Lovelace",
			Confidence: 90,
			Data:       models.PersonData{FullName: "Ada Lovelace", Bio: "Pioneer of computing."},
		},
		{
			ID:         "r2",
			SourceType: models.SourceNews,
			SourceURL:  "https://news.example/ada",
			Confidence: 75,
			Data:       models.PersonData{Quotes: []models.Quote{{Text: "Brevity is the soul of wit."}}},
		},
	}
}

func newTestCoordinator(t *testing.T, d deps) *coordinator.Coordinator {
	t.Helper()
	if d.resolver == nil {
		d.resolver = &stubResolver{candidates: adaCandidates()}
	}
	if d.scraper == nil {
		d.scraper = &stubScraper{records: adaScrapedData()}
	}
	if d.builder == nil {
		d.builder = &stubBuilder{}
	}
	if d.sessions == nil {
		d.sessions = &stubSessions{}
	}
	if d.events == nil {
		d.events = events.NewLog()
	}
	investigations := store.NewMemoryInvestigations(0)
	t.Cleanup(investigations.Close)
	c := coordinator.New(coordinator.Config{
		Investigations: investigations,
		Resolver:       d.resolver,
		Scraper:        d.scraper,
		Personas:       d.builder,
		Sessions:       d.sessions,
		Events:         d.events,
		Logger:         testhelpers.NewLogger(io.Discard),
		StageTimeout:   time.Minute,
	})
	t.Cleanup(c.Close)
	return c
}

func waitForTerminal(t *testing.T, c *coordinator.Coordinator, id string) *models.Investigation {
	t.Helper()
	var investigation *models.Investigation
	require.Eventually(t, func() bool {
		var err error
		investigation, err = c.Get(context.Background(), id)
		require.NoError(t, err)
		return investigation.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond, "investigation never reached a terminal state")
	return investigation
}

func TestStartReturnsCandidates(t *testing.T) {
	c := newTestCoordinator(t, deps{})
	ctx := context.Background()

	investigation, err := c.Start(ctx, "Ada Lovelace", "computing pioneer", coordinator.Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, investigation.TargetID)
	assert.Equal(t, models.StatusConfirmingIdentity, investigation.Status)
	require.Len(t, investigation.IdentityCandidates, 2)
	assert.Equal(t, "Ada Lovelace", investigation.IdentityCandidates[0].Name)

	stored, err := c.Get(ctx, investigation.TargetID)
	require.NoError(t, err)
	assert.Equal(t, investigation.TargetID, stored.TargetID)
}

func TestStartRequiresName(t *testing.T) {
	c := newTestCoordinator(t, deps{})

	_, err := c.Start(context.Background(), "", "", coordinator.Options{})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestStartResolverFailureIsTerminal(t *testing.T) {
	c := newTestCoordinator(t, deps{resolver: &stubResolver{err: assert.AnError}})

	investigation, err := c.Start(context.Background(), "Ada Lovelace", "", coordinator.Options{})
	require.NoError(t, err, "a resolver failure lands in the record, not in the return value")
	assert.Equal(t, models.StatusError, investigation.Status)
	assert.NotEmpty(t, investigation.Error)
}

func TestInvestigationLifecycle(t *testing.T) {
	c := newTestCoordinator(t, deps{})
	ctx := context.Background()

	investigation, err := c.Start(ctx, "Ada Lovelace", "computing pioneer", coordinator.Options{})
	require.NoError(t, err)

	confirmed, err := c.Confirm(ctx, investigation.TargetID, coordinator.Confirmation{
		Confirmed:           true,
		SelectedCandidateID: "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusScraping, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedIdentity)
	assert.Equal(t, "c1", confirmed.ConfirmedIdentity.ID)

	final := waitForTerminal(t, c, investigation.TargetID)
	assert.Equal(t, models.StatusReady, final.Status)
	assert.Empty(t, final.Error)
	require.NotNil(t, final.Persona)
	assert.Equal(t, "Ada Lovelace", final.Persona.Identity.FullName)
	assert.Equal(t, "sess1", final.ConversationID)
	assert.Equal(t, len(final.ScrapedData), final.SourcesScraped)
	assert.Equal(t, 3, final.DataPoints)
}

func TestConfirmRejectsWrongState(t *testing.T) {
	c := newTestCoordinator(t, deps{})
	ctx := context.Background()

	investigation, err := c.Start(ctx, "Ada Lovelace", "", coordinator.Options{})
	require.NoError(t, err)
	_, err = c.Confirm(ctx, investigation.TargetID, coordinator.Confirmation{Confirmed: true, SelectedCandidateID: "c1"})
	require.NoError(t, err)
	waitForTerminal(t, c, investigation.TargetID)

	_, err = c.Confirm(ctx, investigation.TargetID, coordinator.Confirmation{Confirmed: true, SelectedCandidateID: "c1"})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestConfirmUnknownInvestigation(t *testing.T) {
	c := newTestCoordinator(t, deps{})

	_, err := c.Confirm(context.Background(), "missing", coordinator.Confirmation{Confirmed: true})
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestConfirmUnknownCandidateWithoutContextFails(t *testing.T) {
	c := newTestCoordinator(t, deps{})
	ctx := context.Background()

	investigation, err := c.Start(ctx, "Ada Lovelace", "", coordinator.Options{})
	require.NoError(t, err)

	updated, err := c.Confirm(ctx, investigation.TargetID, coordinator.Confirmation{
		Confirmed:           true,
		SelectedCandidateID: "nope",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, updated.Status)
	assert.NotEmpty(t, updated.Error)
	assert.Nil(t, updated.Persona)
}

func TestConfirmUnknownCandidateWithContextFabricatesIdentity(t *testing.T) {
	c := newTestCoordinator(t, deps{})
	ctx := context.Background()

	investigation, err := c.Start(ctx, "Ada Lovelace", "", coordinator.Options{})
	require.NoError(t, err)

	updated, err := c.Confirm(ctx, investigation.TargetID, coordinator.Confirmation{
		Confirmed:         true,
		AdditionalContext: "the Victorian mathematician",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ConfirmedIdentity)
	assert.Equal(t, "Ada Lovelace", updated.ConfirmedIdentity.Name)
	assert.Equal(t, "the Victorian mathematician", updated.ConfirmedIdentity.Description)
	assert.Equal(t, 50, updated.ConfirmedIdentity.Confidence)

	final := waitForTerminal(t, c, investigation.TargetID)
	assert.Equal(t, models.StatusReady, final.Status)
}

func TestConfirmRejectedWithoutContextFails(t *testing.T) {
	c := newTestCoordinator(t, deps{})
	ctx := context.Background()

	investigation, err := c.Start(ctx, "Ada Lovelace", "", coordinator.Options{})
	require.NoError(t, err)

	updated, err := c.Confirm(ctx, investigation.TargetID, coordinator.Confirmation{Confirmed: false})
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, updated.Status)
	assert.Contains(t, updated.Error, "identity not confirmed")
}

func TestConfirmRejectedWithContextReResolves(t *testing.T) {
	resolver := &stubResolver{candidates: adaCandidates()}
	c := newTestCoordinator(t, deps{resolver: resolver})
	ctx := context.Background()

	investigation, err := c.Start(ctx, "Ada Lovelace", "computing pioneer", coordinator.Options{})
	require.NoError(t, err)

	updated, err := c.Confirm(ctx, investigation.TargetID, coordinator.Confirmation{
		Confirmed:         false,
		AdditionalContext: "worked with Charles Babbage",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmingIdentity, updated.Status, "a re-search loops back to confirmation")
	assert.Equal(t, "computing pioneer; worked with Charles Babbage", resolver.contextSeen())
	assert.Equal(t, "computing pioneer; worked with Charles Babbage", updated.TargetContext)
	assert.Len(t, updated.IdentityCandidates, 2)
}

func TestQuickStartSkipsConfirmation(t *testing.T) {
	c := newTestCoordinator(t, deps{})
	ctx := context.Background()

	investigation, err := c.QuickStart(ctx, "Ada Lovelace", "computing pioneer", coordinator.Options{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusScraping, investigation.Status)
	require.NotNil(t, investigation.ConfirmedIdentity)
	assert.Equal(t, 50, investigation.ConfirmedIdentity.Confidence)

	final := waitForTerminal(t, c, investigation.TargetID)
	assert.Equal(t, models.StatusReady, final.Status)
	assert.NotNil(t, final.Persona)
}

func TestPartialScrapeStillSucceeds(t *testing.T) {
	// Only one source produced a record; the rest failed inside the scraper.
	c := newTestCoordinator(t, deps{scraper: &stubScraper{records: adaScrapedData()[:1]}})
	ctx := context.Background()

	investigation, err := c.QuickStart(ctx, "Ada Lovelace", "", coordinator.Options{})
	require.NoError(t, err)

	final := waitForTerminal(t, c, investigation.TargetID)
	assert.Equal(t, models.StatusReady, final.Status)
	assert.Empty(t, final.Error)
	assert.Equal(t, 1, final.SourcesScraped)
	require.Len(t, final.ScrapedData, 1)
}

func TestBuilderFailureIsTerminal(t *testing.T) {
	c := newTestCoordinator(t, deps{builder: &stubBuilder{err: assert.AnError}})
	ctx := context.Background()

	investigation, err := c.QuickStart(ctx, "Ada Lovelace", "", coordinator.Options{})
	require.NoError(t, err)

	final := waitForTerminal(t, c, investigation.TargetID)
	assert.Equal(t, models.StatusError, final.Status)
	assert.NotEmpty(t, final.Error)
	assert.Nil(t, final.Persona)
}

func TestSessionStartFailureIsTerminal(t *testing.T) {
	c := newTestCoordinator(t, deps{sessions: &stubSessions{err: assert.AnError}})
	ctx := context.Background()

	investigation, err := c.QuickStart(ctx, "Ada Lovelace", "", coordinator.Options{})
	require.NoError(t, err)

	final := waitForTerminal(t, c, investigation.TargetID)
	assert.Equal(t, models.StatusError, final.Status)
}

func TestPipelinePanicIsRecovered(t *testing.T) {
	c := newTestCoordinator(t, deps{builder: &stubBuilder{panic: true}})
	ctx := context.Background()

	investigation, err := c.QuickStart(ctx, "Ada Lovelace", "", coordinator.Options{})
	require.NoError(t, err)

	final := waitForTerminal(t, c, investigation.TargetID)
	assert.Equal(t, models.StatusError, final.Status)
	assert.Contains(t, final.Error, "panicked")
}

func TestSubscribeDeliversProgressToAllSubscribers(t *testing.T) {
	c := newTestCoordinator(t, deps{})
	ctx := context.Background()

	investigation, err := c.Start(ctx, "Ada Lovelace", "", coordinator.Options{})
	require.NoError(t, err)

	first := make(chan models.ProgressUpdate, 32)
	second := make(chan models.ProgressUpdate, 32)
	unsubscribeFirst := c.Subscribe(investigation.TargetID, func(update models.ProgressUpdate) {
		first <- update
	})
	defer unsubscribeFirst()
	unsubscribeSecond := c.Subscribe(investigation.TargetID, func(update models.ProgressUpdate) {
		second <- update
	})
	defer unsubscribeSecond()

	_, err = c.Confirm(ctx, investigation.TargetID, coordinator.Confirmation{Confirmed: true, SelectedCandidateID: "c1"})
	require.NoError(t, err)
	waitForTerminal(t, c, investigation.TargetID)

	for name, updates := range map[string]chan models.ProgressUpdate{"first": first, "second": second} {
		var sawScraping bool
		pages := 0
		deadline := time.After(5 * time.Second)
	drain:
		for {
			select {
			case update := <-updates:
				assert.Equal(t, investigation.TargetID, update.TargetID)
				if update.Status == models.StatusScraping {
					sawScraping = true
					pages = update.PagesScraped
				}
				if update.Status == models.StatusReady {
					break drain
				}
			case <-deadline:
				t.Fatalf("%s subscriber never saw the ready transition", name)
			}
		}
		assert.True(t, sawScraping, "%s subscriber missed scraping progress", name)
		assert.Equal(t, 2, pages, "%s subscriber saw a wrong final page count", name)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := newTestCoordinator(t, deps{})
	ctx := context.Background()

	investigation, err := c.Start(ctx, "Ada Lovelace", "", coordinator.Options{})
	require.NoError(t, err)

	var mu sync.Mutex
	received := 0
	unsubscribe := c.Subscribe(investigation.TargetID, func(models.ProgressUpdate) {
		mu.Lock()
		received++
		mu.Unlock()
	})
	unsubscribe()

	_, err = c.Confirm(ctx, investigation.TargetID, coordinator.Confirmation{Confirmed: true, SelectedCandidateID: "c1"})
	require.NoError(t, err)
	waitForTerminal(t, c, investigation.TargetID)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, received)
}

func TestEventsAreRecorded(t *testing.T) {
	log := events.NewLog()
	c := newTestCoordinator(t, deps{events: log})
	ctx := context.Background()

	investigation, err := c.Start(ctx, "Ada Lovelace", "", coordinator.Options{})
	require.NoError(t, err)
	_, err = c.Confirm(ctx, investigation.TargetID, coordinator.Confirmation{Confirmed: true, SelectedCandidateID: "c1"})
	require.NoError(t, err)
	waitForTerminal(t, c, investigation.TargetID)

	// The ready event is published just after the final state transition, so
	// give the pipeline goroutine a moment to finish.
	require.Eventually(t, func() bool {
		history, _, cancel := log.Subscribe(investigation.TargetID)
		cancel()
		for _, event := range history {
			if event.Message == "investigation ready" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	history, _, cancel := log.Subscribe(investigation.TargetID)
	defer cancel()
	require.NotEmpty(t, history)
	for i := 1; i < len(history); i++ {
		assert.Less(t, history[i-1].ID, history[i].ID, "event ids must be monotonic")
	}
}
