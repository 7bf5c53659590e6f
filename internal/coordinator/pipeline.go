package coordinator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/models"
)

// launchPipeline starts the scrape→persona pipeline in a supervised
// background goroutine. The caller returns immediately; any failure inside
// the pipeline is folded into the record's error field and can never leave
// the record in a non-terminal state.
func (c *Coordinator) launchPipeline(id string) {
	c.pipelines.Add(1)
	go func() {
		defer c.pipelines.Done()
		defer func() {
			if recovered := recover(); recovered != nil {
				cause := errors.New(fmt.Sprintf("investigation pipeline panicked: %v", recovered))
				if _, err := c.markError(c.baseCtx, id, cause); err != nil {
					c.logger.LogAttrs(c.baseCtx, slog.LevelError, "could not record pipeline panic",
						slog.String("targetID", id), errors.SlogError(err))
				}
			}
		}()
		c.runPipeline(id)
	}()
}

func (c *Coordinator) runPipeline(id string) {
	ctx := c.baseCtx
	opts := c.optionsFor(id)

	investigation, err := c.investigations.Get(ctx, id)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "pipeline could not load investigation",
			slog.String("targetID", id), errors.SlogError(err))
		return
	}
	identity := investigation.ConfirmedIdentity
	if identity == nil {
		_, _ = c.markError(ctx, id, errors.New("no confirmed identity to scrape"))
		return
	}

	sources := opts.Sources
	if len(sources) == 0 {
		sources = models.AllSourceTypes()
	}

	// Stage: scraping. Per-source failures are swallowed by the scraper and
	// merely reduce the result set.
	progress := func(source models.SourceType, pagesScraped int, costUnits int) {
		c.notifyProgress(models.ProgressUpdate{
			TargetID:      id,
			PagesScraped:  pagesScraped,
			CostUnits:     costUnits,
			CurrentSource: source,
			Status:        models.StatusScraping,
		})
		c.publishEvent(id, models.EventInfo, "scrape",
			fmt.Sprintf("scraped page %d (%s)", pagesScraped, source), nil)
	}

	stageCtx, cancelStage := c.stageContext(ctx)
	var scraped []models.ScrapedData
	if opts.Deep {
		scraped = c.scraper.DeepScrape(stageCtx, investigation.TargetName, sources, *identity, progress)
	} else {
		scraped = c.scraper.ScrapeAll(stageCtx, investigation.TargetName, sources, *identity, progress)
	}
	cancelStage()

	dataPoints := 0
	for _, record := range scraped {
		dataPoints += models.CountDataPoints(record.Data)
	}
	if _, err = c.investigations.Update(ctx, id, func(investigation *models.Investigation) error {
		investigation.ScrapedData = scraped
		investigation.SourcesScraped = len(scraped)
		investigation.DataPoints = dataPoints
		investigation.Status = models.StatusBuildingPersona
		investigation.UpdatedAt = time.Now().UTC()
		return nil
	}); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "could not record scrape results",
			slog.String("targetID", id), errors.SlogError(err))
		return
	}
	c.publishEvent(id, models.EventInfo, "scrape",
		fmt.Sprintf("scraping finished: %d sources, %d data points", len(scraped), dataPoints), nil)
	c.notifyProgress(models.ProgressUpdate{
		TargetID: id,
		Status:   models.StatusBuildingPersona,
	})

	// Stage: persona synthesis. Failure here aborts the investigation.
	stageCtx, cancelStage = c.stageContext(ctx)
	personaModel, err := c.personas.Build(stageCtx, id, investigation.TargetName, scraped)
	cancelStage()
	if err != nil {
		_, _ = c.markError(ctx, id, errors.WithKind(err, errors.KindSynthesis))
		return
	}
	c.publishEvent(id, models.EventInfo, "persona",
		fmt.Sprintf("persona synthesized from %d data points", personaModel.DataPoints), nil)

	// Stage: open the conversation so the client can chat immediately.
	stageCtx, cancelStage = c.stageContext(ctx)
	session, err := c.sessions.Start(stageCtx, personaModel)
	cancelStage()
	if err != nil {
		_, _ = c.markError(ctx, id, errors.Wrap(err, "start conversation session"))
		return
	}

	if _, err = c.investigations.Update(ctx, id, func(investigation *models.Investigation) error {
		investigation.Persona = personaModel
		investigation.ConversationID = session.ID
		investigation.Status = models.StatusReady
		investigation.UpdatedAt = time.Now().UTC()
		return nil
	}); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "could not record persona",
			slog.String("targetID", id), errors.SlogError(err))
		return
	}
	c.publishEvent(id, models.EventInfo, "investigation", "investigation ready", nil)
	c.notifyProgress(models.ProgressUpdate{
		TargetID: id,
		Status:   models.StatusReady,
	})
}

func (c *Coordinator) notifyProgress(update models.ProgressUpdate) {
	c.mu.Lock()
	callbacks := make([]func(models.ProgressUpdate), 0, len(c.subscribers[update.TargetID]))
	for _, callback := range c.subscribers[update.TargetID] {
		callbacks = append(callbacks, callback)
	}
	c.mu.Unlock()
	for _, callback := range callbacks {
		callback(update)
	}
}
