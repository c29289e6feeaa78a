// Package pipeline runs the extract, translate and render stages for each
// document and fans a batch of documents out concurrently.
package pipeline

import (
	"context"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// Extractor reads the text of a document.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Translator translates text into the configured target language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Renderer writes text into a new document at outputPath.
type Renderer interface {
	Render(outputPath, text string) error
}

// Pipeline processes one TranslationJob.
type Pipeline struct {
	extractor  Extractor
	translator Translator
	renderer   Renderer
}

// New creates a Pipeline from its three stages.
func New(extractor Extractor, translator Translator, renderer Renderer) *Pipeline {
	return &Pipeline{
		extractor:  extractor,
		translator: translator,
		renderer:   renderer,
	}
}

// Run extracts, translates and renders job in that order and returns the
// output path. The first failing stage ends the job; later stages never run.
func (p *Pipeline) Run(ctx context.Context, job types.TranslationJob) (string, error) {
	log := logger.With(logger.String("input", job.InputPath))

	text, err := p.extractor.Extract(ctx, job.InputPath)
	if err != nil {
		log.Warn("extraction failed", logger.Err(err))
		return "", err
	}
	log.Debug("text extracted", logger.Int("chars", len(text)))

	translated, err := p.translator.Translate(ctx, text)
	if err != nil {
		log.Warn("translation failed", logger.Err(err))
		return "", err
	}
	log.Debug("text translated", logger.Int("chars", len(translated)))

	if err := p.renderer.Render(job.OutputPath, translated); err != nil {
		log.Warn("rendering failed", logger.String("output", job.OutputPath), logger.Err(err))
		return "", err
	}

	log.Info("document translated", logger.String("output", job.OutputPath))
	return job.OutputPath, nil
}
