// Package pipeline runs a document through chunking, indexing, outlining,
// retrieval, synthesis and assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"slidedeck-ai/internal/contextutil"
	"slidedeck-ai/internal/deck"
	"slidedeck-ai/internal/grounding"
	"slidedeck-ai/internal/index"
	"slidedeck-ai/internal/outline"
	"slidedeck-ai/internal/retrieval"
	"slidedeck-ai/internal/slides"
	"slidedeck-ai/internal/synthesis"
)

// MaxSectionParallelism bounds per-section concurrency.
const MaxSectionParallelism = 16

// Options configures the pipeline.
type Options struct {
	SectionParallelism int `yaml:"section_parallelism"`
}

// DefaultOptions returns the default pipeline settings.
func DefaultOptions() Options {
	return Options{SectionParallelism: 4}
}

// Request starts a run from a document.
type Request struct {
	Document  deck.Document
	Params    deck.ChunkParams
	Narrative string
	Tone      string
}

// ResumeRequest re-enters a run at the outlined stage for an indexed document.
type ResumeRequest struct {
	DocumentID string
	// Sections is an edited outline. When empty a new outline is generated.
	Sections  []deck.OutlineSection
	Narrative string
	Tone      string
}

// OutlineResult is the output of a run stopped after outlining.
type OutlineResult struct {
	DocumentID string
	Title      string
	Sections   []deck.OutlineSection
	// Narrative is the outline rendered as editable markdown.
	Narrative string
	Stats     index.Stats
}

// Result is the output of a complete run.
type Result struct {
	DocumentID string
	Deck       deck.SlideDeck
	Sections   []deck.OutlineSection
	Warnings   []deck.SectionWarning
	Timings    map[deck.Stage]time.Duration
}

// Pipeline wires the stages together.
type Pipeline struct {
	indexes   *index.Store
	outliner  *outline.Generator
	retriever *retrieval.Engine
	synth     *synthesis.Synthesizer
	assembler *slides.Assembler
	opts      Options
}

// New creates a Pipeline.
func New(
	indexes *index.Store,
	outliner *outline.Generator,
	retriever *retrieval.Engine,
	synth *synthesis.Synthesizer,
	assembler *slides.Assembler,
	opts Options,
) *Pipeline {
	if opts.SectionParallelism <= 0 {
		opts.SectionParallelism = DefaultOptions().SectionParallelism
	}
	opts.SectionParallelism = min(opts.SectionParallelism, MaxSectionParallelism)
	return &Pipeline{
		indexes:   indexes,
		outliner:  outliner,
		retriever: retriever,
		synth:     synth,
		assembler: assembler,
		opts:      opts,
	}
}

// run tracks stage timings of one invocation.
type run struct {
	started time.Time
	timings map[deck.Stage]time.Duration
}

func newRun() *run {
	return &run{started: time.Now(), timings: make(map[deck.Stage]time.Duration)}
}

// mark records the time spent since the previous stage ended.
func (r *run) mark(stage deck.Stage) {
	now := time.Now()
	r.timings[stage] = now.Sub(r.started)
	r.started = now
}

// split moves d of the time recorded for from onto stage. A reused index
// records zero chunking time.
func (r *run) split(from, stage deck.Stage, d time.Duration) {
	d = max(min(d, r.timings[from]), 0)
	r.timings[from] -= d
	r.timings[stage] = d
}

// Run processes a document into a slide deck. Fatal failures are returned as
// *deck.StageError and produce no deck.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	r := newRun()
	req.Document.Title = deck.DisplayTitle(req.Document.Title)
	ix, err := p.index(ctx, r, req.Document, req.Params)
	if err != nil {
		return nil, err
	}

	sections, err := p.outliner.Generate(ctx, req.Document.Title, ix.Chunks())
	if err != nil {
		return nil, &deck.StageError{Stage: deck.StageOutlined, Err: err}
	}
	sections = outline.ApplyNarrative(sections, req.Narrative)
	r.mark(deck.StageOutlined)
	p.logStage(ctx, ix.DocumentID(), deck.StageOutlined, "sections", len(sections))

	return p.generate(ctx, r, ix, sections, req.Tone)
}

// Outline runs the document up to the outlined stage. The index stays
// persisted so Resume can continue from it.
func (p *Pipeline) Outline(ctx context.Context, req Request) (*OutlineResult, error) {
	r := newRun()
	req.Document.Title = deck.DisplayTitle(req.Document.Title)
	ix, err := p.index(ctx, r, req.Document, req.Params)
	if err != nil {
		return nil, err
	}

	sections, err := p.outliner.Generate(ctx, req.Document.Title, ix.Chunks())
	if err != nil {
		return nil, &deck.StageError{Stage: deck.StageOutlined, Err: err}
	}
	sections = outline.ApplyNarrative(sections, req.Narrative)
	p.logStage(ctx, ix.DocumentID(), deck.StageOutlined, "sections", len(sections))

	return &OutlineResult{
		DocumentID: ix.DocumentID(),
		Title:      req.Document.Title,
		Sections:   sections,
		Narrative:  outline.RenderNarrative(req.Document.Title, sections),
		Stats:      ix.Stats(),
	}, nil
}

// Resume enters at the outlined stage with an edited outline or narrative
// and reuses the persisted index of the document.
func (p *Pipeline) Resume(ctx context.Context, req ResumeRequest) (*Result, error) {
	r := newRun()
	ix, err := p.indexes.Load(ctx, req.DocumentID)
	if err != nil {
		return nil, &deck.StageError{Stage: deck.StageIndexed, Err: err}
	}
	r.mark(deck.StageIndexed)
	title := deck.DisplayTitle(ix.Meta().Title)

	var sections []deck.OutlineSection
	if len(req.Sections) > 0 {
		sections, err = outline.ValidateSections(req.Sections, p.outliner.Options())
	} else {
		sections, err = p.outliner.Generate(ctx, title, ix.Chunks())
	}
	if err != nil {
		return nil, &deck.StageError{Stage: deck.StageOutlined, Err: err}
	}
	sections = outline.ApplyNarrative(sections, req.Narrative)
	r.mark(deck.StageOutlined)
	p.logStage(ctx, ix.DocumentID(), deck.StageOutlined, "sections", len(sections), "edited", len(req.Sections) > 0)

	return p.generate(ctx, r, ix, sections, req.Tone)
}

func (p *Pipeline) index(ctx context.Context, r *run, doc deck.Document, params deck.ChunkParams) (*index.Index, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, &deck.StageError{Stage: deck.StageIngested, Err: &deck.ConfigError{Field: "document", Message: "no extractable text"}}
	}
	if doc.ID == "" {
		doc.ID = deck.DocumentIdentity(doc.Text)
	}
	r.mark(deck.StageIngested)

	if err := params.Validate(); err != nil {
		return nil, &deck.StageError{Stage: deck.StageChunked, Err: err}
	}

	ix, err := p.indexes.Get(ctx, doc, params)
	if err != nil {
		if errors.Is(err, deck.ErrConfig) {
			return nil, &deck.StageError{Stage: deck.StageChunked, Err: err}
		}
		return nil, &deck.StageError{Stage: deck.StageIndexed, Err: err}
	}
	r.mark(deck.StageIndexed)
	r.split(deck.StageIndexed, deck.StageChunked, ix.ChunkTime())
	p.logStage(ctx, ix.DocumentID(), deck.StageIndexed, "chunks", ix.Len())
	return ix, nil
}

// generate runs retrieval, synthesis and assembly for an outline.
func (p *Pipeline) generate(ctx context.Context, r *run, ix *index.Index, sections []deck.OutlineSection, tone string) (*Result, error) {
	docID := ix.DocumentID()

	sets, err := p.retrieve(ctx, ix, sections)
	if err != nil {
		return nil, &deck.StageError{Stage: deck.StageRetrieved, Err: err}
	}
	r.mark(deck.StageRetrieved)
	p.logStage(ctx, docID, deck.StageRetrieved)

	results, err := p.synthesize(ctx, sections, sets, tone)
	if err != nil {
		return nil, &deck.StageError{Stage: deck.StageSynthesized, Err: err}
	}
	r.mark(deck.StageSynthesized)
	p.logStage(ctx, docID, deck.StageSynthesized)

	var warnings []deck.SectionWarning
	degraded := []string{}
	insufficient := []string{}
	contents := make([]slides.SectionContent, len(sections))
	for i, res := range results {
		contents[i] = slides.SectionContent{Section: sections[i], Items: res.Items}
		if res.Warning != nil {
			warnings = append(warnings, *res.Warning)
		}
		if res.Degraded {
			degraded = append(degraded, sections[i].ID)
		}
		if res.Insufficient {
			insufficient = append(insufficient, sections[i].ID)
		}
	}

	chunkIDs := make(map[string]struct{}, ix.Len())
	for _, c := range ix.Chunks() {
		chunkIDs[c.ID] = struct{}{}
	}

	meta := ix.Meta()
	timings := make(map[string]int64, len(r.timings))
	for stage, d := range r.timings {
		timings[string(stage)] = d.Milliseconds()
	}
	d, err := p.assembler.Assemble(slides.Input{
		Title:     deck.DisplayTitle(meta.Title),
		SourcePDF: meta.DocumentName,
		Sections:  contents,
		ChunkIDs:  chunkIDs,
		Metadata: map[string]any{
			"format_version":        deck.FormatVersion,
			"document_id":           docID,
			"section_count":         len(sections),
			"index":                 ix.Stats(),
			"degraded_sections":     degraded,
			"insufficient_sections": insufficient,
			"stage_timings_ms":      timings,
		},
	})
	if err != nil {
		return nil, &deck.StageError{Stage: deck.StageAssembled, Err: err}
	}
	r.mark(deck.StageAssembled)
	p.logStage(ctx, docID, deck.StageAssembled, "slides", len(d.Slides), "warnings", len(warnings))

	return &Result{
		DocumentID: docID,
		Deck:       d,
		Sections:   sections,
		Warnings:   warnings,
		Timings:    r.timings,
	}, nil
}

// retrieve fetches candidates for all sections concurrently, then selects
// sequentially in outline order so reuse accounting is deterministic.
func (p *Pipeline) retrieve(ctx context.Context, ix *index.Index, sections []deck.OutlineSection) ([]deck.RetrievedSet, error) {
	candidates := make([][]deck.RetrievedChunk, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.SectionParallelism)
	for i, section := range sections {
		g.Go(func() error {
			c, err := p.retriever.Candidates(gctx, ix, section)
			if err != nil {
				return err
			}
			candidates[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usage := retrieval.NewUsage()
	sets := make([]deck.RetrievedSet, len(sections))
	for i, section := range sections {
		sets[i] = p.retriever.Select(section, candidates[i], usage)
	}
	return sets, nil
}

// synthesize drafts every section concurrently, then re-checks each section
// against the ones before it for repeated content. A model failure on one
// section becomes a warning; cancellation aborts the run.
func (p *Pipeline) synthesize(ctx context.Context, sections []deck.OutlineSection, sets []deck.RetrievedSet, tone string) ([]synthesis.Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	requests := make([]synthesis.Request, len(sections))
	for i, section := range sections {
		requests[i] = synthesis.Request{
			Section:     section,
			Retrieved:   sets[i],
			OtherTitles: otherTitles(sections, i),
			Tone:        tone,
		}
	}

	results := make([]synthesis.Result, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.SectionParallelism)
	for i := range requests {
		g.Go(func() error {
			res, err := p.synth.Synthesize(gctx, requests[i])
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.WarnContext(gctx, "section synthesis failed", "section_id", sections[i].ID, "error", err)
				res = failedSection(sections[i], err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	threshold := p.synth.Options().DuplicateThreshold
	for i := range requests {
		var others []string
		for j := 0; j < i; j++ {
			if text := grounding.JoinText(results[j].Items); text != "" {
				others = append(others, text)
			}
		}
		if len(others) == 0 || !repeats(results[i].Items, others, threshold) {
			continue
		}
		requests[i].Others = others
		res, err := p.synth.Revise(ctx, requests[i], results[i])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.WarnContext(ctx, "section revision failed", "section_id", sections[i].ID, "error", err)
			continue
		}
		results[i] = res
	}
	return results, nil
}

func repeats(items []deck.ContentItem, others []string, threshold float64) bool {
	text := grounding.JoinText(items)
	for _, o := range others {
		if grounding.NearDuplicate(text, o, threshold) {
			return true
		}
	}
	return false
}

func failedSection(section deck.OutlineSection, err error) synthesis.Result {
	return synthesis.Result{
		SectionID: section.ID,
		Items:     []deck.ContentItem{},
		Degraded:  true,
		Attempts:  1,
		Warning: &deck.SectionWarning{
			SectionID: section.ID,
			Title:     section.Title,
			Reason:    fmt.Sprintf("content could not be generated: %v", err),
		},
	}
}

func otherTitles(sections []deck.OutlineSection, skip int) []string {
	titles := make([]string, 0, len(sections)-1)
	for i, s := range sections {
		if i != skip {
			titles = append(titles, s.Title)
		}
	}
	return titles
}

func (p *Pipeline) logStage(ctx context.Context, documentID string, stage deck.Stage, args ...any) {
	attrs := append([]any{"document_id", documentID, "stage", string(stage)}, args...)
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "stage complete", attrs...)
}
