// Package pipeline drives resolved matches through download, decompression
// and upload, recording every step in the match store.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/avoronov/demorelay/internal/filex"
	"github.com/avoronov/demorelay/internal/logging"
	"github.com/avoronov/demorelay/internal/server/models"
	"github.com/avoronov/demorelay/internal/server/repositories/matches"
	"github.com/avoronov/demorelay/internal/upload"
)

var tracer = otel.Tracer("demorelay-pipeline")

type MatchStore interface {
	FindByStatus(ctx context.Context, status models.MatchStatus) ([]*models.Match, error)
	TryClaim(ctx context.Context, code string, from, to models.MatchStatus) (bool, error)
	Update(ctx context.Context, code string, upd matches.Update) error
}

// Pipeline processes resolved matches. Distinct matches in one tick run
// concurrently; the store's conditional claim keeps overlapping ticks from
// processing the same match twice.
type Pipeline struct {
	store      MatchStore
	uploader   upload.Uploader
	httpClient *http.Client
	scratchDir string
	logger     logging.Logger
}

func NewPipeline(store MatchStore, uploader upload.Uploader, scratchDir string, logger logging.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		uploader:   uploader,
		httpClient: &http.Client{},
		scratchDir: scratchDir,
		logger:     logger.With("module", "pipeline"),
	}
}

// Tick processes every currently resolved match and returns when all of
// them have finished, successfully or not.
func (p *Pipeline) Tick(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "pipeline.tick")
	defer span.End()

	resolved, err := p.store.FindByStatus(ctx, models.StatusResolved)
	if err != nil {
		span.RecordError(err)
		p.logger.Error(ctx, "listing resolved matches failed", "error", err)
		return
	}
	span.SetAttributes(attribute.Int("matches", len(resolved)))

	var wg sync.WaitGroup
	for _, m := range resolved {
		wg.Add(1)
		go func(m *models.Match) {
			defer wg.Done()
			p.process(ctx, m)
		}(m)
	}
	wg.Wait()
}

func (p *Pipeline) process(ctx context.Context, m *models.Match) {
	claimed, err := p.store.TryClaim(ctx, m.MatchCode, models.StatusResolved, models.StatusDownloading)
	if err != nil {
		p.logger.Error(ctx, "claiming match failed", "match_code", m.MatchCode, "error", err)
		return
	}
	if !claimed {
		// Another worker took the match between scan and claim.
		return
	}

	ctx, span := tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(
			attribute.String("match_code", m.MatchCode),
			attribute.String("match_id", m.MatchID),
		))
	defer span.End()

	p.logger.Info(ctx, "processing match", "match_code", m.MatchCode, "url", m.ArtifactURL)

	scratch := filepath.Join(p.scratchDir, fmt.Sprintf("%s-%s%s", m.MatchID, uuid.New(), path.Ext(m.ArtifactURL)))
	defer func() {
		if err := filex.RemoveIfExists(scratch); err != nil {
			p.logger.Warn(ctx, "removing scratch file failed", "path", scratch, "error", err)
		}
	}()

	if err := p.download(ctx, m.ArtifactURL, scratch); err != nil {
		span.RecordError(err)
		p.logger.Error(ctx, "download failed", "match_code", m.MatchCode, "error", err)
		p.fail(ctx, m.MatchCode)
		return
	}
	if !p.setStatus(ctx, m.MatchCode, models.StatusDownloaded) {
		return
	}

	if !p.setStatus(ctx, m.MatchCode, models.StatusUploading) {
		return
	}
	ref, err := p.deliver(ctx, m, scratch)
	if err != nil {
		span.RecordError(err)
		p.logger.Error(ctx, "upload failed", "match_code", m.MatchCode, "error", err)
		p.fail(ctx, m.MatchCode)
		return
	}

	uploaded := models.StatusUploaded
	err = p.store.Update(ctx, m.MatchCode, matches.Update{Status: &uploaded, UploadRef: &ref})
	if err != nil {
		span.RecordError(err)
		p.logger.Error(ctx, "recording upload failed", "match_code", m.MatchCode, "error", err)
		return
	}

	p.logger.Info(ctx, "match uploaded", "match_code", m.MatchCode, "upload_ref", ref)
}

// download streams the artifact into the scratch path. A failure removes
// the partial file before returning.
func (p *Pipeline) download(ctx context.Context, url, dest string) error {
	ctx, span := tracer.Start(ctx, "pipeline.download")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading artifact: unexpected status %s", resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating scratch file: %w", err)
	}

	_, err = io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		filex.RemoveIfExists(dest)
		return fmt.Errorf("writing scratch file: %w", err)
	}
	return nil
}

// deliver streams the decompressed artifact into the uploader and returns
// the upload reference.
func (p *Pipeline) deliver(ctx context.Context, m *models.Match, scratch string) (string, error) {
	ctx, span := tracer.Start(ctx, "pipeline.upload")
	defer span.End()

	f, err := os.Open(scratch)
	if err != nil {
		return "", fmt.Errorf("opening scratch file: %w", err)
	}
	defer f.Close()

	r, err := NewArtifactReader(m.ArtifactURL, f)
	if err != nil {
		return "", fmt.Errorf("decompressing artifact: %w", err)
	}

	ref, err := p.uploader.Upload(ctx, demoName(m.ArtifactURL, m.MatchID), r)
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (p *Pipeline) setStatus(ctx context.Context, code string, status models.MatchStatus) bool {
	if err := p.store.Update(ctx, code, matches.Update{Status: &status}); err != nil {
		p.logger.Error(ctx, "updating match status failed",
			"match_code", code, "status", status, "error", err)
		return false
	}
	return true
}

func (p *Pipeline) fail(ctx context.Context, code string) {
	failed := models.StatusFailed
	if err := p.store.Update(ctx, code, matches.Update{Status: &failed}); err != nil {
		p.logger.Error(ctx, "marking match failed errored", "match_code", code, "error", err)
	}
}
