package xupload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/sagarc03/xupload")

// ObjectStore defines the persistence operations for objects.
//
// All methods accept a context for cancellation. Implementations must make
// Create all-or-nothing: on any error neither artifact may remain.
type ObjectStore interface {
	// Create stores exactly length bytes from body as the data artifact of loc
	// and writes the metadata record for contentType.
	//
	// Returns:
	//   - ErrConflict if either artifact already exists
	//   - ErrTruncatedUpload if body ends (or fails) before length bytes
	//   - any other storage error, wrapped
	Create(ctx context.Context, loc Location, contentType string, length int64, body io.Reader) error

	// Open returns the object with its Content open for reading.
	// The caller must close Content.
	//
	// Returns ErrNotFound if the data artifact is missing or the metadata
	// artifact is missing or unparsable.
	Open(ctx context.Context, loc Location) (Object, error)

	// Stat is Open without opening the content.
	Stat(ctx context.Context, loc Location) (Object, error)
}

// QuotaEnforcer frees space in the scope of loc so that incoming more bytes fit
// into budget. A zero budget disables enforcement.
type QuotaEnforcer interface {
	Enforce(ctx context.Context, loc Location, budget, incoming int64) (EvictionReport, error)
}

// Observer receives upload and eviction outcomes, e.g. for metrics.
type Observer interface {
	ObserveUpload(err error, bytes int64)
	ObserveEviction(report EvictionReport)
}

type nopObserver struct{}

func (nopObserver) ObserveUpload(error, int64)      {}
func (nopObserver) ObserveEviction(EvictionReport) {}

// UploadService ties the resolver, verifier, quota enforcer and store together.
type UploadService struct {
	resolver *Resolver
	verifier *SignatureVerifier
	quota    QuotaEnforcer
	store    ObjectStore
	observer Observer
}

// ServiceConfig holds the collaborators of an UploadService.
type ServiceConfig struct {
	Resolver *Resolver
	Verifier *SignatureVerifier
	Quota    QuotaEnforcer
	Store    ObjectStore
	Observer Observer // optional
}

// NewUploadService creates an UploadService. Every collaborator except the
// Observer is required.
func NewUploadService(cfg ServiceConfig) (*UploadService, error) {
	if cfg.Resolver == nil || cfg.Verifier == nil || cfg.Quota == nil || cfg.Store == nil {
		return nil, fmt.Errorf("new upload service: missing collaborator")
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &UploadService{
		resolver: cfg.Resolver,
		verifier: cfg.Verifier,
		quota:    cfg.Quota,
		store:    cfg.Store,
		observer: observer,
	}, nil
}

// Put stores an uploaded object.
//
// The method performs the following steps:
//  1. Resolves req.Path under the data root
//  2. Verifies req.Signature against the raw path and declared length
//  3. Parses the quota and, if set, evicts old collections from the scope
//  4. Writes data and metadata through the store
//
// Nothing on disk is touched before step 3.
//
// Error types returned:
//   - ErrInvalidPath, ErrUnauthorized, ErrInvalidQuota
//   - ErrConflict, ErrTruncatedUpload from the store
//   - wrapped storage errors
func (s *UploadService) Put(ctx context.Context, req PutRequest, body io.Reader) (err error) {
	ctx, span := tracer.Start(ctx, "UploadService.Put")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upload failed")
		}
		span.End()
		s.observer.ObserveUpload(err, req.Length)
	}()
	span.SetAttributes(
		attribute.String("xupload.path", req.Path),
		attribute.Int64("xupload.length", req.Length),
	)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	loc, err := s.resolver.Resolve(req.Path)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	if req.Length < 0 {
		req.Length = 0
	}

	if err := s.verifier.Verify(req.Path, req.Length, req.Signature); err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	budget, err := ParseQuota(req.Quota)
	if err != nil {
		return fmt.Errorf("put object %s: %w", req.Path, err)
	}

	if budget > 0 {
		report, err := s.quota.Enforce(ctx, loc, budget, req.Length)
		if err != nil {
			return fmt.Errorf("put object %s: enforce quota: %w", req.Path, err)
		}
		span.AddEvent("quota enforced", trace.WithAttributes(
			attribute.Int64("xupload.quota.budget", budget),
			attribute.Int64("xupload.quota.freed", report.Freed),
			attribute.Int("xupload.quota.evicted", len(report.Evicted)),
		))
		if len(report.Evicted) > 0 {
			s.observer.ObserveEviction(report)
		}
	}

	if err := s.store.Create(ctx, loc, req.ContentType, req.Length, body); err != nil {
		return fmt.Errorf("put object %s: %w", req.Path, err)
	}

	slog.Debug("object stored", "path", req.Path, "bytes", req.Length)
	return nil
}

// Get resolves path and opens the stored object. The caller must close Content.
func (s *UploadService) Get(ctx context.Context, path string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, fmt.Errorf("get object: %w", err)
	}

	loc, err := s.resolver.Resolve(path)
	if err != nil {
		return Object{}, fmt.Errorf("get object: %w", err)
	}

	obj, err := s.store.Open(ctx, loc)
	if err != nil {
		return Object{}, fmt.Errorf("get object %s: %w", path, err)
	}
	return obj, nil
}

// Head resolves path and returns the object's metadata and size.
func (s *UploadService) Head(ctx context.Context, path string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, fmt.Errorf("head object: %w", err)
	}

	loc, err := s.resolver.Resolve(path)
	if err != nil {
		return Object{}, fmt.Errorf("head object: %w", err)
	}

	obj, err := s.store.Stat(ctx, loc)
	if err != nil {
		return Object{}, fmt.Errorf("head object %s: %w", path, err)
	}
	return obj, nil
}

// ParseQuota parses the q query parameter. Empty means no quota (0).
func ParseQuota(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("parse quota %q: %w", s, ErrInvalidQuota)
	}
	return n, nil
}
