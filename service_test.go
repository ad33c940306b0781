package xupload_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sagarc03/xupload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type SpyObjectStore struct {
	mock.Mock
}

func (s *SpyObjectStore) Create(ctx context.Context, loc xupload.Location, contentType string, length int64, body io.Reader) error {
	args := s.Called(ctx, loc, contentType, length, body)
	return args.Error(0)
}

func (s *SpyObjectStore) Open(ctx context.Context, loc xupload.Location) (xupload.Object, error) {
	args := s.Called(ctx, loc)
	return args.Get(0).(xupload.Object), args.Error(1)
}

func (s *SpyObjectStore) Stat(ctx context.Context, loc xupload.Location) (xupload.Object, error) {
	args := s.Called(ctx, loc)
	return args.Get(0).(xupload.Object), args.Error(1)
}

type SpyQuota struct {
	mock.Mock
}

func (s *SpyQuota) Enforce(ctx context.Context, loc xupload.Location, budget, incoming int64) (xupload.EvictionReport, error) {
	args := s.Called(ctx, loc, budget, incoming)
	return args.Get(0).(xupload.EvictionReport), args.Error(1)
}

type SpyObserver struct {
	mock.Mock
}

func (s *SpyObserver) ObserveUpload(err error, bytes int64) {
	s.Called(err, bytes)
}

func (s *SpyObserver) ObserveEviction(report xupload.EvictionReport) {
	s.Called(report)
}

type serviceFixture struct {
	service  *xupload.UploadService
	resolver *xupload.Resolver
	store    *SpyObjectStore
	quota    *SpyQuota
}

func NewUploadService(t *testing.T) serviceFixture {
	t.Helper()

	resolver, err := xupload.NewResolver(t.TempDir())
	require.NoError(t, err)

	verifier, err := xupload.NewSignatureVerifier(testSecret)
	require.NoError(t, err)

	store := new(SpyObjectStore)
	quota := new(SpyQuota)

	s, err := xupload.NewUploadService(xupload.ServiceConfig{
		Resolver: resolver,
		Verifier: verifier,
		Quota:    quota,
		Store:    store,
	})
	require.NoError(t, err, "new upload service")

	return serviceFixture{service: s, resolver: resolver, store: store, quota: quota}
}

func signedPut(path string, length int64) xupload.PutRequest {
	return xupload.PutRequest{
		Path:      path,
		Length:    length,
		Signature: xupload.Sign(testSecret, path, length),
	}
}

func TestNewUploadService_MissingCollaborator(t *testing.T) {
	_, err := xupload.NewUploadService(xupload.ServiceConfig{})
	assert.Error(t, err)
}

func TestUploadService_Put_Success(t *testing.T) {
	f := NewUploadService(t)
	ctx := context.Background()
	body := strings.NewReader("hello")

	loc, err := f.resolver.Resolve("abc/f.txt")
	require.NoError(t, err)

	req := signedPut("abc/f.txt", 5)
	req.ContentType = "text/plain"

	f.store.On("Create", mock.Anything, loc, "text/plain", int64(5), body).Return(nil)

	err = f.service.Put(ctx, req, body)
	assert.NoError(t, err)

	f.store.AssertExpectations(t)
	f.quota.AssertNotCalled(t, "Enforce", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadService_Put_InvalidPath(t *testing.T) {
	f := NewUploadService(t)

	req := signedPut("../escape", 1)
	err := f.service.Put(context.Background(), req, strings.NewReader("x"))

	assert.ErrorIs(t, err, xupload.ErrInvalidPath)
	f.store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadService_Put_BadSignatureTouchesNothing(t *testing.T) {
	f := NewUploadService(t)

	tests := []struct {
		name string
		req  xupload.PutRequest
	}{
		{"missing", xupload.PutRequest{Path: "abc/f", Length: 1, Quota: "1"}},
		{"wrong length", xupload.PutRequest{Path: "abc/f", Length: 2, Quota: "1", Signature: xupload.Sign(testSecret, "abc/f", 1)}},
		{"wrong path", xupload.PutRequest{Path: "abc/g", Length: 1, Quota: "1", Signature: xupload.Sign(testSecret, "abc/f", 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.service.Put(context.Background(), tt.req, strings.NewReader("x"))
			assert.ErrorIs(t, err, xupload.ErrUnauthorized)
		})
	}

	f.quota.AssertNotCalled(t, "Enforce", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadService_Put_SignsRawPath(t *testing.T) {
	f := NewUploadService(t)

	// "abc/./f" resolves like "abc/f" but was signed as sent
	req := signedPut("abc/./f", 1)
	f.store.On("Create", mock.Anything, mock.Anything, "", int64(1), mock.Anything).Return(nil)

	err := f.service.Put(context.Background(), req, strings.NewReader("x"))
	assert.NoError(t, err)

	req = signedPut("abc/f", 1)
	req.Path = "abc/./f"
	err = f.service.Put(context.Background(), req, strings.NewReader("x"))
	assert.ErrorIs(t, err, xupload.ErrUnauthorized)
}

func TestUploadService_Put_QuotaBeforeWrite(t *testing.T) {
	f := NewUploadService(t)
	ctx := context.Background()

	loc, err := f.resolver.Resolve("abc/f.txt")
	require.NoError(t, err)

	req := signedPut("abc/f.txt", 5)
	req.Quota = "100"

	var order []string
	f.quota.On("Enforce", mock.Anything, loc, int64(100), int64(5)).
		Run(func(mock.Arguments) { order = append(order, "enforce") }).
		Return(xupload.EvictionReport{}, nil)
	f.store.On("Create", mock.Anything, loc, "", int64(5), mock.Anything).
		Run(func(mock.Arguments) { order = append(order, "create") }).
		Return(nil)

	err = f.service.Put(ctx, req, strings.NewReader("hello"))
	require.NoError(t, err)

	assert.Equal(t, []string{"enforce", "create"}, order)
}

func TestUploadService_Put_ZeroQuotaSkipsEnforcement(t *testing.T) {
	f := NewUploadService(t)

	req := signedPut("abc/f", 1)
	req.Quota = "0"
	f.store.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := f.service.Put(context.Background(), req, strings.NewReader("x"))
	require.NoError(t, err)

	f.quota.AssertNotCalled(t, "Enforce", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadService_Put_InvalidQuota(t *testing.T) {
	f := NewUploadService(t)

	for _, q := range []string{"abc", "-1", "1.5", "1e3"} {
		t.Run(q, func(t *testing.T) {
			req := signedPut("abc/f", 1)
			req.Quota = q

			err := f.service.Put(context.Background(), req, strings.NewReader("x"))
			assert.ErrorIs(t, err, xupload.ErrInvalidQuota)
		})
	}

	f.store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadService_Put_QuotaError(t *testing.T) {
	f := NewUploadService(t)

	req := signedPut("abc/f", 1)
	req.Quota = "10"
	f.quota.On("Enforce", mock.Anything, mock.Anything, int64(10), int64(1)).
		Return(xupload.EvictionReport{}, errors.New("permission denied"))

	err := f.service.Put(context.Background(), req, strings.NewReader("x"))
	assert.ErrorContains(t, err, "enforce quota")

	f.store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadService_Put_StoreErrorsPropagate(t *testing.T) {
	for _, want := range []error{xupload.ErrConflict, xupload.ErrTruncatedUpload} {
		t.Run(want.Error(), func(t *testing.T) {
			f := NewUploadService(t)
			f.store.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(want)

			err := f.service.Put(context.Background(), signedPut("abc/f", 1), strings.NewReader("x"))
			assert.ErrorIs(t, err, want)
		})
	}
}

func TestUploadService_Put_NegativeLengthSignedAsZero(t *testing.T) {
	f := NewUploadService(t)

	req := signedPut("abc/f", 0)
	req.Length = -1
	f.store.On("Create", mock.Anything, mock.Anything, mock.Anything, int64(0), mock.Anything).Return(nil)

	err := f.service.Put(context.Background(), req, strings.NewReader(""))
	assert.NoError(t, err)
}

func TestUploadService_Put_ContextCanceled(t *testing.T) {
	f := NewUploadService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.service.Put(ctx, signedPut("abc/f", 1), strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUploadService_Put_Observer(t *testing.T) {
	resolver, err := xupload.NewResolver(t.TempDir())
	require.NoError(t, err)
	verifier, err := xupload.NewSignatureVerifier(testSecret)
	require.NoError(t, err)

	store := new(SpyObjectStore)
	quota := new(SpyQuota)
	observer := new(SpyObserver)

	s, err := xupload.NewUploadService(xupload.ServiceConfig{
		Resolver: resolver,
		Verifier: verifier,
		Quota:    quota,
		Store:    store,
		Observer: observer,
	})
	require.NoError(t, err)

	report := xupload.EvictionReport{
		Evicted: []xupload.CollectionUsage{{Name: "old", Size: 10, Objects: 1}},
		Freed:   10,
	}
	quota.On("Enforce", mock.Anything, mock.Anything, int64(5), int64(1)).Return(report, nil)
	store.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	observer.On("ObserveEviction", report).Return()
	observer.On("ObserveUpload", nil, int64(1)).Return()

	req := signedPut("abc/f", 1)
	req.Quota = "5"
	require.NoError(t, s.Put(context.Background(), req, strings.NewReader("x")))

	observer.AssertExpectations(t)
}

func TestUploadService_Get(t *testing.T) {
	f := NewUploadService(t)
	ctx := context.Background()

	loc, err := f.resolver.Resolve("abc/f")
	require.NoError(t, err)

	want := xupload.Object{Location: loc, Size: 3, Metadata: xupload.NewMetadata("")}
	f.store.On("Open", ctx, loc).Return(want, nil)

	got, err := f.service.Get(ctx, "abc/f")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUploadService_Get_NotFound(t *testing.T) {
	f := NewUploadService(t)
	f.store.On("Open", mock.Anything, mock.Anything).Return(xupload.Object{}, xupload.ErrNotFound)

	_, err := f.service.Get(context.Background(), "abc/f")
	assert.ErrorIs(t, err, xupload.ErrNotFound)
}

func TestUploadService_ReadsRejectTraversal(t *testing.T) {
	f := NewUploadService(t)

	for _, p := range []string{"../x", "/etc/passwd", "abc/../../x", ""} {
		t.Run(p, func(t *testing.T) {
			_, err := f.service.Get(context.Background(), p)
			assert.ErrorIs(t, err, xupload.ErrInvalidPath)

			_, err = f.service.Head(context.Background(), p)
			assert.ErrorIs(t, err, xupload.ErrInvalidPath)
		})
	}

	f.store.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "Stat", mock.Anything, mock.Anything)
}

func TestUploadService_Head(t *testing.T) {
	f := NewUploadService(t)

	want := xupload.Object{Size: 42, Metadata: xupload.NewMetadata("image/png")}
	f.store.On("Stat", mock.Anything, mock.Anything).Return(want, nil)

	got, err := f.service.Head(context.Background(), "abc/cat.png")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Size)
}

func TestParseQuota(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"1048576", 1048576, false},
		{"-5", 0, true},
		{"ten", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := xupload.ParseQuota(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, xupload.ErrInvalidQuota)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUploadService_Put_RecordsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	f := NewUploadService(t)

	err := f.service.Put(context.Background(), xupload.PutRequest{Path: "abc/f", Length: 1}, strings.NewReader("x"))
	require.ErrorIs(t, err, xupload.ErrUnauthorized)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "UploadService.Put", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
