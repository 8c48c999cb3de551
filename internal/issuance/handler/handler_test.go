package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/internal/document"
	"sigil/internal/issuance"
	"sigil/pkg/domain"
	"sigil/pkg/requestcontext"
	"sigil/pkg/testutil"
)

type stubService struct {
	lastRequest issuance.Request
	result      issuance.Result
	err         error
}

func (s *stubService) Issue(_ context.Context, req issuance.Request) (issuance.Result, error) {
	s.lastRequest = req
	return s.result, s.err
}

func newRouter(service Service) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(service, logger).Register(r)
	return r
}

func issueBody(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if file != nil {
		fw, err := writer.CreateFormFile("file", "certificate.pdf")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestHandleIssue(t *testing.T) {
	record := document.Record{
		DocID:  domain.DocID("doc-1"),
		Status: document.StatusActive,
		Meta:   document.Meta{Kind: document.KindCertificate},
	}

	t.Run("issuer submission reaches the pipeline", func(t *testing.T) {
		stub := &stubService{result: issuance.Result{Record: record, Anchored: true}}
		router := newRouter(stub)

		body, contentType := issueBody(t, map[string]string{
			"doc_id": "doc-1",
			"title":  "BSc Computer Science",
			"kind":   "certificate",
		}, []byte("artifact bytes"))
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		req = testutil.WithPrincipal(req, "issuer-1", requestcontext.RoleIssuer)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, domain.DocID("doc-1"), stub.lastRequest.DocID)
		assert.Equal(t, "issuer-1", stub.lastRequest.IssuerID)
		assert.Equal(t, document.KindCertificate, stub.lastRequest.Meta.Kind)
		assert.Equal(t, []byte("artifact bytes"), stub.lastRequest.Bytes)
		assert.Equal(t, "certificate.pdf", stub.lastRequest.FileName)

		var resp IssueResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Anchored)
		assert.Equal(t, "doc-1", resp.Document.DocID)
	})

	t.Run("meta json field carries the typed union", func(t *testing.T) {
		stub := &stubService{result: issuance.Result{Record: record, Anchored: true}}
		router := newRouter(stub)

		meta := `{"kind":"transcript","transcript":{"student_ref":"S-42","academic_year":"2023/24"}}`
		body, contentType := issueBody(t, map[string]string{
			"title": "Transcript",
			"meta":  meta,
		}, []byte("artifact"))
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		req = testutil.WithPrincipal(req, "issuer-1", requestcontext.RoleIssuer)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, document.KindTranscript, stub.lastRequest.Meta.Kind)
		require.NotNil(t, stub.lastRequest.Meta.Transcript)
		assert.Equal(t, "S-42", stub.lastRequest.Meta.Transcript.StudentRef)
	})

	t.Run("unanchored outcome returns accepted", func(t *testing.T) {
		stub := &stubService{
			result: issuance.Result{Record: record, Anchored: false},
			err:    fmt.Errorf("%w: doc doc-1", issuance.ErrNotAnchored),
		}
		router := newRouter(stub)

		body, contentType := issueBody(t, map[string]string{
			"doc_id": "doc-1",
			"title":  "BSc Computer Science",
			"kind":   "certificate",
		}, []byte("artifact bytes"))
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		req = testutil.WithPrincipal(req, "issuer-1", requestcontext.RoleIssuer)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusAccepted, rr.Code)
		var resp IssueResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.False(t, resp.Anchored)
	})

	t.Run("missing file part is rejected", func(t *testing.T) {
		stub := &stubService{}
		router := newRouter(stub)

		body, contentType := issueBody(t, map[string]string{"title": "x", "kind": "certificate"}, nil)
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		req = testutil.WithPrincipal(req, "issuer-1", requestcontext.RoleIssuer)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("verifier role is forbidden", func(t *testing.T) {
		router := newRouter(&stubService{})

		body, contentType := issueBody(t, map[string]string{"title": "x", "kind": "certificate"}, []byte("a"))
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", contentType)
		req = testutil.WithPrincipal(req, "verifier-1", requestcontext.RoleVerifier)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}
