package web

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geoforms/terrastl/internal/testgeo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func demBytes() []byte {
	const size = 8
	vals := make([]float32, size*size)
	for i := range vals {
		vals[i] = float32(i % 13)
	}
	return testgeo.GeoTIFF(testgeo.TIFFOpts{
		Width: size, Height: size,
		Values:  vals,
		OriginX: 0, OriginY: size,
		DX: 1, DY: 1,
	})
}

func districtBytes() []byte {
	return testgeo.DistrictsJSON(
		testgeo.Feature{Name: "alpha", Rings: testgeo.Square(0.2, 0.2, 7.6)},
	)
}

// multipartBody builds a generate request payload. Fields with an empty
// value are left out.
func multipartBody(t *testing.T, districts, dem []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if districts != nil {
		fw, err := mw.CreateFormFile("districts", "districts.geojson")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(districts)
	}
	if dem != nil {
		fw, err := mw.CreateFormFile("dem", "dem.tif")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(dem)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	h := NewHandler(testLogger())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestGenerate(t *testing.T) {
	h := NewHandler(testLogger())
	body, contentType := multipartBody(t, districtBytes(), demBytes(), map[string]string{
		"exaggeration": "2",
		"scale":        "120",
	})
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q, want application/zip", ct)
	}

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 1 {
		t.Fatalf("zip holds %d files, want 1", len(zr.File))
	}
	if zr.File[0].Name != "alpha.stl" {
		t.Errorf("zip entry = %q, want alpha.stl", zr.File[0].Name)
	}
	if zr.File[0].UncompressedSize64 == 0 {
		t.Error("alpha.stl is empty")
	}
}

func TestGenerateMissingUpload(t *testing.T) {
	h := NewHandler(testLogger())
	body, contentType := multipartBody(t, districtBytes(), nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGenerateBadParameter(t *testing.T) {
	h := NewHandler(testLogger())
	// An explicit zero must be rejected, not silently replaced by the
	// default a missing field gets.
	for _, fields := range []map[string]string{
		{"exaggeration": "tall"},
		{"exaggeration": "0"},
		{"exaggeration": "-2"},
		{"scale": "0"},
	} {
		body, contentType := multipartBody(t, districtBytes(), demBytes(), fields)
		req := httptest.NewRequest(http.MethodPost, "/generate", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("fields %v: status = %d, want 400", fields, rec.Code)
		}
	}
}

func TestGenerateNoOverlap(t *testing.T) {
	h := NewHandler(testLogger())
	outside := testgeo.DistrictsJSON(
		testgeo.Feature{Name: "faraway", Rings: testgeo.Square(500, 500, 3)},
	)
	body, contentType := multipartBody(t, outside, demBytes(), nil)
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestGenerateRejectsBadTIFF(t *testing.T) {
	h := NewHandler(testLogger())
	body, contentType := multipartBody(t, districtBytes(), []byte("junk"), nil)
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
}
