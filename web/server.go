// Package web exposes the terrain pipeline as an HTTP generation
// service: upload a boundary dataset plus a DEM, download a zip of
// per-district STL files.
package web

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	terrastl "github.com/geoforms/terrastl"
)

// maxUploadBytes bounds the combined multipart payload.
const maxUploadBytes = 256 << 20

// NewHandler builds the service router.
func NewHandler(log *slog.Logger) http.Handler {
	s := &server{log: log}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/generate", s.generate).Methods(http.MethodPost)
	return r
}

type server struct {
	log *slog.Logger
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

// generate runs one batch per request inside a temporary directory and
// streams back a zip of the produced STL files.
func (s *server) generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "bad multipart payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	workDir, err := os.MkdirTemp("", "terrastl-*")
	if err != nil {
		http.Error(w, "temp dir: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(workDir)

	districtsPath, err := saveUpload(r, "districts", workDir, ".geojson")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	demPath, err := saveUpload(r, "dem", workDir, ".tif")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := terrastl.Config{
		DistrictsPath: districtsPath,
		DEMPath:       demPath,
		OutputDir:     filepath.Join(workDir, "stl_output"),
	}
	if cfg.Exaggeration, err = formFloat(r, "exaggeration", terrastl.DefaultExaggeration); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cfg.TargetSizeMM, err = formFloat(r, "scale", terrastl.DefaultTargetSizeMM); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if epsg := r.FormValue("epsg"); epsg != "" {
		cfg.TargetEPSG, err = strconv.Atoi(epsg)
		if err != nil {
			http.Error(w, "bad epsg value: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	cfg.ASCII = r.FormValue("ascii") == "true"

	results, err := terrastl.Run(cfg, s.log)
	if err != nil {
		var inputErr *terrastl.InputReadError
		status := http.StatusInternalServerError
		if errors.As(err, &inputErr) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	produced := 0
	for _, res := range results {
		if res.Err == nil {
			produced++
		}
	}
	if produced == 0 {
		http.Error(w, "no district produced a mesh", http.StatusUnprocessableEntity)
		return
	}

	zipPath := filepath.Join(workDir, "terrain.zip")
	if err := zipDir(cfg.OutputDir, zipPath); err != nil {
		http.Error(w, "packaging output: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("generated terrain bundle", "districts", produced, "total", len(results))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="terrain.zip"`)
	http.ServeFile(w, r, zipPath)
}

// saveUpload stores one multipart file into dir, keeping the original
// extension so format dispatch keeps working.
func saveUpload(r *http.Request, field, dir, defaultExt string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", fmt.Errorf("missing %q upload: %w", field, err)
	}
	defer file.Close()
	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = defaultExt
	}
	path := filepath.Join(dir, field+ext)
	if err := writeFile(path, file); err != nil {
		return "", fmt.Errorf("storing %q upload: %w", field, err)
	}
	return path, nil
}

func writeFile(path string, src multipart.File) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// zipDir packs every file directly inside dir into a zip archive.
func zipDir(dir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(dir)
	if err != nil {
		out.Close()
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w, err := zw.Create(e.Name())
		if err != nil {
			out.Close()
			return err
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			out.Close()
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// formFloat parses a positive float form value, defaulting when the
// field is absent. An explicit zero is rejected rather than silently
// turned into the default.
func formFloat(r *http.Request, field string, def float64) (float64, error) {
	s := r.FormValue(field)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s value: %w", field, err)
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("bad %s value: must be positive, got %s", field, s)
	}
	return v, nil
}
