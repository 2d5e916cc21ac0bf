package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/dataset-analytics/internal/config"
	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/core/ports"
)

// ownerHeader carries the caller identity established by the auth proxy.
const ownerHeader = "X-User-Id"

const multipartMemory = 32 << 20

// Recorder receives business events from the handlers.
type Recorder interface {
	RecordUpload(service string, sizeBytes int64, err error)
	RecordRead(service, endpoint string)
	RecordNotReady(service, endpoint, datasetStatus string)
}

type noopRecorder struct{}

func (noopRecorder) RecordUpload(string, int64, error)     {}
func (noopRecorder) RecordRead(string, string)             {}
func (noopRecorder) RecordNotReady(string, string, string) {}

type Router struct {
	uploader  ports.DatasetUploader
	reader    ports.DatasetReader
	analytics ports.AnalyticsService

	apiKey           string
	uploadMaxBytes   int64
	rateLimitRPS     float64
	rateLimitBurst   int
	maxInFlight      int
	backpressureWait time.Duration

	recorder Recorder
	service  string
}

func NewRouter(
	cfg config.Config,
	uploader ports.DatasetUploader,
	reader ports.DatasetReader,
	analytics ports.AnalyticsService,
) *Router {
	return &Router{
		uploader:         uploader,
		reader:           reader,
		analytics:        analytics,
		apiKey:           strings.TrimSpace(cfg.APIKey),
		uploadMaxBytes:   cfg.UploadMaxBytes,
		rateLimitRPS:     cfg.APIRateLimitRPS,
		rateLimitBurst:   cfg.APIRateLimitBurst,
		maxInFlight:      cfg.APIMaxInFlight,
		backpressureWait: cfg.BackpressureWait(),
		recorder:         noopRecorder{},
		service:          "api",
	}
}

func (rt *Router) WithRecorder(service string, recorder Recorder) *Router {
	if recorder != nil {
		rt.recorder = recorder
	}
	if service != "" {
		rt.service = service
	}
	return rt
}

// Handler builds the middleware chain. It fails only when the embedded API
// document is invalid.
func (rt *Router) Handler() (http.Handler, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPIDocument)
	mux.HandleFunc("POST /v1/projects", rt.createProject)
	mux.HandleFunc("POST /v1/projects/{project_id}/datasets", rt.uploadDataset)
	mux.HandleFunc("GET /v1/datasets/{dataset_id}", rt.getDataset)
	mux.HandleFunc("GET /v1/datasets/{dataset_id}/filters", rt.getFilters)
	mux.HandleFunc("GET /v1/datasets/{dataset_id}/analytics", rt.getAnalytics)

	var handler http.Handler = mux
	handler = validator.middleware(handler)
	handler = apiKeyMiddleware(handler, rt.apiKey)
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

func (rt *Router) createProject(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode project", err))
		return
	}

	project, err := rt.uploader.CreateProject(r.Context(), owner, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (rt *Router) uploadDataset(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	projectID, err := pathID(r, "project_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rt.uploadMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.uploadMaxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = domain.WrapError(domain.ErrInvalidInput, "parse upload", err)
		}
		rt.recorder.RecordUpload(rt.service, 0, err)
		writeError(w, r, err)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		err = domain.WrapError(domain.ErrInvalidInput, "parse upload", errors.New("multipart field 'file' is required"))
		rt.recorder.RecordUpload(rt.service, 0, err)
		writeError(w, r, err)
		return
	}
	defer file.Close()

	ds, err := rt.uploader.Upload(r.Context(), ports.UploadRequest{
		OwnerID:   owner,
		ProjectID: projectID,
		Name:      r.FormValue("name"),
		Filename:  fileHeader.Filename,
		MimeType:  fileHeader.Header.Get("Content-Type"),
		Body:      file,
	})
	if err != nil {
		rt.recorder.RecordUpload(rt.service, 0, err)
		writeError(w, r, err)
		return
	}
	rt.recorder.RecordUpload(rt.service, ds.FileSizeBytes, nil)
	writeJSON(w, http.StatusAccepted, ds)
}

func (rt *Router) getDataset(w http.ResponseWriter, r *http.Request) {
	owner, datasetID, err := ownerAndDataset(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ds, err := rt.reader.GetForOwner(r.Context(), owner, datasetID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (rt *Router) getFilters(w http.ResponseWriter, r *http.Request) {
	owner, datasetID, err := ownerAndDataset(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts, err := rt.analytics.Filters(r.Context(), owner, datasetID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if opts.Status != domain.StatusCompleted {
		rt.recorder.RecordNotReady(rt.service, "filters", string(opts.Status))
	} else {
		rt.recorder.RecordRead(rt.service, "filters")
	}
	writeJSON(w, http.StatusOK, opts)
}

func (rt *Router) getAnalytics(w http.ResponseWriter, r *http.Request) {
	owner, datasetID, err := ownerAndDataset(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filters, err := filtersFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := rt.analytics.Analytics(r.Context(), owner, datasetID, filters)
	if err != nil {
		var notReady *domain.NotReadyError
		if errors.As(err, &notReady) {
			rt.recorder.RecordNotReady(rt.service, "analytics", string(notReady.Status))
		}
		writeError(w, r, err)
		return
	}
	rt.recorder.RecordRead(rt.service, "analytics")
	writeJSON(w, http.StatusOK, report)
}

func ownerFromRequest(r *http.Request) (string, error) {
	owner := strings.TrimSpace(r.Header.Get(ownerHeader))
	if owner == "" {
		return "", domain.WrapError(domain.ErrUnauthorized, "identify caller", fmt.Errorf("%s header is required", ownerHeader))
	}
	return owner, nil
}

func ownerAndDataset(r *http.Request) (string, int64, error) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		return "", 0, err
	}
	id, err := pathID(r, "dataset_id")
	if err != nil {
		return "", 0, err
	}
	return owner, id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", name, r.PathValue(name), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "bind "+name, err)
	}
	if id <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "bind "+name, fmt.Errorf("%s must be positive", name))
	}
	return id, nil
}

func filtersFromQuery(r *http.Request) (domain.Filters, error) {
	var f domain.Filters
	query := r.URL.Query()
	params := []struct {
		name string
		dest *string
	}{
		{"brand", &f.Brand},
		{"packType", &f.PackType},
		{"ppg", &f.PPG},
		{"channel", &f.Channel},
		{"year", &f.Year},
	}
	for _, p := range params {
		if err := runtime.BindQueryParameter("form", true, false, p.name, query, p.dest); err != nil {
			return domain.Filters{}, domain.WrapError(domain.ErrInvalidFilterValue, "bind "+p.name, err)
		}
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
