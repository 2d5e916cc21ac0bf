package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/core/ports"
)

type statusCall struct {
	status domain.DatasetStatus
	errMsg string
}

type repoFake struct {
	mu sync.Mutex

	projects    map[int64]*domain.Project
	datasets    map[int64]*domain.Dataset
	nextID      int64
	createErr   error
	statusErr   error
	failErr     error
	profileErr  error
	statusCalls []statusCall
	profile     *domain.DataProfile
}

func newRepoFake() *repoFake {
	return &repoFake{
		projects: map[int64]*domain.Project{},
		datasets: map[int64]*domain.Dataset{},
		nextID:   100,
	}
}

func (f *repoFake) CreateProject(_ context.Context, p *domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	cp := *p
	f.projects[p.ID] = &cp
	return nil
}

func (f *repoFake) GetProject(_ context.Context, ownerID string, id int64) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok || p.OwnerID != ownerID {
		return nil, domain.WrapError(domain.ErrProjectNotFound, "get project", errors.New("missing"))
	}
	cp := *p
	return &cp, nil
}

func (f *repoFake) Create(_ context.Context, ds *domain.Dataset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	ds.ID = f.nextID
	cp := *ds
	f.datasets[ds.ID] = &cp
	return nil
}

func (f *repoFake) GetByID(_ context.Context, id int64) (*domain.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.datasets[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDatasetNotFound, "get dataset", errors.New("missing"))
	}
	cp := *ds
	return &cp, nil
}

func (f *repoFake) GetForOwner(ctx context.Context, ownerID string, id int64) (*domain.Dataset, error) {
	ds, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[ds.ProjectID]
	if !ok || p.OwnerID != ownerID {
		return nil, domain.WrapError(domain.ErrDatasetNotFound, "get dataset", errors.New("missing"))
	}
	return ds, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, id int64, status domain.DatasetStatus, errMessage string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if status == domain.StatusFailed && f.failErr != nil {
		return f.failErr
	}
	if f.statusErr != nil {
		return f.statusErr
	}
	if ds, ok := f.datasets[id]; ok {
		ds.Status = status
		ds.Error = errMessage
	}
	return nil
}

func (f *repoFake) SaveProfile(_ context.Context, _ int64, profile domain.DataProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return f.profileErr
	}
	f.profile = &profile
	return nil
}

func (f *repoFake) seed(ownerID string, status domain.DatasetStatus) *domain.Dataset {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[1] = &domain.Project{ID: 1, OwnerID: ownerID, Name: "p"}
	ds := &domain.Dataset{ID: 7, ProjectID: 1, Name: "sales.csv", Status: status, StoragePath: "k/sales.csv", MimeType: "text/csv"}
	f.datasets[7] = ds
	cp := *ds
	return &cp
}

type storageFake struct {
	files   map[string]string
	saveErr error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return 0, err
	}
	if f.files == nil {
		f.files = map[string]string{}
	}
	f.files[key] = string(raw)
	return int64(len(raw)), nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.files[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type queueFake struct {
	published []int64
	err       error
}

func (f *queueFake) PublishDatasetUploaded(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, id)
	return nil
}

func (f *queueFake) SubscribeDatasetUploaded(context.Context, func(context.Context, int64) error) error {
	return errors.New("not implemented")
}

type warehouseFake struct {
	openErr    error
	replaceErr error
	replaced   *domain.Table
	indexCols  []string
	aggregates []domain.StepResult
	closed     int
}

func (f *warehouseFake) OpenSession(context.Context) (ports.WarehouseSession, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &sessionFake{w: f}, nil
}

type sessionFake struct {
	w *warehouseFake
}

func (s *sessionFake) ReplaceRawTable(_ context.Context, id int64, table *domain.Table) (string, int64, error) {
	if s.w.replaceErr != nil {
		return "", 0, s.w.replaceErr
	}
	s.w.replaced = table
	return "raw_data_7", int64(len(table.Rows)), nil
}

func (s *sessionFake) BuildIndexes(_ context.Context, _ int64, columns []string) []domain.StepResult {
	s.w.indexCols = columns
	return []domain.StepResult{{Name: "idx", Outcome: domain.StepFailed, Detail: "lock timeout"}}
}

func (s *sessionFake) BuildAggregations(context.Context, int64, []string) []domain.StepResult {
	return s.w.aggregates
}

func (s *sessionFake) Close() error {
	s.w.closed++
	return nil
}

type storeFake struct {
	report   *domain.AnalyticsReport
	err      error
	values   map[domain.Dimension][]any
	runCalls int
}

func (f *storeFake) RunViews(_ context.Context, id int64, _ domain.Filters) (*domain.AnalyticsReport, error) {
	f.runCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *storeFake) DistinctValues(context.Context, int64, []domain.Dimension) map[domain.Dimension][]any {
	f.runCalls++
	return f.values
}
