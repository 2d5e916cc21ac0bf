package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/core/ports"
)

type UploadDatasetUseCase struct {
	repo    ports.DatasetRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	now     func() time.Time
}

func NewUploadDatasetUseCase(
	repo ports.DatasetRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *UploadDatasetUseCase {
	return &UploadDatasetUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (uc *UploadDatasetUseCase) CreateProject(ctx context.Context, ownerID, name string) (*domain.Project, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "create project", errors.New("missing owner"))
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create project", errors.New("name is required"))
	}

	project := &domain.Project{OwnerID: ownerID, Name: name, CreatedAt: uc.now()}
	if err := uc.repo.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

// Upload stores the file, records a pending dataset and hands its id to the
// worker queue. Processing happens asynchronously.
func (uc *UploadDatasetUseCase) Upload(ctx context.Context, req ports.UploadRequest) (*domain.Dataset, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "upload dataset", errors.New("missing owner"))
	}
	if req.Body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload dataset", errors.New("file is required"))
	}

	project, err := uc.repo.GetProject(ctx, req.OwnerID, req.ProjectID)
	if err != nil {
		return nil, err
	}

	body := bufio.NewReader(req.Body)
	if _, err := body.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "upload dataset", errors.New("file is empty"))
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}

	filename := sanitizeFilename(req.Filename)
	storageKey := fmt.Sprintf("%s/%s", uuid.NewString(), filename)
	size, err := uc.storage.Save(ctx, storageKey, body)
	if err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = filepath.Base(req.Filename)
	}
	now := uc.now()
	ds := &domain.Dataset{
		ProjectID:     project.ID,
		Name:          name,
		Status:        domain.StatusPending,
		FileSizeBytes: size,
		MimeType:      detectMimeType(filename, req.MimeType),
		StoragePath:   storageKey,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.repo.Create(ctx, ds); err != nil {
		return nil, fmt.Errorf("create dataset metadata: %w", err)
	}

	if err := uc.queue.PublishDatasetUploaded(ctx, ds.ID); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}
	return ds, nil
}

func detectMimeType(filename, declared string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return domain.MimeCSV
	case ".xlsx":
		return domain.MimeXLSX
	}
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	return "application/octet-stream"
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "dataset.csv"
	}
	return base
}
