package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/dataset-analytics/internal/config"
	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

type processorFake struct{ ids []int64 }

func (p *processorFake) ProcessByID(_ context.Context, id int64) error {
	p.ids = append(p.ids, id)
	if id == 13 {
		return errors.New("parse failed")
	}
	return nil
}

type readerFake struct{}

func (readerFake) GetForOwner(_ context.Context, owner string, id int64) (*domain.Dataset, error) {
	if owner != "u-1" {
		return nil, domain.WrapError(domain.ErrDatasetNotFound, "get", errors.New("no match"))
	}
	return &domain.Dataset{ID: id, Name: "sales", Status: domain.StatusCompleted}, nil
}

type analyticsFake struct{ filters domain.Filters }

func (a *analyticsFake) Filters(context.Context, string, int64) (domain.FilterOptions, error) {
	return domain.EmptyFilterOptions(domain.StatusCompleted), nil
}

func (a *analyticsFake) Analytics(_ context.Context, _ string, id int64, f domain.Filters) (*domain.AnalyticsReport, error) {
	a.filters = f
	return &domain.AnalyticsReport{DatasetInfo: domain.DatasetInfo{ID: id, Name: "sales"}}, nil
}

type harness struct {
	processor *processorFake
	analytics *analyticsFake
	closed    int
}

func (h *harness) factory(context.Context, config.Config) (*Backend, error) {
	return &Backend{
		Migrate:   func(context.Context) (int64, error) { return 1, nil },
		Processor: h.processor,
		Reader:    readerFake{},
		Analytics: h.analytics,
		Close:     func() { h.closed++ },
	}, nil
}

func run(t *testing.T, h *harness, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	root := NewRootCmd(h.factory)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newHarness() *harness {
	return &harness{processor: &processorFake{}, analytics: &analyticsFake{}}
}

func TestMigrateCommand(t *testing.T) {
	h := newHarness()
	out, err := run(t, h, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema at version 1\n", out)
	assert.Equal(t, 1, h.closed)
}

func TestProcessCommand(t *testing.T) {
	h := newHarness()
	out, err := run(t, h, "process", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "dataset 42 processed")
	assert.Equal(t, []int64{42}, h.processor.ids)

	_, err = run(t, h, "process", "13")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process dataset 13")
}

func TestProcessCommandRejectsBadID(t *testing.T) {
	h := newHarness()
	_, err := run(t, h, "process", "abc")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
	assert.Empty(t, h.processor.ids)
	assert.Zero(t, h.closed)
}

func TestStatusCommandRequiresOwner(t *testing.T) {
	h := newHarness()
	_, err := run(t, h, "status", "7")
	require.Error(t, err)

	out, err := run(t, h, "status", "7", "--owner", "u-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "completed"`)

	_, err = run(t, h, "status", "7", "--owner", "u-2")
	assert.True(t, domain.IsKind(err, domain.ErrDatasetNotFound))
}

func TestFiltersCommand(t *testing.T) {
	h := newHarness()
	out, err := run(t, h, "filters", "7", "--owner", "u-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"brand":[],"packtype":[],"ppg":[],"channel":[],"year":[]}`, out)
}

func TestAnalyticsCommandPassesFilters(t *testing.T) {
	h := newHarness()
	out, err := run(t, h, "analytics", "7", "--owner", "u-1", "--brand", "Alpha", "--pack-type", "Can", "--year", "2024")
	require.NoError(t, err)
	assert.Equal(t, domain.Filters{Brand: "Alpha", PackType: "Can", Year: "2024"}, h.analytics.filters)
	assert.Contains(t, out, `"dataset_info"`)
}
