package service

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/repository"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRequestNormalize(t *testing.T) {
	assert.Equal(t, PageRequest{Page: 1, PerPage: 50}, PageRequest{}.Normalize())
	assert.Equal(t, PageRequest{Page: 1, PerPage: 50}, PageRequest{Page: -3, PerPage: 30}.Normalize())
	assert.Equal(t, PageRequest{Page: 4, PerPage: 100}, PageRequest{Page: 4, PerPage: 100}.Normalize())
	assert.Equal(t, PageRequest{Page: 2, PerPage: 25}, PageRequest{Page: 2, PerPage: 25}.Normalize())
}

func TestListPagination(t *testing.T) {
	env := setupServices(t)
	testutil.SeedApplications(t, env.db, 60, nil)

	page, err := env.svc.Query.List(context.Background(), repository.ApplicationQuery{}, PageRequest{Page: 2, PerPage: 25})
	require.NoError(t, err)
	assert.Len(t, page.Items, 25)
	assert.Equal(t, int64(60), page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasPrev)
	assert.True(t, page.HasNext)

	// 默认按创建时间倒序：第 2 页从第 35 条开始
	assert.Equal(t, "FB-SEED-0035", page.Items[0].AppNumber)
	assert.Equal(t, "FB-SEED-0011", page.Items[24].AppNumber)

	last, err := env.svc.Query.List(context.Background(), repository.ApplicationQuery{}, PageRequest{Page: 3, PerPage: 25})
	require.NoError(t, err)
	assert.Len(t, last.Items, 10)
	assert.False(t, last.HasNext)

	beyond, err := env.svc.Query.List(context.Background(), repository.ApplicationQuery{}, PageRequest{Page: 9, PerPage: 25})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 3, beyond.TotalPages)
}

func TestListEmpty(t *testing.T) {
	env := setupServices(t)
	page, err := env.svc.Query.List(context.Background(), repository.ApplicationQuery{}, PageRequest{})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Zero(t, page.TotalPages)
	assert.False(t, page.HasPrev)
	assert.False(t, page.HasNext)
	assert.Equal(t, 50, page.PerPage)
}

func TestListFiltersAndSort(t *testing.T) {
	env := setupServices(t)
	testutil.SeedApplications(t, env.db, 6, func(i int, app *entity.Application) {
		app.InvoiceAmount = decimal.NewFromInt(int64(i * 10))
		app.PurchaseTime = testutil.Date(2024, time.March, i)
		app.InvoiceDate = testutil.Date(2024, time.April, i)
		if i%2 == 0 {
			app.Purchaser = "李四"
			app.UsageType = "行政"
		}
		if i == 3 {
			app.Status = entity.StatusApproved
		}
	})

	list := func(q repository.ApplicationQuery) []string {
		t.Helper()
		page, err := env.svc.Query.List(context.Background(), q, PageRequest{PerPage: 100})
		require.NoError(t, err)
		out := []string{}
		for _, app := range page.Items {
			out = append(out, app.InvoiceNumber)
		}
		return out
	}

	assert.Equal(t, []string{"INV-0006", "INV-0004", "INV-0002"}, list(repository.ApplicationQuery{Purchaser: "李"}))
	assert.Equal(t, []string{"INV-0003"}, list(repository.ApplicationQuery{Status: "approved"}))
	assert.Equal(t, []string{"INV-0003"}, list(repository.ApplicationQuery{Status: "已通过"}))
	assert.Empty(t, list(repository.ApplicationQuery{Status: "bogus"}))
	assert.Equal(t, []string{"INV-0005", "INV-0003", "INV-0001"}, list(repository.ApplicationQuery{UsageType: "研发"}))

	from := time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"INV-0004", "INV-0003", "INV-0002"},
		list(repository.ApplicationQuery{PurchaseFrom: &from, PurchaseTo: &to}), "range is inclusive")

	invFrom := time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"INV-0006", "INV-0005"}, list(repository.ApplicationQuery{InvoiceFrom: &invFrom}))

	assert.Equal(t, []string{"INV-0001", "INV-0002", "INV-0003", "INV-0004", "INV-0005", "INV-0006"},
		list(repository.ApplicationQuery{Sort: "invoice_amount", Order: "asc"}))
	// 非白名单字段回退到 created_at desc
	assert.Equal(t, []string{"INV-0006", "INV-0005", "INV-0004", "INV-0003", "INV-0002", "INV-0001"},
		list(repository.ApplicationQuery{Sort: "id; DROP TABLE applications", Order: "sideways"}))
}
