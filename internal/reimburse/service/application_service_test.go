package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/session"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/storage"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var appNumberPattern = regexp.MustCompile(`^FB\d{8}[0-9A-F]{6}$`)

func TestGenerateAppNumber(t *testing.T) {
	now := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.Local)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n := GenerateAppNumber(now)
		assert.Regexp(t, appNumberPattern, n)
		assert.Equal(t, "FB20240305", n[:10])
		seen[n] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestSubmitRoundTrip(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	app, err := env.svc.Application.Submit(ctx, validForm("INV-100"), []Upload{
		upload("发票.PDF", "pdf-bytes"),
		upload("", "skipped"),
	})
	require.NoError(t, err)
	assert.Regexp(t, appNumberPattern, app.AppNumber)
	assert.Equal(t, entity.StatusPending, app.Status)

	got, err := env.svc.Application.GetByAppNumber(ctx, app.AppNumber)
	require.NoError(t, err)
	assert.Equal(t, "张三", got.Purchaser)
	assert.Equal(t, "显示器 27 寸，用于开发", got.PurchaseDetails)
	assert.Equal(t, "显示器", got.ItemName)
	assert.Equal(t, "https://example.com/item/1", got.ProductLink)
	assert.Equal(t, "研发", got.UsageType)
	assert.Equal(t, "办公设备", got.ItemType)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, "2024-03-01", time.Time(got.PurchaseTime).Format("2006-01-02"))
	assert.Equal(t, "INV-100", got.InvoiceNumber)
	assert.Equal(t, "1999.5", got.InvoiceAmount.String())
	assert.Equal(t, "2024-03-02", time.Time(got.InvoiceDate).Format("2006-01-02"))
	assert.Equal(t, entity.StatusPending, got.Status)

	require.Len(t, got.Attachments, 1)
	att := got.Attachments[0]
	assert.Equal(t, "发票.PDF", att.OriginalFilename)
	assert.Equal(t, "INV-100.pdf", att.StoredFilename)
	assert.Equal(t, "pdf-bytes", readStored(t, env.store, att.StoredFilename))

	byInvoice, err := env.svc.Application.GetByInvoiceNumber(ctx, "INV-100")
	require.NoError(t, err)
	assert.Equal(t, app.AppNumber, byInvoice.AppNumber)
}

func TestSubmitValidation(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	cases := map[string]func(f *ApplicationForm){
		"purchaser":      func(f *ApplicationForm) { f.Purchaser = "  " },
		"item_name":      func(f *ApplicationForm) { f.ItemName = "" },
		"quantity":       func(f *ApplicationForm) { f.Quantity = "0" },
		"invoice_amount": func(f *ApplicationForm) { f.InvoiceAmount = "-1" },
		"purchase_time":  func(f *ApplicationForm) { f.PurchaseTime = "2024/03/01" },
		"invoice_date":   func(f *ApplicationForm) { f.InvoiceDate = "" },
		"invoice_number": func(f *ApplicationForm) { f.InvoiceNumber = "" },
	}
	for field, mutate := range cases {
		form := validForm("INV-V")
		mutate(&form)
		_, err := env.svc.Application.Submit(ctx, form, nil)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, field)
		assert.Equal(t, field, verr.Field)
	}

	var count int64
	env.db.Model(&entity.Application{}).Count(&count)
	assert.Zero(t, count)
}

func TestSubmitDuplicateInvoiceRejected(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	_, err := env.svc.Application.Submit(ctx, validForm("INV-DUP"), nil)
	require.NoError(t, err)

	_, err = env.svc.Application.Submit(ctx, validForm("INV-DUP"), []Upload{upload("a.pdf", "x")})
	assert.ErrorIs(t, err, ErrDuplicateInvoice)

	var count int64
	env.db.Model(&entity.Application{}).Where("invoice_number = ?", "INV-DUP").Count(&count)
	assert.Equal(t, int64(1), count)

	exists, err := env.store.Exists(ctx, "INV-DUP.pdf")
	require.NoError(t, err)
	assert.False(t, exists, "rejected submission must not leave files behind")

	taken, err := env.svc.Application.InvoiceExists(ctx, "INV-DUP")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestEditRespectsStatus(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	app, err := env.svc.Application.Submit(ctx, validForm("INV-E1"), nil)
	require.NoError(t, err)

	// pending -> 可修改
	form := validForm("INV-E1")
	form.ItemName = "显示器支架"
	edited, err := env.svc.Application.Edit(ctx, app.AppNumber, form, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "显示器支架", edited.ItemName)
	assert.True(t, edited.UpdatedAt.After(app.UpdatedAt))

	// rejected -> 可修改
	_, err = env.svc.Application.Approve(ctx, app.AppNumber, "rejected", "缺少发票")
	require.NoError(t, err)
	before, err := env.svc.Application.GetByAppNumber(ctx, app.AppNumber)
	require.NoError(t, err)
	form.Quantity = "3"
	edited, err = env.svc.Application.Edit(ctx, app.AppNumber, form, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, edited.Quantity)
	assert.Equal(t, entity.StatusRejected, edited.Status, "edit does not change status")
	assert.True(t, edited.UpdatedAt.After(before.UpdatedAt))

	// approved -> 拒绝修改
	_, err = env.svc.Application.Approve(ctx, app.AppNumber, "approved", "")
	require.NoError(t, err)
	form.Quantity = "9"
	_, err = env.svc.Application.Edit(ctx, app.AppNumber, form, nil, nil)
	assert.ErrorIs(t, err, ErrNotEditable)

	got, err := env.svc.Application.GetByAppNumber(ctx, app.AppNumber)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)
}

func TestEditUpdatedAtIncreasesWithFrozenClock(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	app, err := env.svc.Application.Submit(ctx, validForm("INV-E2"), nil)
	require.NoError(t, err)

	frozen := app.UpdatedAt
	env.svc.WithClock(func() time.Time { return frozen })

	edited, err := env.svc.Application.Edit(ctx, app.AppNumber, validForm("INV-E2"), nil, nil)
	require.NoError(t, err)
	assert.True(t, edited.UpdatedAt.After(frozen))
}

func TestEditAttachmentsAndInvoiceConflict(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	other, err := env.svc.Application.Submit(ctx, validForm("INV-OTHER"), []Upload{upload("o.pdf", "other")})
	require.NoError(t, err)
	app, err := env.svc.Application.Submit(ctx, validForm("INV-E3"), []Upload{
		upload("a.pdf", "a"),
		upload("b.jpg", "b"),
	})
	require.NoError(t, err)
	require.Len(t, app.Attachments, 2)

	// 改成他人的发票号码
	_, err = env.svc.Application.Edit(ctx, app.AppNumber, validForm("INV-OTHER"), nil, nil)
	assert.ErrorIs(t, err, ErrDuplicateInvoice)

	removeID := app.Attachments[0].ID
	foreignID := other.Attachments[0].ID
	edited, err := env.svc.Application.Edit(ctx, app.AppNumber, validForm("INV-E3"),
		[]Upload{upload("c.png", "c")}, []uint{removeID, foreignID})
	require.NoError(t, err)

	names := []string{}
	for _, att := range edited.Attachments {
		names = append(names, att.StoredFilename)
	}
	assert.ElementsMatch(t, []string{"INV-E3.jpg", "INV-E3.png"}, names)

	exists, err := env.store.Exists(ctx, "INV-E3.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	// 其他申请的附件不受影响
	otherAfter, err := env.svc.Application.GetByAppNumber(ctx, other.AppNumber)
	require.NoError(t, err)
	assert.Len(t, otherAfter.Attachments, 1)
	assert.Equal(t, "other", readStored(t, env.store, "INV-OTHER.pdf"))
}

func TestEditUnknownApplication(t *testing.T) {
	env := setupServices(t)
	_, err := env.svc.Application.Edit(context.Background(), "FB00000000XXXXXX", validForm("INV-X"), nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApproveValidatesStatus(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	app, err := env.svc.Application.Submit(ctx, validForm("INV-A1"), nil)
	require.NoError(t, err)

	_, err = env.svc.Application.Approve(ctx, app.AppNumber, "done", "")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	approved, err := env.svc.Application.Approve(ctx, app.AppNumber, "已通过", "同意")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, approved.Status)

	// 审批路径允许任意切换
	back, err := env.svc.Application.Approve(ctx, app.AppNumber, "pending", "重新审核")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, back.Status)

	got, err := env.svc.Application.GetByAppNumber(ctx, app.AppNumber)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, got.Status)
	assert.Equal(t, "重新审核", got.ApprovalComment)
	assert.True(t, got.UpdatedAt.After(app.UpdatedAt))

	_, err = env.svc.Application.Approve(ctx, "FB00000000XXXXXX", "approved", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesAttachments(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	app, err := env.svc.Application.Submit(ctx, validForm("INV-D1"), []Upload{
		upload("a.pdf", "a"),
		upload("b.pdf", "b"),
	})
	require.NoError(t, err)
	require.Len(t, app.Attachments, 2)

	// 一个文件已提前丢失，删除仍应成功
	require.NoError(t, env.store.Delete(ctx, app.Attachments[1].StoredFilename))

	require.NoError(t, env.svc.Application.Delete(ctx, app.AppNumber))

	_, err = env.svc.Application.GetByAppNumber(ctx, app.AppNumber)
	assert.ErrorIs(t, err, ErrNotFound)

	var count int64
	env.db.Model(&entity.Attachment{}).Where("app_number = ?", app.AppNumber).Count(&count)
	assert.Zero(t, count)

	for _, att := range app.Attachments {
		exists, err := env.store.Exists(ctx, att.StoredFilename)
		require.NoError(t, err)
		assert.False(t, exists, att.StoredFilename)
	}

	assert.ErrorIs(t, env.svc.Application.Delete(ctx, app.AppNumber), ErrNotFound)
}

func TestDeleteLeavesOtherApplications(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	keep := testutil.SeedApplication(t, env.db, "FB20240101KEEP01", "INV-KEEP", nil)
	app, err := env.svc.Application.Submit(ctx, validForm("INV-D2"), nil)
	require.NoError(t, err)

	require.NoError(t, env.svc.Application.Delete(ctx, app.AppNumber))
	_, err = env.svc.Application.GetByAppNumber(ctx, keep.AppNumber)
	assert.NoError(t, err)
}

func TestSubmitAmountLimit(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	form := validForm("INV-MAX")
	form.InvoiceAmount = "10000000000"
	_, err := env.svc.Application.Submit(ctx, form, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "invoice_amount", verr.Field)

	form.InvoiceAmount = "9999999999.99"
	app, err := env.svc.Application.Submit(ctx, form, nil)
	require.NoError(t, err)
	assert.Equal(t, "9999999999.99", app.InvoiceAmount.StringFixed(2))
}

// deleteHookStore 在删除文件时回调
type deleteHookStore struct {
	storage.Store
	onDelete func(name string)
}

func (s *deleteHookStore) Delete(ctx context.Context, name string) error {
	s.onDelete(name)
	return s.Store.Delete(ctx, name)
}

func TestDeleteRemovesFilesAfterRows(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	var rowsAtDelete []int64
	store := &deleteHookStore{Store: env.store, onDelete: func(name string) {
		var count int64
		env.db.Model(&entity.Attachment{}).Where("stored_filename = ?", name).Count(&count)
		rowsAtDelete = append(rowsAtDelete, count)
	}}
	sessions := session.NewManager("test-secret", time.Hour, session.NewMemoryStore())
	svc := NewServices(env.repos, store, sessions, zap.NewNop())

	app, err := svc.Application.Submit(ctx, validForm("INV-D3"), []Upload{upload("a.pdf", "a"), upload("b.pdf", "b")})
	require.NoError(t, err)

	require.NoError(t, svc.Application.Delete(ctx, app.AppNumber))
	assert.Equal(t, []int64{0, 0}, rowsAtDelete)
}
