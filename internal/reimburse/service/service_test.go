package service

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/repository"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/session"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/storage"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db    *gorm.DB
	store *storage.LocalStore
	repos *repository.Repositories
	svc   *Services
	clock *stepClock
}

// stepClock advances one second on every call
type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	repos := repository.NewRepositories(db)
	clock := &stepClock{t: time.Date(2024, time.May, 20, 8, 0, 0, 0, time.UTC)}
	sessions := session.NewManager("test-secret", time.Hour, session.NewMemoryStore())
	svc := NewServices(repos, store, sessions, zap.NewNop()).WithClock(clock.Now)

	return &testEnv{db: db, store: store, repos: repos, svc: svc, clock: clock}
}

func formFromValues(v url.Values) ApplicationForm {
	return ApplicationForm{
		Purchaser:       v.Get("purchaser"),
		PurchaseDetails: v.Get("purchase_details"),
		ItemName:        v.Get("item_name"),
		ProductLink:     v.Get("product_link"),
		UsageType:       v.Get("usage_type"),
		ItemType:        v.Get("item_type"),
		Quantity:        v.Get("quantity"),
		PurchaseTime:    v.Get("purchase_time"),
		InvoiceNumber:   v.Get("invoice_number"),
		InvoiceAmount:   v.Get("invoice_amount"),
		InvoiceDate:     v.Get("invoice_date"),
	}
}

func validForm(invoiceNumber string) ApplicationForm {
	return formFromValues(testutil.ApplicationForm(invoiceNumber))
}

func upload(name, content string) Upload {
	return Upload{
		Filename:    name,
		Size:        int64(len(content)),
		ContentType: "application/octet-stream",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func readStored(t *testing.T, store storage.Store, name string) string {
	t.Helper()
	rc, err := store.Open(context.Background(), name)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}
