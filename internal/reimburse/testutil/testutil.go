package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/config"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"github.com/bitfantasy/nimo-reimburse/internal/shared/database"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a fresh sqlite database under t.TempDir() and migrates it.
// Each test gets its own file, removed with the temp dir.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "reimburse_test.db"),
		MaxOpenConns: 4,
	}, logger.Silent)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		database.Close(db)
	})
	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// DoRequest executes an HTTP request against the test router. body is sent as JSON.
func DoRequest(r http.Handler, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	return serve(r, req, cookies)
}

// DoForm posts url-encoded form values
func DoForm(r http.Handler, method, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serve(r, req, cookies)
}

// File 一个 multipart 上传文件
type File struct {
	Field    string
	Filename string
	Content  string
}

// DoMultipart posts a multipart form with fields and files
func DoMultipart(t *testing.T, r http.Handler, path string, fields url.Values, files []File, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, values := range fields {
		for _, v := range values {
			writer.WriteField(key, v)
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		io.Copy(part, strings.NewReader(f.Content))
	}
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return serve(r, req, cookies)
}

func serve(r http.Handler, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// ResponseData returns the "data" object of the response envelope
func ResponseData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	data, ok := ParseResponse(w)["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no data object: %s", w.Body.String())
	}
	return data
}

// Cookie finds a Set-Cookie by name in the response
func Cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ApplicationForm returns a complete, valid submission form
func ApplicationForm(invoiceNumber string) url.Values {
	return url.Values{
		"purchaser":        {"张三"},
		"purchase_details": {"显示器 27 寸，用于开发"},
		"item_name":        {"显示器"},
		"product_link":     {"https://example.com/item/1"},
		"usage_type":       {"研发"},
		"item_type":        {"办公设备"},
		"quantity":         {"2"},
		"purchase_time":    {"2024-03-01"},
		"invoice_number":   {invoiceNumber},
		"invoice_amount":   {"1999.50"},
		"invoice_date":     {"2024-03-02"},
	}
}

// Date 构造 UTC 日期
func Date(year int, month time.Month, day int) datatypes.Date {
	return datatypes.Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// SeedApplication inserts an application row directly. mutate may adjust fields
// before insert.
func SeedApplication(t *testing.T, db *gorm.DB, appNumber, invoiceNumber string, mutate func(*entity.Application)) *entity.Application {
	t.Helper()
	now := time.Now()
	app := &entity.Application{
		AppNumber:     appNumber,
		Purchaser:     "张三",
		ItemName:      "键盘",
		UsageType:     "研发",
		ItemType:      "办公设备",
		Quantity:      1,
		PurchaseTime:  Date(2024, time.March, 1),
		InvoiceNumber: invoiceNumber,
		InvoiceAmount: decimal.RequireFromString("100.00"),
		InvoiceDate:   Date(2024, time.March, 2),
		Status:        entity.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if mutate != nil {
		mutate(app)
	}
	if err := db.Create(app).Error; err != nil {
		t.Fatalf("Failed to seed application: %v", err)
	}
	return app
}

// SeedApplications inserts n applications FB-SEED-0001.. with invoices INV-0001..
// created one minute apart, oldest first.
func SeedApplications(t *testing.T, db *gorm.DB, n int, mutate func(i int, app *entity.Application)) []*entity.Application {
	t.Helper()
	base := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	apps := make([]*entity.Application, 0, n)
	for i := 1; i <= n; i++ {
		idx := i
		app := SeedApplication(t, db, fmt.Sprintf("FB-SEED-%04d", idx), fmt.Sprintf("INV-%04d", idx), func(a *entity.Application) {
			a.CreatedAt = base.Add(time.Duration(idx) * time.Minute)
			a.UpdatedAt = a.CreatedAt
			if mutate != nil {
				mutate(idx, a)
			}
		})
		apps = append(apps, app)
	}
	return apps
}
