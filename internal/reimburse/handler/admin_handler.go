package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/config"
	"github.com/bitfantasy/nimo-reimburse/internal/middleware"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/repository"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler 管理后台处理器
type AdminHandler struct {
	apps    *service.ApplicationService
	query   *service.QueryService
	export  *service.ExportService
	auth    *service.AuthService
	session config.SessionConfig
	logger  *zap.Logger
}

// NewAdminHandler 创建管理后台处理器
func NewAdminHandler(svc *service.Services, session config.SessionConfig, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		apps:    svc.Application,
		query:   svc.Query,
		export:  svc.Export,
		auth:    svc.Auth,
		session: session,
		logger:  logger,
	}
}

func (h *AdminHandler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.session.CookieName, token, maxAge, "/", "", h.session.Secure, true)
}

// LoginPage GET /admin/login
func (h *AdminHandler) LoginPage(c *gin.Context) {
	s := middleware.CurrentSession(c)
	Success(c, gin.H{
		"logged_in": s.Authenticated,
		"username":  s.Username,
	})
}

// Auth POST /admin/auth
func (h *AdminHandler) Auth(c *gin.Context) {
	result, err := h.auth.Login(c.Request.Context(), c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.setSessionCookie(c, result.Token, int(time.Until(result.Session.ExpiresAt).Seconds()))
	Success(c, gin.H{
		"username":   result.Session.Username,
		"expires_at": result.Session.ExpiresAt,
	})
}

// Logout GET /admin/logout
func (h *AdminHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.CurrentSession(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.setSessionCookie(c, "", -1)
	Success(c, gin.H{"logged_in": false})
}

// parseApplicationQuery 解析列表与导出共用的筛选参数
func parseApplicationQuery(c *gin.Context) (repository.ApplicationQuery, error) {
	q := repository.ApplicationQuery{
		Purchaser: c.Query("purchaser"),
		Status:    c.Query("status"),
		UsageType: c.Query("usage"),
		Sort:      c.Query("sort"),
		Order:     c.Query("order"),
	}

	dates := []struct {
		param string
		dst   **time.Time
	}{
		{"purchase_date_start", &q.PurchaseFrom},
		{"purchase_date_end", &q.PurchaseTo},
		{"invoice_date_start", &q.InvoiceFrom},
		{"invoice_date_end", &q.InvoiceTo},
	}
	for _, d := range dates {
		t, err := service.ParseDate(c.Query(d.param))
		if err != nil {
			return q, &service.ValidationError{Field: d.param, Message: "日期格式应为 YYYY-MM-DD"}
		}
		*d.dst = t
	}
	return q.Normalize(), nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// Dashboard GET /admin/dashboard
func (h *AdminHandler) Dashboard(c *gin.Context) {
	q, err := parseApplicationQuery(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	page, err := h.query.List(c.Request.Context(), q, GetPagination(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	items := make([]applicationView, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, newApplicationView(&page.Items[i]))
	}

	Success(c, gin.H{
		"items":       items,
		"total_count": page.TotalCount,
		"total_pages": page.TotalPages,
		"page":        page.Page,
		"per_page":    page.PerPage,
		"has_prev":    page.HasPrev,
		"has_next":    page.HasNext,
		"filters": gin.H{
			"purchaser":           q.Purchaser,
			"status":              q.Status,
			"usage":               q.UsageType,
			"purchase_date_start": formatDate(q.PurchaseFrom),
			"purchase_date_end":   formatDate(q.PurchaseTo),
			"invoice_date_start":  formatDate(q.InvoiceFrom),
			"invoice_date_end":    formatDate(q.InvoiceTo),
		},
		"sort":             q.Sort,
		"order":            q.Order,
		"statuses":         statusOptions(),
		"per_page_options": service.PerPageOptions(),
	})
}

// Detail GET /admin/application/:app_number
func (h *AdminHandler) Detail(c *gin.Context) {
	app, err := h.apps.GetByAppNumber(c.Request.Context(), c.Param("app_number"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, newApplicationView(app))
}

// Approve POST /admin/approve/:app_number
func (h *AdminHandler) Approve(c *gin.Context) {
	app, err := h.apps.Approve(c.Request.Context(), c.Param("app_number"),
		c.PostForm("status"), strings.TrimSpace(c.PostForm("comment")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, newApplicationView(app))
}

// Export GET /admin/export
func (h *AdminHandler) Export(c *gin.Context) {
	q, err := parseApplicationQuery(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.export.Export(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer result.File.Close()

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", contentDisposition("attachment", result.Filename))
	c.Header("Content-Transfer-Encoding", "binary")

	if err := result.File.Write(c.Writer); err != nil {
		h.logger.Error("write excel failed", zap.Error(err))
		c.Error(err)
	}
}

// Delete POST /admin/delete/:app_number
func (h *AdminHandler) Delete(c *gin.Context) {
	appNumber := c.Param("app_number")
	if err := h.apps.Delete(c.Request.Context(), appNumber); err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"deleted": true, "app_number": appNumber})
}

// contentDisposition 带 RFC 5987 UTF-8 文件名与 ASCII 回退名
func contentDisposition(kind, filename string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, filename)
	encoded := strings.ReplaceAll(url.QueryEscape(filename), "+", "%20")
	return kind + `; filename="` + fallback + `"; filename*=UTF-8''` + encoded
}
