package handler

import (
	"net/http"

	"github.com/bitfantasy/nimo-reimburse/internal/config"
	"github.com/bitfantasy/nimo-reimburse/internal/middleware"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// LoginPath 未登录时的跳转地址
const LoginPath = "/admin/login"

// RegisterRoutes 注册会话中间件与全部业务路由
func RegisterRoutes(r *gin.Engine, h *Handlers, cfg *config.Config) {
	r.Use(middleware.BodyLimit(cfg.Server.MaxUploadMB << 20))
	r.Use(middleware.LoadSession(h.Admin.auth, cfg.Session.CookieName))

	op := func(name string) gin.HandlerFunc {
		return middleware.Operation(h.logger, name)
	}
	requireAdmin := middleware.RequireAdmin(LoginPath)

	// 申请人
	r.GET("/", op("访问申请表单页面"), h.Application.Index)
	r.POST("/submit", op("提交报销申请"), h.Application.Submit)
	r.GET("/check_invoice/:invoice_number", op("检查发票号码"), h.Application.CheckInvoice)
	r.GET("/query_status", op("查询申请状态"), h.Application.QueryStatus)
	r.POST("/query_status", op("查询申请状态"), h.Application.QueryStatus)
	r.GET("/edit_application", op("打开修改申请"), h.Application.EditLookup)
	r.POST("/edit_application", op("打开修改申请"), h.Application.EditLookup)
	r.GET("/edit_application/:invoice_number", op("打开修改申请"), h.Application.EditLookup)
	r.POST("/update", op("修改报销申请"), h.Application.Update)
	r.GET("/success/:app_number", op("查看申请结果"), h.Application.Result)
	r.GET("/download/:filename", op("下载附件"), h.Attachment.Download)

	// 管理员
	admin := r.Group("/admin")
	{
		admin.GET("/login", op("访问管理员登录页面"), h.Admin.LoginPage)
		admin.POST("/auth", op("管理员登录验证"), h.Admin.Auth)
		admin.GET("/logout", op("管理员退出"), h.Admin.Logout)

		admin.GET("/dashboard", op("访问管理后台"), requireAdmin, h.Admin.Dashboard)
		admin.GET("/application/:app_number", op("查看申请详情"), requireAdmin, h.Admin.Detail)
		admin.POST("/approve/:app_number", op("审批申请"), requireAdmin, h.Admin.Approve)
		admin.GET("/export", op("导出Excel数据"), requireAdmin, h.Admin.Export)
		admin.POST("/delete/:app_number", op("删除申请"), requireAdmin, h.Admin.Delete)
	}
}

// VersionInfo 构建信息
type VersionInfo struct {
	Version   string
	BuildTime string
}

// RegisterSystemRoutes 健康检查与版本信息
func RegisterSystemRoutes(r *gin.Engine, db *gorm.DB, info VersionInfo) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    info.Version,
			"build_time": info.BuildTime,
		})
	})
}
