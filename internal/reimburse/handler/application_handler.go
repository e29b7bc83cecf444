package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ApplicationHandler 申请人侧处理器：提交、查询、修改
type ApplicationHandler struct {
	svc         *service.ApplicationService
	maxUploadMB int64
	logger      *zap.Logger
}

// NewApplicationHandler 创建申请处理器
func NewApplicationHandler(svc *service.ApplicationService, maxUploadMB int64, logger *zap.Logger) *ApplicationHandler {
	return &ApplicationHandler{svc: svc, maxUploadMB: maxUploadMB, logger: logger}
}

// applicationView 申请详情输出，附带状态中文名
type applicationView struct {
	*entity.Application
	StatusLabel string `json:"status_label"`
}

func newApplicationView(app *entity.Application) applicationView {
	if app.Attachments == nil {
		app.Attachments = []entity.Attachment{}
	}
	return applicationView{Application: app, StatusLabel: app.StatusLabel()}
}

type statusOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func statusOptions() []statusOption {
	out := []statusOption{}
	for _, s := range entity.Statuses() {
		out = append(out, statusOption{Value: string(s), Label: s.Label()})
	}
	return out
}

// Index GET /
func (h *ApplicationHandler) Index(c *gin.Context) {
	Success(c, gin.H{
		"statuses":         statusOptions(),
		"per_page_options": service.PerPageOptions(),
		"max_upload_mb":    h.maxUploadMB,
	})
}

// uploadsFrom 读取 multipart 中的 attachments 文件，非 multipart 请求视为无附件
func uploadsFrom(c *gin.Context) ([]service.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}

	var uploads []service.Upload
	for _, fh := range form.File["attachments"] {
		uploads = append(uploads, fileHeaderUpload(fh))
	}
	return uploads, nil
}

func fileHeaderUpload(fh *multipart.FileHeader) service.Upload {
	return service.Upload{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Submit POST /submit
func (h *ApplicationHandler) Submit(c *gin.Context) {
	uploads, err := uploadsFrom(c)
	if err != nil {
		respondFormError(c, err)
		return
	}

	var form service.ApplicationForm
	if err := c.ShouldBind(&form); err != nil {
		BadRequest(c, "表单格式错误")
		return
	}

	app, err := h.svc.Submit(c.Request.Context(), form, uploads)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Created(c, gin.H{
		"app_number":   app.AppNumber,
		"status":       app.Status,
		"status_label": app.StatusLabel(),
		"attachments":  len(app.Attachments),
	})
}

// respondFormError 请求体超限返回 413，其余视为表单错误
func respondFormError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		Error(c, 41300, "请求内容过大")
		return
	}
	BadRequest(c, "无法解析上传文件")
}

// CheckInvoice GET /check_invoice/:invoice_number
func (h *ApplicationHandler) CheckInvoice(c *gin.Context) {
	exists, err := h.svc.InvoiceExists(c.Request.Context(), strings.TrimSpace(c.Param("invoice_number")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"exists": exists})
}

// invoiceNumberParam 发票号码可来自路径、表单或查询参数
func invoiceNumberParam(c *gin.Context) string {
	if v := c.Param("invoice_number"); v != "" {
		return strings.TrimSpace(v)
	}
	if v := c.PostForm("invoice_number"); v != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(c.Query("invoice_number"))
}

// QueryStatus GET|POST /query_status
func (h *ApplicationHandler) QueryStatus(c *gin.Context) {
	invoiceNumber := invoiceNumberParam(c)
	if invoiceNumber == "" {
		BadRequest(c, "请输入发票号码")
		return
	}
	app, err := h.svc.GetByInvoiceNumber(c.Request.Context(), invoiceNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, newApplicationView(app))
}

// EditLookup GET|POST /edit_application, GET /edit_application/:invoice_number
func (h *ApplicationHandler) EditLookup(c *gin.Context) {
	invoiceNumber := invoiceNumberParam(c)
	if invoiceNumber == "" {
		BadRequest(c, "请输入发票号码")
		return
	}
	app, err := h.svc.GetByInvoiceNumber(c.Request.Context(), invoiceNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !app.Status.Editable() {
		respondError(c, h.logger, service.ErrNotEditable)
		return
	}
	Success(c, newApplicationView(app))
}

// Update POST /update
func (h *ApplicationHandler) Update(c *gin.Context) {
	uploads, err := uploadsFrom(c)
	if err != nil {
		respondFormError(c, err)
		return
	}

	var form service.ApplicationForm
	if err := c.ShouldBind(&form); err != nil {
		BadRequest(c, "表单格式错误")
		return
	}

	appNumber := strings.TrimSpace(c.PostForm("app_number"))
	if appNumber == "" {
		BadRequest(c, "缺少申请编号")
		return
	}

	var deleteIDs []uint
	for _, raw := range c.PostFormArray("delete_attachments") {
		if id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64); err == nil {
			deleteIDs = append(deleteIDs, uint(id))
		}
	}

	app, err := h.svc.Edit(c.Request.Context(), appNumber, form, uploads, deleteIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, newApplicationView(app))
}

// Result GET /success/:app_number
func (h *ApplicationHandler) Result(c *gin.Context) {
	app, err := h.svc.GetByAppNumber(c.Request.Context(), c.Param("app_number"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	Success(c, gin.H{
		"app_number":   app.AppNumber,
		"status":       app.Status,
		"status_label": app.StatusLabel(),
	})
}
