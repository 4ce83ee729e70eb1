package controller

import (
	"journey_backend/internal/model"
	"journey_backend/internal/service"
	"journey_backend/internal/util"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type DocumentController struct {
	Service *service.DocumentService
}

func NewDocumentController(svc *service.DocumentService) *DocumentController {
	return &DocumentController{Service: svc}
}

// @Summary 上传文档
// @Description slot_key 为文档需求ID或 other；单个文件不超过上限，类型限 PDF/DOCX/XLSX/PPTX/CSV/PNG/JPG
// @Tags 文档
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "评估ID"
// @Param slot_key formData string true "上传位"
// @Param file formData file true "文件"
// @Success 201 {object} util.Response{data=model.UploadedDocument}
// @Router /api/assessments/{id}/uploads [post]
func (c *DocumentController) Upload(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	// 给 multipart 头部留出余量
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.Service.MaxUploadBytes()+1<<20)

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	defer file.Close()

	doc, err := c.Service.Upload(ctx.Request.Context(), ctx.Param("id"), user.Identity(), user.Role, service.UploadInput{
		SlotKey:     ctx.PostForm("slot_key"),
		Filename:    fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, doc)
}

// @Summary 按上传位列出文档
// @Tags 文档
// @Produce json
// @Security BearerAuth
// @Param id path string true "评估ID"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id}/uploads [get]
func (c *DocumentController) List(ctx *gin.Context) {
	slots, err := c.Service.List(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, slots)
}

// scoped 客户只能操作自己评估下的文档
func (c *DocumentController) scoped(ctx *gin.Context) (*util.Claims, *model.UploadedDocument, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return nil, nil, false
	}
	doc, err := c.Service.Find(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return nil, nil, false
	}
	if !user.Role.Privileged() && user.AssessmentID != doc.AssessmentID {
		util.Forbidden(ctx)
		return nil, nil, false
	}
	return user, doc, true
}

// @Summary 删除文档
// @Description 只能删除本角色上传的文档，且受问卷只读规则约束
// @Tags 文档
// @Produce json
// @Security BearerAuth
// @Param id path string true "文档ID"
// @Success 200 {object} util.Response
// @Router /api/uploads/{id} [delete]
func (c *DocumentController) Remove(ctx *gin.Context) {
	user, doc, ok := c.scoped(ctx)
	if !ok {
		return
	}
	if err := c.Service.Remove(ctx.Request.Context(), doc.ID, user.Role); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{})
}

// @Summary 下载文档
// @Tags 文档
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "文档ID"
// @Success 200 {file} file
// @Router /api/uploads/{id}/download [get]
func (c *DocumentController) Download(ctx *gin.Context) {
	_, doc, ok := c.scoped(ctx)
	if !ok {
		return
	}
	_, rc, err := c.Service.Open(ctx.Request.Context(), doc.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	defer rc.Close()

	ctx.Header("Content-Disposition", "attachment; filename="+strconv.Quote(doc.Filename))
	ctx.DataFromReader(http.StatusOK, doc.SizeBytes, doc.MimeType, rc, nil)
}
