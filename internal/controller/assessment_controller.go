package controller

import (
	"journey_backend/internal/dto"
	"journey_backend/internal/service"
	"journey_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	Service *service.AssessmentService
}

func NewAssessmentController(svc *service.AssessmentService) *AssessmentController {
	return &AssessmentController{Service: svc}
}

// @Summary 客户转化时创建评估
// @Tags 评估
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateAssessmentRequest true "评估信息"
// @Success 201 {object} util.Response{data=model.Assessment}
// @Router /api/admin/assessments [post]
func (c *AssessmentController) Create(ctx *gin.Context) {
	var req dto.CreateAssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	a, err := c.Service.Create(req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, a)
}

// @Summary 评估列表
// @Tags 评估
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/admin/assessments [get]
func (c *AssessmentController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	items, total, err := c.Service.List(page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": items, "total": total})
}

// @Summary 评估详情
// @Tags 评估
// @Produce json
// @Security BearerAuth
// @Param id path string true "评估ID"
// @Success 200 {object} util.Response{data=dto.AssessmentView}
// @Router /api/assessments/{id} [get]
func (c *AssessmentController) Get(ctx *gin.Context) {
	view, err := c.Service.Get(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
