package controller

import (
	"errors"
	"io"
	"journey_backend/internal/dto"
	"journey_backend/internal/service"
	"journey_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GenerationController struct {
	Service   *service.GenerationService
	Approvals *service.ApprovalService
}

func NewGenerationController(svc *service.GenerationService, approvals *service.ApprovalService) *GenerationController {
	return &GenerationController{Service: svc, Approvals: approvals}
}

// @Summary 触发或重试需求生成
// @Description 立即返回任务状态，不等待生成完成；force 用于重新派发仍在运行的任务
// @Tags 需求生成
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "评估ID"
// @Param body body dto.TriggerRequest false "触发参数"
// @Success 202 {object} util.Response{data=model.GenerationJob}
// @Router /api/assessments/{id}/generation [post]
func (c *GenerationController) Trigger(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req dto.TriggerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		util.BadRequest(ctx, err.Error())
		return
	}

	job, err := c.Service.Trigger(ctx.Request.Context(), ctx.Param("id"), user.Identity(), req.Force)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Accepted(ctx, job)
}

// @Summary 查询生成任务状态
// @Tags 需求生成
// @Produce json
// @Security BearerAuth
// @Param id path string true "评估ID"
// @Success 200 {object} util.Response{data=dto.JobStatus}
// @Router /api/assessments/{id}/generation [get]
func (c *GenerationController) Status(ctx *gin.Context) {
	st, err := c.Service.Status(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, st)
}

// @Summary 审批生成的问卷
// @Tags 需求生成
// @Produce json
// @Security BearerAuth
// @Param id path string true "评估ID"
// @Success 200 {object} util.Response{data=model.ApprovalRecord}
// @Router /api/admin/assessments/{id}/approve [post]
func (c *GenerationController) Approve(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	rec, err := c.Approvals.Approve(ctx.Request.Context(), ctx.Param("id"), user.Identity())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, rec)
}

// @Summary 执行者回调：生成完成
// @Tags 执行者回调
// @Accept json
// @Produce json
// @Param X-Runner-Token header string true "执行者令牌"
// @Param id path string true "评估ID"
// @Param body body dto.CompleteRequest true "生成结果"
// @Success 200 {object} util.Response{data=model.GenerationJob}
// @Router /internal/generation/{id}/complete [post]
func (c *GenerationController) Complete(ctx *gin.Context) {
	var req dto.CompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	job, err := c.Service.Complete(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, job)
}

// @Summary 执行者回调：生成失败
// @Tags 执行者回调
// @Accept json
// @Produce json
// @Param X-Runner-Token header string true "执行者令牌"
// @Param id path string true "评估ID"
// @Param body body dto.FailRequest true "失败原因"
// @Success 200 {object} util.Response{data=model.GenerationJob}
// @Router /internal/generation/{id}/fail [post]
func (c *GenerationController) Fail(ctx *gin.Context) {
	var req dto.FailRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	job, err := c.Service.Fail(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, job)
}
