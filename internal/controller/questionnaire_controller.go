package controller

import (
	"journey_backend/internal/dto"
	"journey_backend/internal/service"
	"journey_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionnaireController struct {
	Service *service.QuestionnaireService
	Journey *service.JourneyService
}

func NewQuestionnaireController(svc *service.QuestionnaireService, journey *service.JourneyService) *QuestionnaireController {
	return &QuestionnaireController{Service: svc, Journey: journey}
}

// @Summary 获取问卷
// @Description 按维度分组的问题（含已有答案）、文档需求与必答进度；生成完成前为空
// @Tags 问卷
// @Produce json
// @Security BearerAuth
// @Param id path string true "评估ID"
// @Success 200 {object} util.Response{data=dto.QuestionnaireView}
// @Router /api/assessments/{id}/questionnaire [get]
func (c *QuestionnaireController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.Service.Get(ctx.Param("id"), user.Role)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 保存单题答案
// @Tags 问卷
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "评估ID"
// @Param body body dto.SaveAnswerRequest true "答案"
// @Success 200 {object} util.Response{data=dto.SaveAnswerResponse}
// @Router /api/assessments/{id}/answers [post]
func (c *QuestionnaireController) SaveAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req dto.SaveAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.Service.SaveAnswer(ctx.Request.Context(), ctx.Param("id"), user.Identity(), user.Role, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 提交问卷
// @Description 仅客户可提交；所有必答题需已作答，提交后客户侧只读
// @Tags 问卷
// @Produce json
// @Security BearerAuth
// @Param id path string true "评估ID"
// @Success 200 {object} util.Response{data=model.Assessment}
// @Router /api/assessments/{id}/submit [post]
func (c *QuestionnaireController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	a, err := c.Service.Submit(ctx.Request.Context(), ctx.Param("id"), user.Identity(), user.Role)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// @Summary 客户旅程
// @Tags 问卷
// @Produce json
// @Security BearerAuth
// @Param id path string true "评估ID"
// @Success 200 {object} util.Response{data=dto.JourneyView}
// @Router /api/assessments/{id}/journey [get]
func (c *QuestionnaireController) GetJourney(ctx *gin.Context) {
	view, err := c.Journey.Get(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
