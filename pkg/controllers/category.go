package controllers

import (
	"io"
	"net/http"
	"time"

	"khoomi-api-io/catalog/internal/helpers"
	"khoomi-api-io/catalog/internal/middleware"
	"khoomi-api-io/catalog/pkg/errs"
	"khoomi-api-io/catalog/pkg/models"
	"khoomi-api-io/catalog/pkg/services"
	"khoomi-api-io/catalog/pkg/util"

	"github.com/gin-gonic/gin"
)

type CategoryController struct {
	categoryService *services.CategoryService
	timeout         time.Duration
}

func InitCategoryController(categoryService *services.CategoryService, timeout time.Duration) *CategoryController {
	return &CategoryController{
		categoryService: categoryService,
		timeout:         timeout,
	}
}

func (cc *CategoryController) CreateCategory(c *gin.Context) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.HandleAppError(c, errs.Wrap(err, errs.Validation, "invalid request body"))
		return
	}

	category, err := cc.categoryService.CreateCategory(ctx, middleware.ActorFromContext(c), req)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	util.HandleSuccess(c, http.StatusCreated, "Category created", category)
}

func (cc *CategoryController) UpdateCategory(c *gin.Context) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	id, err := helpers.ObjectIDParam(c, "id")
	if err != nil {
		util.HandleAppError(c, err)
		return
	}
	var req models.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.HandleAppError(c, errs.Wrap(err, errs.Validation, "invalid request body"))
		return
	}

	category, err := cc.categoryService.UpdateCategory(ctx, middleware.ActorFromContext(c), id, req)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	util.HandleSuccess(c, http.StatusOK, "Category updated", category)
}

func (cc *CategoryController) MoveCategory(c *gin.Context) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	id, err := helpers.ObjectIDParam(c, "id")
	if err != nil {
		util.HandleAppError(c, err)
		return
	}
	var req models.MoveCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.HandleAppError(c, errs.Wrap(err, errs.Validation, "invalid request body"))
		return
	}

	category, err := cc.categoryService.MoveCategory(ctx, middleware.ActorFromContext(c), id, req)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	util.HandleSuccess(c, http.StatusOK, "Category moved", category)
}

func (cc *CategoryController) DeleteCategory(c *gin.Context) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	id, err := helpers.ObjectIDParam(c, "id")
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	result, err := cc.categoryService.DeleteCategory(ctx, middleware.ActorFromContext(c), id)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	util.HandleSuccess(c, http.StatusOK, "Category deleted", result)
}

func (cc *CategoryController) UploadCategoryImage(c *gin.Context) {
	cc.uploadImage(c, "image")
}

func (cc *CategoryController) UploadCategoryBanner(c *gin.Context) {
	cc.uploadImage(c, "banner")
}

func (cc *CategoryController) uploadImage(c *gin.Context, field string) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	id, err := helpers.ObjectIDParam(c, "id")
	if err != nil {
		util.HandleAppError(c, err)
		return
	}
	file, err := helpers.FormImage(c, field)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	var image, banner io.Reader
	if field == "banner" {
		banner = file
	} else {
		image = file
	}
	category, err := cc.categoryService.SetCategoryImages(ctx, middleware.ActorFromContext(c), id, image, banner)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	util.HandleSuccess(c, http.StatusOK, "Category "+field+" updated", category)
}

func (cc *CategoryController) RepairCategories(c *gin.Context) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	report, err := cc.categoryService.Repair(ctx, middleware.ActorFromContext(c))
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	util.HandleSuccess(c, http.StatusOK, "Category repair completed", report)
}

func (cc *CategoryController) GetAllCategories(c *gin.Context) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	tree, err := cc.categoryService.ListCategories(ctx)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	if c.Query("flat") == "true" {
		flat := flatNodes(tree)
		util.HandleSuccessMeta(c, http.StatusOK, "Categories retrieved successfully", flat, gin.H{"count": len(flat)})
		return
	}
	util.HandleSuccess(c, http.StatusOK, "Categories retrieved successfully", tree)
}

// flatNodes lists the tree parents first, each node without its nested children.
func flatNodes(tree []*models.TreeNode) []models.TreeNode {
	nodes := services.FlattenTree(tree)
	flat := make([]models.TreeNode, 0, len(nodes))
	for _, node := range nodes {
		n := *node
		n.Children = []*models.TreeNode{}
		flat = append(flat, n)
	}
	return flat
}

func (cc *CategoryController) GetCategory(c *gin.Context) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	id, err := helpers.ObjectIDParam(c, "id")
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	category, err := cc.categoryService.GetCategory(ctx, id)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	util.HandleSuccess(c, http.StatusOK, "Category retrieved successfully", category)
}

func (cc *CategoryController) GetCategoryBySlug(c *gin.Context) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	category, err := cc.categoryService.GetCategoryBySlug(ctx, c.Param("slug"))
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	util.HandleSuccess(c, http.StatusOK, "Category retrieved successfully", category)
}

func (cc *CategoryController) GetCategoryTree(c *gin.Context) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	id, err := helpers.ObjectIDParam(c, "id")
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	tree, err := cc.categoryService.GetSubtree(ctx, id)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	util.HandleSuccess(c, http.StatusOK, "Category tree retrieved successfully", tree)
}

func (cc *CategoryController) GetCategoryChildren(c *gin.Context) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	id, err := helpers.ObjectIDParam(c, "id")
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	children, err := cc.categoryService.GetCategoryChildren(ctx, id)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	util.HandleSuccessMeta(c, http.StatusOK, "Category children retrieved successfully", children, gin.H{"count": len(children)})
}

func (cc *CategoryController) GetCategoryAncestors(c *gin.Context) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	id, err := helpers.ObjectIDParam(c, "id")
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	ancestors, err := cc.categoryService.GetCategoryAncestors(ctx, id)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	util.HandleSuccess(c, http.StatusOK, "Category ancestors retrieved successfully", ancestors)
}

func (cc *CategoryController) SearchCategories(c *gin.Context) {
	ctx, cancel := WithTimeout(c, cc.timeout)
	defer cancel()

	query, err := helpers.SearchQuery(c)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	categories, err := cc.categoryService.SearchCategories(ctx, query)
	if err != nil {
		util.HandleAppError(c, err)
		return
	}

	util.HandleSuccessMeta(c, http.StatusOK, "Categories found", categories, gin.H{"count": len(categories), "query": query})
}
