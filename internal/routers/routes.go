package routers

import (
	"khoomi-api-io/catalog/internal/container"
	"khoomi-api-io/catalog/internal/middleware"
	"khoomi-api-io/catalog/pkg/controllers"

	"github.com/gin-gonic/gin"
)

// InitRoute creates the Gin router serving the category API.
func InitRoute(sc *container.ServiceContainer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(sc.Logger), middleware.CorsMiddleware())

	api := router.Group("/v1", middleware.RateLimiter(sc.Redis, sc.Config.RateLimit))
	{
		api.GET("/ping", controllers.Ping)
		categoryRoutes(api, sc)
	}

	return router
}

// categoryRoutes configures the public read endpoints and the admin-only writes.
func categoryRoutes(api *gin.RouterGroup, sc *container.ServiceContainer) {
	cc := sc.CategoryController
	categories := api.Group("/categories", middleware.Authenticate(sc.Verifier))

	categories.GET("", cc.GetAllCategories)
	categories.GET("/search", cc.SearchCategories)
	categories.GET("/slug/:slug", cc.GetCategoryBySlug)
	categories.GET("/:id", cc.GetCategory)
	categories.GET("/:id/children", cc.GetCategoryChildren)
	categories.GET("/:id/ancestors", cc.GetCategoryAncestors)
	categories.GET("/:id/tree", cc.GetCategoryTree)

	{
		admin := categories.Group("", middleware.RequireRole(sc.Gate))
		admin.POST("", cc.CreateCategory)
		admin.POST("/repair", cc.RepairCategories)
		admin.PUT("/:id", cc.UpdateCategory)
		admin.PUT("/:id/parent", cc.MoveCategory)
		admin.PUT("/:id/image", cc.UploadCategoryImage)
		admin.PUT("/:id/banner", cc.UploadCategoryBanner)
		admin.DELETE("/:id", cc.DeleteCategory)
	}
}
