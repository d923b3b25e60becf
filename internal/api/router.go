package api

import "github.com/gin-gonic/gin"

// SetupRouter configures and returns a Gin engine for the service.
func SetupRouter(h *Handler, frontendOrigins []string) *gin.Engine {
	r := gin.Default()
	r.Use(CORSMiddleware(frontendOrigins))

	r.GET("/healthz", h.Healthz)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/query", h.Query)

		spaces := apiV1.Group("/spaces")
		{
			spaces.POST("", h.CreateSpace)
			spaces.GET("", h.ListSpaces)
			spaces.PATCH("/:space", h.UpdateSpace)
			spaces.DELETE("/:space", h.DeleteSpace)

			spaces.POST("/:space/documents", h.UploadDocuments)
			spaces.GET("/:space/search", h.Search)
			spaces.GET("/:space/query_with_media", h.QueryWithMedia)
			spaces.GET("/:space/files/*path", h.ServeFile)
		}
	}

	return r
}
