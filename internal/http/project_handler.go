package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"archmap/internal/domain"
	"archmap/internal/repository"
)

// ProjectHandler mantiene dependencias para endpoints de proyectos.
// Todas las rutas corren detrás de AuthRequired y trabajan sobre los
// proyectos del usuario autenticado.
type ProjectHandler struct {
	logger   *zap.Logger
	projects repository.ProjectRepository
}

func NewProjectHandler(logger *zap.Logger, projects repository.ProjectRepository) *ProjectHandler {
	return &ProjectHandler{
		logger:   logger,
		projects: projects,
	}
}

// CreateProject maneja POST /projects.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		RepoURL     string `json:"repo_url"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	now := time.Now().UTC()
	project := domain.Project{
		ID:          uuid.NewString(),
		OwnerID:     user.ID,
		Name:        req.Name,
		RepoURL:     req.RepoURL,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.projects.Create(c.Request.Context(), project); err != nil {
		h.logger.Error("create project failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create project"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"project": project})
}

// ListProjects maneja GET /projects.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	projects, err := h.projects.ListByOwner(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		h.logger.Error("list projects failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list projects"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// GetProject maneja GET /projects/:id.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	project, err := h.projects.GetByID(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		h.logger.Error("get project failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// UpdateProject maneja PUT /projects/:id.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		RepoURL     string `json:"repo_url"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	project := domain.Project{
		ID:          c.Param("id"),
		OwnerID:     user.ID,
		Name:        req.Name,
		RepoURL:     req.RepoURL,
		Description: req.Description,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := h.projects.Update(c.Request.Context(), project); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		h.logger.Error("update project failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// DeleteProject maneja DELETE /projects/:id.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	if err := h.projects.Delete(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		h.logger.Error("delete project failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
