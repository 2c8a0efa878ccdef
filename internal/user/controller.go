package user

import (
	"errors"
	"net/http"
	"strconv"

	"user_manager/internal/auth"

	"github.com/gin-gonic/gin"
)

// UserController serves the JSON API.
type UserController struct {
	service UserServiceInterface
}

func NewUserController(service UserServiceInterface) *UserController {
	return &UserController{
		service: service,
	}
}

// ListUsers handles GET /users?q=
func (uc *UserController) ListUsers(c *gin.Context) {
	sessionID, ok := sessionFrom(c)
	if !ok {
		return
	}

	users, err := uc.service.List(c.Request.Context(), sessionID, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

func (uc *UserController) GetUser(c *gin.Context) {
	sessionID, ok := sessionFrom(c)
	if !ok {
		return
	}
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	u, err := uc.service.Get(c.Request.Context(), sessionID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

func (uc *UserController) CreateUser(c *gin.Context) {
	sessionID, ok := sessionFrom(c)
	if !ok {
		return
	}

	var req CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := uc.service.Create(c.Request.Context(), sessionID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (uc *UserController) UpdateUser(c *gin.Context) {
	sessionID, ok := sessionFrom(c)
	if !ok {
		return
	}
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	var req UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := uc.service.Update(c.Request.Context(), sessionID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (uc *UserController) DeleteUser(c *gin.Context) {
	sessionID, ok := sessionFrom(c)
	if !ok {
		return
	}
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	if err := uc.service.Delete(c.Request.Context(), sessionID, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func sessionFrom(c *gin.Context) (string, bool) {
	sessionID, err := auth.GetSessionIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return "", false
	}
	return sessionID, true
}

func userIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, ErrRemote):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Remote users API request failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
