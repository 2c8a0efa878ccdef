package user

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"user_manager/internal/auth"
	"user_manager/internal/toast"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Toasts is the notifier pages also drain when rendering.
type Toasts interface {
	Notifier
	Drain(ctx context.Context, sessionID string) []toast.Toast
}

// FormField is one labelled input of the create and edit forms.
type FormField struct {
	Name     string
	Label    string
	Value    string
	Error    string
	ReadOnly bool
}

// PageController serves the server-rendered user interface.
type PageController struct {
	service         UserServiceInterface
	toasts          Toasts
	activityEnabled bool
}

func NewPageController(service UserServiceInterface, toasts Toasts, activityEnabled bool) *PageController {
	return &PageController{
		service:         service,
		toasts:          toasts,
		activityEnabled: activityEnabled,
	}
}

// Render adds the layout data every page needs and renders name.
func (p *PageController) Render(c *gin.Context, status int, name string, data gin.H) {
	data["ActivityEnabled"] = p.activityEnabled
	if sessionID, err := auth.GetSessionIDFromContext(c); err == nil {
		data["Toasts"] = p.toasts.Drain(c.Request.Context(), sessionID)
	}
	c.HTML(status, name, data)
}

// ListPage handles GET /
func (p *PageController) ListPage(c *gin.Context) {
	sessionID, ok := p.session(c)
	if !ok {
		return
	}

	query := c.Query("q")
	users, err := p.service.List(c.Request.Context(), sessionID, query)
	if err != nil {
		p.fail(c, err)
		return
	}

	p.Render(c, http.StatusOK, "list.tmpl", gin.H{
		"Title": "User List",
		"Query": query,
		"Users": users,
	})
}

// CreateForm handles GET /create-user
func (p *PageController) CreateForm(c *gin.Context) {
	p.renderCreate(c, http.StatusOK, CreateUserInput{}, nil)
}

// CreateSubmit handles POST /create-user
func (p *PageController) CreateSubmit(c *gin.Context) {
	sessionID, ok := p.session(c)
	if !ok {
		return
	}

	var in CreateUserInput
	if err := c.ShouldBind(&in); err != nil {
		c.String(http.StatusBadRequest, "Invalid form submission")
		return
	}

	_, err := p.service.Create(c.Request.Context(), sessionID, in)
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		p.renderCreate(c, http.StatusUnprocessableEntity, in, verr.Fields)
	case err == nil || errors.Is(err, ErrRemote):
		// The form closes either way; the outcome is reported by toast.
		c.Redirect(http.StatusSeeOther, "/")
	default:
		p.fail(c, err)
	}
}

// EditForm handles GET /users/:id/edit
func (p *PageController) EditForm(c *gin.Context) {
	sessionID, id, ok := p.sessionAndID(c)
	if !ok {
		return
	}

	u, err := p.service.Get(c.Request.Context(), sessionID, id)
	if err != nil {
		p.fail(c, err)
		return
	}

	p.renderEdit(c, http.StatusOK, *u, InputFromUser(*u), nil)
}

// EditSubmit handles POST /users/:id/edit
func (p *PageController) EditSubmit(c *gin.Context) {
	sessionID, id, ok := p.sessionAndID(c)
	if !ok {
		return
	}

	existing, err := p.service.Get(c.Request.Context(), sessionID, id)
	if err != nil {
		p.fail(c, err)
		return
	}

	var in UpdateUserInput
	if err := c.ShouldBind(&in); err != nil {
		c.String(http.StatusBadRequest, "Invalid form submission")
		return
	}

	_, err = p.service.Update(c.Request.Context(), sessionID, id, in)
	var verr *ValidationError
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/")
	case errors.As(err, &verr):
		p.renderEdit(c, http.StatusUnprocessableEntity, *existing, in, verr.Fields)
	case errors.Is(err, ErrRemote):
		// Keep the form open so the user can retry.
		p.renderEdit(c, http.StatusBadGateway, *existing, in, nil)
	default:
		p.fail(c, err)
	}
}

// DeleteConfirm handles GET /users/:id/delete
func (p *PageController) DeleteConfirm(c *gin.Context) {
	sessionID, id, ok := p.sessionAndID(c)
	if !ok {
		return
	}

	u, err := p.service.Get(c.Request.Context(), sessionID, id)
	if err != nil {
		p.fail(c, err)
		return
	}

	p.Render(c, http.StatusOK, "confirm.tmpl", gin.H{
		"Title": "Confirm Deletion",
		"User":  u,
	})
}

// DeleteSubmit handles POST /users/:id/delete
func (p *PageController) DeleteSubmit(c *gin.Context) {
	sessionID, id, ok := p.sessionAndID(c)
	if !ok {
		return
	}

	existing, err := p.service.Get(c.Request.Context(), sessionID, id)
	if err != nil {
		p.fail(c, err)
		return
	}

	err = p.service.Delete(c.Request.Context(), sessionID, id)
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/")
	case errors.Is(err, ErrRemote):
		p.Render(c, http.StatusBadGateway, "confirm.tmpl", gin.H{
			"Title": "Confirm Deletion",
			"User":  existing,
		})
	default:
		p.fail(c, err)
	}
}

func (p *PageController) renderCreate(c *gin.Context, status int, in CreateUserInput, errs map[string]string) {
	p.Render(c, status, "form.tmpl", gin.H{
		"Title":  "Create New User",
		"Action": "/create-user",
		"Submit": "Submit",
		"Fields": []FormField{
			{Name: "name", Label: "Name", Value: in.Name, Error: errs["name"]},
			{Name: "username", Label: "Username", Value: in.Username, Error: errs["username"]},
			{Name: "email", Label: "Email", Value: in.Email, Error: errs["email"]},
			{Name: "phone", Label: "Phone", Value: in.Phone, Error: errs["phone"]},
			{Name: "website", Label: "Website", Value: in.Website, Error: errs["website"]},
		},
	})
}

func (p *PageController) renderEdit(c *gin.Context, status int, u User, in UpdateUserInput, errs map[string]string) {
	p.Render(c, status, "form.tmpl", gin.H{
		"Title":  "Edit User",
		"Action": "/users/" + strconv.Itoa(u.ID) + "/edit",
		"Submit": "Update",
		"Fields": []FormField{
			{Name: "name", Label: "Name", Value: in.Name, Error: errs["name"]},
			{Name: "username", Label: "Username", Value: u.Username, ReadOnly: true},
			{Name: "email", Label: "Email", Value: in.Email, Error: errs["email"]},
			{Name: "phone", Label: "Phone", Value: in.Phone, Error: errs["phone"]},
			{Name: "website", Label: "Website", Value: in.Website, Error: errs["website"]},
		},
	})
}

func (p *PageController) session(c *gin.Context) (string, bool) {
	sessionID, err := auth.GetSessionIDFromContext(c)
	if err != nil {
		c.String(http.StatusUnauthorized, "Session required")
		return "", false
	}
	return sessionID, true
}

func (p *PageController) sessionAndID(c *gin.Context) (string, int, bool) {
	sessionID, ok := p.session(c)
	if !ok {
		return "", 0, false
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid user ID")
		return "", 0, false
	}
	return sessionID, id, true
}

// fail reports unexpected errors; a missing user sends the browser back to the list.
func (p *PageController) fail(c *gin.Context, err error) {
	if errors.Is(err, ErrUserNotFound) {
		if sessionID, serr := auth.GetSessionIDFromContext(c); serr == nil {
			p.toasts.Error(c.Request.Context(), sessionID, "User not found.")
		}
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	logrus.WithError(err).Error("Failed to serve page")
	c.String(http.StatusInternalServerError, "Internal server error")
}
