package user

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"user_manager/internal/auth"
	"user_manager/internal/cache"
	"user_manager/internal/toast"
	"user_manager/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type pageFixture struct {
	router    *gin.Engine
	directory *MockDirectory
	toasts    *toast.Service
}

func newPageFixture(t *testing.T) *pageFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := cache.NewMemoryStore(time.Hour)
	directory := new(MockDirectory)
	toasts := toast.NewService(store, nil)
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	service := NewUserService(directory, store, publisher, toasts, nil)
	pages := NewPageController(service, toasts, false)

	tmpl, err := web.Templates()
	require.NoError(t, err)

	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.Use(func(c *gin.Context) {
		c.Set(auth.SessionIDKey, "s1")
		c.Next()
	})
	router.GET("/", pages.ListPage)
	router.GET("/create-user", pages.CreateForm)
	router.POST("/create-user", pages.CreateSubmit)
	router.GET("/users/:id/edit", pages.EditForm)
	router.POST("/users/:id/edit", pages.EditSubmit)
	router.GET("/users/:id/delete", pages.DeleteConfirm)
	router.POST("/users/:id/delete", pages.DeleteSubmit)

	directory.On("ListUsers", mock.Anything).Return(seedUsers(), nil).Once()

	return &pageFixture{router: router, directory: directory, toasts: toasts}
}

func (f *pageFixture) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func (f *pageFixture) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestListPage(t *testing.T) {
	f := newPageFixture(t)

	w := f.get("/?q=ervin")

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Ervin Howell")
	assert.NotContains(t, body, "Leanne Graham")
	assert.Contains(t, body, `value="ervin"`)
}

func TestCreateSubmit_ValidationRerendersForm(t *testing.T) {
	f := newPageFixture(t)

	w := f.post("/create-user", url.Values{
		"name":     {"Jo"},
		"username": {"jdoe"},
		"email":    {"bad"},
		"phone":    {"1234567890"},
		"website":  {"https://jane.dev"},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, MsgNameInvalid)
	assert.Contains(t, body, MsgEmailInvalid)
	assert.Contains(t, body, `value="jdoe"`)
	f.directory.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestCreateSubmit_RedirectsWithToast(t *testing.T) {
	f := newPageFixture(t)
	f.directory.On("CreateUser", mock.Anything, mock.Anything).Return(&User{ID: 11, Name: "Jane Doe", Username: "jdoe"}, nil)

	w := f.post("/create-user", url.Values{
		"name":     {"Jane Doe"},
		"username": {"jdoe"},
		"email":    {"jane@example.com"},
		"phone":    {"123 456 7890"},
		"website":  {"https://jane.dev"},
	})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = f.get("/")
	body := w.Body.String()
	assert.Contains(t, body, "Jane Doe")
	assert.Contains(t, body, MsgCreated)

	// Toasts are shown once.
	assert.NotContains(t, f.get("/").Body.String(), MsgCreated)
}

func TestCreateSubmit_RemoteFailureRedirectsWithErrorToast(t *testing.T) {
	f := newPageFixture(t)
	f.directory.On("CreateUser", mock.Anything, mock.Anything).Return(nil, errors.New("HTTP 500"))

	w := f.post("/create-user", url.Values{
		"name":     {"Jane Doe"},
		"username": {"jdoe"},
		"email":    {"jane@example.com"},
		"phone":    {"1234567890"},
		"website":  {"https://jane.dev"},
	})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, f.get("/").Body.String(), MsgCreateFailed)
}

func TestEditForm_UsernameReadOnly(t *testing.T) {
	f := newPageFixture(t)

	w := f.get("/users/1/edit")

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `value="Bret"`)
	assert.Contains(t, body, "readonly")
	assert.Contains(t, body, `action="/users/1/edit"`)
}

func TestEditSubmit_RemoteFailureKeepsFormOpen(t *testing.T) {
	f := newPageFixture(t)
	f.directory.On("UpdateUser", mock.Anything, 1, mock.Anything).Return(nil, errors.New("HTTP 500"))

	w := f.post("/users/1/edit", url.Values{
		"name":  {"Leanne G."},
		"email": {"leanne@example.com"},
		"phone": {"1234567890"},
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `value="Leanne G."`)
	assert.Contains(t, body, MsgUpdateFailed)
}

func TestEditForm_UnknownUserRedirects(t *testing.T) {
	f := newPageFixture(t)

	w := f.get("/users/99/edit")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, []toast.Toast{{Level: toast.LevelError, Message: "User not found."}},
		f.toasts.Drain(context.Background(), "s1"))
}

func TestDeleteConfirmAndSubmit(t *testing.T) {
	f := newPageFixture(t)
	f.directory.On("DeleteUser", mock.Anything, 2).Return(nil)

	w := f.get("/users/2/delete")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Are you sure you want to delete Ervin Howell?")

	w = f.post("/users/2/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, w.Code)

	body := f.get("/").Body.String()
	assert.NotContains(t, body, "Ervin Howell")
	assert.Contains(t, body, MsgDeleted)
}

func TestPages_InvalidID(t *testing.T) {
	f := newPageFixture(t)

	w := f.get("/users/abc/delete")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
