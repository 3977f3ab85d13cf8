package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/kios-auth/internal/application"
	"github.com/oksasatya/kios-auth/internal/interface/middleware"
	"github.com/oksasatya/kios-auth/pkg/response"
	"github.com/oksasatya/kios-auth/pkg/validation"
)

const maxPictureBytes = 5 << 20

var allowedPictureTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type UserHandler struct {
	Svc    AuthService
	Logger *logrus.Logger
}

func NewUserHandler(svc AuthService, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type updateProfileRequest struct {
	Name           *string `json:"name" binding:"omitempty,notblank,max=255"`
	Phone          *string `json:"phone" binding:"omitempty,phone"`
	ProfilePicture *string `json:"profilePicture" binding:"omitempty,url"`
}

// GetProfile GET /api/auth/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	p, err := h.Svc.Profile(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		writeError(c, h.Logger, "profile", err)
		return
	}
	response.Success(c, http.StatusOK, p, "profile", nil)
}

// UpdateProfile POST /api/auth/profile/update
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, err := h.Svc.UpdateProfile(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), application.UpdateProfileInput{
		Name:           req.Name,
		Phone:          req.Phone,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		writeError(c, h.Logger, "update_profile", err)
		return
	}
	observe("update_profile", nil)
	response.Success(c, http.StatusOK, p, "profile updated", nil)
}

// UploadPicture POST /api/auth/profile/picture (multipart field "file")
func (h *UserHandler) UploadPicture(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"file": "is required"})
		return
	}
	if fh.Size > maxPictureBytes {
		response.Error[any](c, http.StatusRequestEntityTooLarge, "file too large", map[string]string{"file": "must be at most 5MB"})
		return
	}
	contentType := strings.ToLower(fh.Header.Get("Content-Type"))
	if !allowedPictureTypes[contentType] {
		response.Error[any](c, http.StatusUnsupportedMediaType, "unsupported file type", map[string]string{"file": "must be jpeg, png or webp"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"file": "unreadable"})
		return
	}
	defer func() { _ = f.Close() }()

	p, err := h.Svc.UploadProfilePicture(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), f, fh.Filename, contentType)
	if err != nil {
		writeError(c, h.Logger, "upload_picture", err)
		return
	}
	response.Success(c, http.StatusOK, p, "profile picture updated", nil)
}

// Search GET /api/users/search?q=&size=
func (h *UserHandler) Search(c *gin.Context) {
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchProfiles(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		writeError(c, h.Logger, "search", err)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
}
