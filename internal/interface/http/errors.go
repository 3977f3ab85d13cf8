package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/kios-auth/internal/application"
	"github.com/oksasatya/kios-auth/internal/metrics"
	"github.com/oksasatya/kios-auth/pkg/response"
)

type errorKind struct {
	err     error
	status  int
	outcome string
}

var errorKinds = []errorKind{
	{application.ErrEmailAlreadyRegistered, http.StatusConflict, "email_already_registered"},
	{application.ErrPhoneAlreadyRegistered, http.StatusConflict, "phone_already_registered"},
	{application.ErrPasswordTooLong, http.StatusBadRequest, "password_too_long"},
	{application.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{application.ErrAccountInactive, http.StatusUnauthorized, "account_inactive"},
	{application.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{application.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{application.ErrInvalidResetToken, http.StatusUnauthorized, "invalid_reset_token"},
	{application.ErrResetTokenExpired, http.StatusUnauthorized, "reset_token_expired"},
	{application.ErrPictureStorageDisabled, http.StatusServiceUnavailable, "storage_disabled"},
}

// classify maps a service error to its HTTP status and metric outcome.
// Unknown errors are internal and their text is never sent to the client.
func classify(err error) (int, string, bool) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.outcome, true
		}
	}
	return http.StatusInternalServerError, "internal_error", false
}

func observe(op string, err error) {
	if err == nil {
		metrics.ObserveAuth(op, "success")
		return
	}
	_, outcome, _ := classify(err)
	metrics.ObserveAuth(op, outcome)
}

func writeError(c *gin.Context, logger *logrus.Logger, op string, err error) {
	observe(op, err)
	status, _, known := classify(err)
	if !known {
		logger.WithError(err).WithFields(logrus.Fields{
			"operation":  op,
			"request_id": c.GetString("request_id"),
		}).Error("request failed")
		response.Error[any](c, status, "internal server error", nil)
		return
	}
	response.Error[any](c, status, err.Error(), nil)
}
