package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"suiml.io/suiml/errs"
	"suiml.io/suiml/model"
)

// statusFor maps an error to the HTTP status of its response.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindEncoding:
		return http.StatusBadRequest
	case errs.KindAuth:
		return http.StatusUnauthorized
	case errs.KindStorage:
		switch errs.CodeOf(err) {
		case "ENotFound":
			return http.StatusNotFound
		case "EInvalidCID":
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	case errs.KindChain:
		if errs.HasCode(err, errs.CodeInsufficientGas) {
			return http.StatusPaymentRequired
		}
		return http.StatusBadGateway
	case errs.KindEvent, errs.KindTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, model.FromError(err))
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, model.NewError(model.ErrInvalidRequest, msg))
}

func unavailable(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, model.NewError(model.ErrUnavailable, msg))
}
