package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"bean_wallet_back/pkg/apperror"
)

type Error struct {
	Message   string   `json:"message"`
	Kind      string   `json:"kind"`
	Submitted bool     `json:"submitted,omitempty"`
	Hashes    []string `json:"hashes,omitempty"`
}

func newErrorResponse(c *gin.Context, statusCode int, kind apperror.Kind, message string) {
	logrus.WithField("kind", kind.String()).Error(message)
	c.AbortWithStatusJSON(statusCode, Error{Message: message, Kind: kind.String()})
}

// abortWithError answers with the status matching the error's kind. Unclassified errors are
// logged in full but reported generically.
func abortWithError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	resp := Error{Message: "something went wrong", Kind: kind.String()}

	var appErr *apperror.Error
	if errors.As(err, &appErr) && kind != apperror.Unknown {
		resp.Message = appErr.Message
	}
	if hashes := apperror.SubmittedHashes(err); len(hashes) > 0 {
		resp.Submitted, resp.Hashes = true, hashes
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"kind": kind.String(),
		"path": c.FullPath(),
	}).Error("request failed")
	c.AbortWithStatusJSON(apperror.HTTPStatus(kind), resp)
}

func wrapOkJSON(c *gin.Context, statusCode int, result interface{}) {
	c.JSON(statusCode, gin.H{"result": result})
}
