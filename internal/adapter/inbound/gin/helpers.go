package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elevare/server/internal/domain/ledger"
	"github.com/elevare/server/internal/model"
	apperrors "github.com/elevare/server/internal/utils/errors"
	"github.com/elevare/server/internal/utils/middleware"
)

// requireUserID returns the authenticated user ID, writing a 401 when absent.
func requireUserID(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, apperrors.Unauthorized("").ToResponse())
		return "", false
	}
	return userID, true
}

// callerFrom builds the ledger caller from the authenticated identity.
func callerFrom(c *gin.Context) ledger.Caller {
	return ledger.Caller{
		UserID: middleware.GetUserID(c),
		Role:   middleware.GetRole(c),
	}
}

// featureParam parses the :feature path parameter, writing a 400 when unknown.
func featureParam(c *gin.Context) (model.FeatureType, bool) {
	feature := model.FeatureType(c.Param("feature"))
	if !feature.IsValid() {
		respondInvalid(c, "unknown feature "+c.Param("feature"))
		return "", false
	}
	return feature, true
}
