package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bean_wallet_back/models"
	"bean_wallet_back/pkg/apperror"
)

// CreateWallet answers with a new address and its encrypted key. A body {password} adds a
// keystore file.
func (h *Handler) CreateWallet(c *gin.Context) {
	var input models.CreateWalletInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			newErrorResponse(c, http.StatusBadRequest, apperror.InvalidInput, "invalid request body")
			return
		}
	}

	resp, err := h.service.CreateWallet(c.Request.Context(), input.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	wrapOkJSON(c, http.StatusCreated, resp)
}

// ConnectWallet imports a hex private key and answers like CreateWallet.
func (h *Handler) ConnectWallet(c *gin.Context) {
	var input models.ConnectWalletInput
	if err := c.ShouldBindJSON(&input); err != nil {
		newErrorResponse(c, http.StatusBadRequest, apperror.InvalidInput, "invalid request body")
		return
	}
	if input.PrivateKey == "" {
		newErrorResponse(c, http.StatusBadRequest, apperror.InvalidInput, "privateKey is required")
		return
	}

	resp, err := h.service.ConnectWallet(c.Request.Context(), input.PrivateKey, input.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	wrapOkJSON(c, http.StatusCreated, resp)
}

func (h *Handler) GetBalance(c *gin.Context) {
	bal, err := h.service.GetBalance(c.Request.Context(), c.Param("address"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	wrapOkJSON(c, http.StatusOK, bal)
}

// limit reads ?limit=, falling back to a JSON body {limit}. Zero means the default.
func limit(c *gin.Context) (int, bool) {
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	if c.Request.ContentLength > 0 {
		var body struct {
			Limit int `json:"limit"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Limit < 0 {
			return 0, false
		}
		return body.Limit, true
	}
	return 0, true
}

func (h *Handler) GetTransactions(c *gin.Context) {
	n, ok := limit(c)
	if !ok {
		newErrorResponse(c, http.StatusBadRequest, apperror.InvalidInput, "limit must be a non-negative integer")
		return
	}

	txs, err := h.service.GetTransactions(c.Request.Context(), c.Param("address"), n)
	if err != nil {
		abortWithError(c, err)
		return
	}
	wrapOkJSON(c, http.StatusOK, txs)
}

func (h *Handler) GetJournal(c *gin.Context) {
	n, ok := limit(c)
	if !ok {
		newErrorResponse(c, http.StatusBadRequest, apperror.InvalidInput, "limit must be a non-negative integer")
		return
	}

	logs, err := h.service.GetJournal(c.Request.Context(), c.Param("address"), n)
	if err != nil {
		abortWithError(c, err)
		return
	}
	wrapOkJSON(c, http.StatusOK, logs)
}
