package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"bean_wallet_back/internal/wallet"
	"bean_wallet_back/models"
	"bean_wallet_back/pkg/apperror"
	"bean_wallet_back/pkg/middleware"
)

// credentialBody holds the credential fields a signed request may carry in its body. The
// encryptedkey header takes precedence over encryptedKey.
type credentialBody struct {
	EncryptedKey string          `json:"encryptedKey"`
	PrivateKey   string          `json:"privateKey"`
	Keystore     json.RawMessage `json:"keystore"`
	Password     string          `json:"password"`
}

// errKeystoreTooLarge is reported before any key derivation runs.
var errKeystoreTooLarge = apperror.New(apperror.InvalidCredential, "Keystore is too large!")

func (b credentialBody) credential(c *gin.Context) (models.Credential, error) {
	if len(b.Keystore) > wallet.MaxKeystoreSize {
		return models.Credential{}, errKeystoreTooLarge
	}
	cred := models.Credential{
		Encrypted:  middleware.EncryptedKey(c),
		PrivateKey: b.PrivateKey,
		Password:   b.Password,
	}
	if cred.Encrypted == "" {
		cred.Encrypted = b.EncryptedKey
	}

	// The keystore arrives either as an object or as a JSON string holding one.
	raw := bytes.TrimSpace(b.Keystore)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			cred.Keystore = []byte(s)
		}
	default:
		cred.Keystore = raw
	}
	return cred, nil
}

type transferRequest struct {
	models.TransferInput
	Fee models.Amount `json:"fee"`
	credentialBody
}

func (h *Handler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, apperror.InvalidInput, "invalid request body")
		return
	}
	if !req.TransactionFee.IsSet() {
		req.TransactionFee = req.Fee
	}

	cred, err := req.credential(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	res, err := h.service.Transfer.Transfer(c.Request.Context(), cred, req.TransferInput)
	if err != nil {
		abortWithError(c, err)
		return
	}
	wrapOkJSON(c, http.StatusCreated, res)
}

type airdropItem struct {
	models.Recipient
	Fee models.Amount `json:"fee"`
}

type airdropRequest struct {
	models.MultiTransferInput
	credentialBody
}

// Airdrop takes either a bare list [{receiverAddress, amount, fee}], where the first fee applies
// to every recipient, or {recipients, transactionFee}.
func (h *Handler) Airdrop(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		newErrorResponse(c, http.StatusBadRequest, apperror.InvalidInput, "invalid request body")
		return
	}

	var req airdropRequest
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		var items []airdropItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			newErrorResponse(c, http.StatusBadRequest, apperror.InvalidInput, "invalid request body")
			return
		}
		for _, it := range items {
			req.Recipients = append(req.Recipients, it.Recipient)
		}
		if len(items) > 0 {
			req.TransactionFee = items[0].Fee
		}
	} else if err := json.Unmarshal(trimmed, &req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, apperror.InvalidInput, "invalid request body")
		return
	}

	cred, err := req.credential(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	res, err := h.service.MultiSend(c.Request.Context(), cred, req.MultiTransferInput)
	if err != nil {
		abortWithError(c, err)
		return
	}
	wrapOkJSON(c, http.StatusCreated, res)
}

func (h *Handler) SetMinFee(c *gin.Context) {
	var input models.SetFeeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		newErrorResponse(c, http.StatusBadRequest, apperror.InvalidInput, "invalid request body")
		return
	}

	hash, err := h.service.SetMinFee(c.Request.Context(), input.Fee)
	if err != nil {
		abortWithError(c, err)
		return
	}
	wrapOkJSON(c, http.StatusOK, gin.H{"fee": input.Fee, "txHash": hash})
}

func (h *Handler) GetMinFee(c *gin.Context) {
	fee, err := h.service.MinFee(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	wrapOkJSON(c, http.StatusOK, gin.H{"fee": fee})
}
