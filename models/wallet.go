package models

import "encoding/json"

// Credential is whatever the caller supplied to authorize spending: an encrypted key issued by
// this service, a raw hex private key, or a keystore file with its password.
type Credential struct {
	Encrypted  string
	PrivateKey string
	Keystore   []byte
	Password   string
}

func (c Credential) Empty() bool {
	return c.Encrypted == "" && c.PrivateKey == "" && len(c.Keystore) == 0
}

type EncryptedCredential struct {
	Ciphertext string `json:"encryptedKey"`
	Algorithm  string `json:"algorithm"`
}

type WalletResponse struct {
	Address string `json:"walletAddress"`
	EncryptedCredential
	Keystore json.RawMessage `json:"keystore,omitempty"`
}

type CreateWalletInput struct {
	Password string `json:"password"`
}

// ConnectWalletInput imports an existing key. The key is only used to build the response.
type ConnectWalletInput struct {
	PrivateKey string `json:"privateKey"`
	Password   string `json:"password"`
}
