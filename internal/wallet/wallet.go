package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Wallet holds a freshly generated key pair. PrivateKey is hex without the 0x prefix.
type Wallet struct {
	PrivateKey string
	Address    string
}

// Generate creates a new secp256k1 key and its checksummed address.
func Generate() (*Wallet, *ecdsa.PrivateKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, errors.Wrap(err, "generate key")
	}

	return &Wallet{
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(privateKey)),
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
	}, privateKey, nil
}

// KeyFromHex parses a hex private key, with or without 0x, and derives its address.
func KeyFromHex(privKeyHex string) (*ecdsa.PrivateKey, common.Address, error) {
	privKeyHex = strings.TrimPrefix(strings.TrimSpace(privKeyHex), "0x")
	privKey, err := crypto.HexToECDSA(privKeyHex)
	if err != nil {
		return nil, common.Address{}, errors.Wrap(err, "parse private key")
	}
	return privKey, crypto.PubkeyToAddress(privKey.PublicKey), nil
}

// IsAddress reports whether s is a 20-byte hex address. Mixed-case input must carry a valid
// EIP-55 checksum.
func IsAddress(s string) bool {
	if !common.IsHexAddress(s) {
		return false
	}
	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(s).Hex() == "0x"+body
}

// EncryptKeystore produces a Web3 Secret Storage file for key protected by password.
func EncryptKeystore(key *ecdsa.PrivateKey, password string, scryptN, scryptP int) ([]byte, error) {
	k := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}
	out, err := keystore.EncryptKey(k, password, scryptN, scryptP)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt keystore")
	}
	return out, nil
}

// MaxKeystoreSize bounds a keystore file accepted from a caller. Real v3 files are well under 1 KiB.
const MaxKeystoreSize = 8 << 10

// ErrKDFParams is returned for keystore files whose key derivation is unknown or costlier than
// the limits allow.
var ErrKDFParams = errors.New("keystore kdf parameters not accepted")

// KDFLimits caps the key derivation work a keystore file may request.
type KDFLimits struct {
	ScryptN int
	ScryptP int
	PBKDF2C int
}

// DefaultKDFLimits matches what go-ethereum issues with the standard parameters.
var DefaultKDFLimits = KDFLimits{
	ScryptN: keystore.StandardScryptN,
	ScryptP: keystore.StandardScryptP,
	PBKDF2C: 1 << 18,
}

const (
	scryptR  = 8
	kdfDKLen = 32
)

// checkKDF reads the kdf section of a keystore file. Scrypt and PBKDF2 run before the password
// is verified, so their cost must be bounded before handing the file to go-ethereum.
func checkKDF(keyJSON []byte, lim KDFLimits) error {
	var file struct {
		Crypto struct {
			KDF       string `json:"kdf"`
			KDFParams struct {
				N     int64  `json:"n"`
				R     int64  `json:"r"`
				P     int64  `json:"p"`
				C     int64  `json:"c"`
				DKLen int64  `json:"dklen"`
				PRF   string `json:"prf"`
			} `json:"kdfparams"`
		} `json:"crypto"`
	}
	if err := json.Unmarshal(keyJSON, &file); err != nil {
		return errors.Wrap(err, "parse keystore")
	}

	params := file.Crypto.KDFParams
	if params.DKLen != kdfDKLen {
		return errors.Wrapf(ErrKDFParams, "dklen %d", params.DKLen)
	}
	switch file.Crypto.KDF {
	case "scrypt":
		if params.R != scryptR {
			return errors.Wrapf(ErrKDFParams, "scrypt r %d", params.R)
		}
		if params.N <= 1 || params.N > int64(lim.ScryptN) || params.P < 1 || params.P > int64(lim.ScryptP) {
			return errors.Wrapf(ErrKDFParams, "scrypt n %d p %d", params.N, params.P)
		}
	case "pbkdf2":
		if params.PRF != "hmac-sha256" {
			return errors.Wrapf(ErrKDFParams, "pbkdf2 prf %q", params.PRF)
		}
		if params.C < 1 || params.C > int64(lim.PBKDF2C) {
			return errors.Wrapf(ErrKDFParams, "pbkdf2 c %d", params.C)
		}
	default:
		return errors.Wrapf(ErrKDFParams, "kdf %q", file.Crypto.KDF)
	}
	return nil
}

// DecryptKeystore opens a keystore file with password. Files larger than MaxKeystoreSize or
// asking for more key derivation work than lim allows are rejected without running the KDF.
func DecryptKeystore(keyJSON []byte, password string, lim KDFLimits) (*ecdsa.PrivateKey, common.Address, error) {
	if len(keyJSON) > MaxKeystoreSize {
		return nil, common.Address{}, errors.Errorf("keystore larger than %d bytes", MaxKeystoreSize)
	}
	if err := checkKDF(keyJSON, lim); err != nil {
		return nil, common.Address{}, err
	}
	k, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, common.Address{}, errors.Wrap(err, "decrypt keystore")
	}
	return k.PrivateKey, k.Address, nil
}
