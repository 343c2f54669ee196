package chaintest

import "errors"

var (
	errSendRejected = errors.New("transaction rejected")
	errNonce        = errors.New("nonce too low")
)
