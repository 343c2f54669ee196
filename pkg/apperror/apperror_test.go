package apperror

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := Wrap(Network, io.EOF, "rpc call")
	wrapped := fmt.Errorf("balance: %w", err)

	assert.Equal(t, Network, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, io.EOF)
	assert.Equal(t, Unknown, KindOf(io.EOF))
	assert.Nil(t, Wrap(Network, nil, "nothing"))
}

func TestSubmittedHashes(t *testing.T) {
	err := fmt.Errorf("fee leg: %w", AfterSubmission(io.ErrUnexpectedEOF, "0xabc"))

	assert.Equal(t, Submission, KindOf(err))
	assert.Equal(t, []string{"0xabc"}, SubmittedHashes(err))
	assert.Nil(t, SubmittedHashes(New(Submission, "rejected")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		InvalidInput:      http.StatusBadRequest,
		BusinessRule:      http.StatusBadRequest,
		InvalidCredential: http.StatusUnauthorized,
		Network:           http.StatusBadGateway,
		Submission:        http.StatusBadGateway,
		Configuration:     http.StatusInternalServerError,
		Unknown:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind.String())
	}
}
