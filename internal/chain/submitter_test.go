package chain

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwinews/delegation-api/internal/logger"
)

func init() {
	logger.InitLogger("test")
}

func TestEtchABI(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(etchABI))
	require.NoError(t, err)

	method, ok := parsed.Methods["etch"]
	require.True(t, ok)
	require.Len(t, method.Inputs, 1)
	assert.Equal(t, "bytes32[3]", method.Inputs[0].Type.String())

	_, ok = parsed.Events["Delegate"]
	assert.True(t, ok)
}

func TestClassifySubmitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "insufficient funds",
			err:  errors.New("insufficient funds for gas * price + value"),
			want: ErrInsufficientFunds,
		},
		{
			name: "user denied",
			err:  errors.New("MetaMask Tx Signature: User denied transaction signature"),
			want: ErrSubmissionRejected,
		},
		{
			name: "user rejected",
			err:  errors.New("user rejected the request"),
			want: ErrSubmissionRejected,
		},
		{
			name: "user cancelled",
			err:  errors.New("request cancelled"),
			want: ErrSubmissionRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifySubmitError(tt.err), tt.want)
		})
	}

	t.Run("unrecognized errors pass through wrapped", func(t *testing.T) {
		err := classifySubmitError(errors.New("nonce too low"))
		assert.NotErrorIs(t, err, ErrSubmissionRejected)
		assert.NotErrorIs(t, err, ErrInsufficientFunds)
		assert.Contains(t, err.Error(), "nonce too low")
	})
}
