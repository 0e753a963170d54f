package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWithHint(t *testing.T) {
	err := New("error")
	withHint := WithHint(err, "try this fix")

	hints := GetAllHints(withHint)
	require.Len(t, hints, 1)
	assert.Equal(t, "try this fix", hints[0])
}

func TestContract(t *testing.T) {
	err := Contract(ErrCycle, "type %s", "example.com/app.Loop")

	assert.True(t, Is(err, ErrCycle))
	assert.True(t, Is(err, ErrInputContract))
	assert.True(t, IsInputContractError(err))
	assert.Contains(t, err.Error(), "example.com/app.Loop")
	assert.Contains(t, err.Error(), "inheritance cycle")
}

func TestContractSurvivesWrapping(t *testing.T) {
	err := Contract(ErrDanglingBase, "base of %s", "Foo")
	err = WithDetail(err, "chain: Foo -> Bar")
	err = Wrap(err, "discovery failed")

	assert.True(t, IsInputContractError(err))
	assert.True(t, Is(err, ErrDanglingBase))
	assert.False(t, Is(err, ErrCycle))
	assert.Contains(t, GetAllDetails(err), "chain: Foo -> Bar")
}

func TestIsInputContractError(t *testing.T) {
	assert.False(t, IsInputContractError(nil))
	assert.False(t, IsInputContractError(New("plain")))
	assert.False(t, IsInputContractError(NewInvalidConfigError("bad %s", "value")))
}

func TestNewInvalidConfigError(t *testing.T) {
	err := NewInvalidConfigError("unknown source mode %q", "rust")
	assert.True(t, Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), `unknown source mode "rust"`)
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.Nil(t, WithDetail(nil, "detail"))
}

func ExampleContract() {
	err := Contract(ErrCycle, "resolving %s", "Loop")
	fmt.Println(err)
	// Output: resolving Loop: inheritance cycle
}
