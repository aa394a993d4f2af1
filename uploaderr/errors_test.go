package uploaderr

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageError(t *testing.T) {
	require.NoError(t, NewStorageError("rename", "/tmp/a", nil))

	err := NewStorageError("rename", "/tmp/a", os.ErrPermission)
	wrapped := fmt.Errorf("store chunk: %w", err)

	var se *StorageError
	require.True(t, errors.As(wrapped, &se))
	assert.Equal(t, "rename", se.Op)
	assert.True(t, errors.Is(wrapped, os.ErrPermission))

	again := NewStorageError("store", "", wrapped)
	assert.Same(t, wrapped, again)
}

func TestAssemblyError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AssemblyError
		want string
	}{
		{
			name: "missing",
			err:  &AssemblyError{ContentHash: "abc", Total: 3, Missing: []int{1}},
			want: "assemble abc (total 3): missing indices [1]",
		},
		{
			name: "missing and unexpected",
			err:  &AssemblyError{ContentHash: "abc", Total: 2, Missing: []int{0}, Unexpected: []int{5, 7}},
			want: "assemble abc (total 2): missing indices [0], unexpected indices [5 7]",
		},
		{
			name: "neither",
			err:  &AssemblyError{ContentHash: "abc", Total: 2},
			want: "assemble abc (total 2): chunk set changed during assembly",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorsAs(t *testing.T) {
	var err error = fmt.Errorf("receive chunk: %w", &InconsistentTotalError{ContentHash: "abc", Declared: 4, Recorded: 3})

	var ite *InconsistentTotalError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, 3, ite.Recorded)

	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))

	err = NewValidationError("index", "%d is out of range [0, %d)", 5, 3)
	assert.EqualError(t, err, "invalid index: 5 is out of range [0, 3)")
}
