package resource

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCloser struct {
	order *[]string
	name  string
	err   error
}

func (c recordingCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestScope_DeletesFilesOnClose(t *testing.T) {
	scope := NewScope(t.TempDir(), nil)

	f, err := scope.CreateTempFile("att-*.bin")
	require.NoError(t, err)
	_, err = f.WriteString("data")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	path := f.Name()
	assert.Equal(t, []string{path}, scope.Files())

	require.NoError(t, scope.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestScope_ClosersReverseOrder(t *testing.T) {
	scope := NewScope("", nil)
	var order []string

	require.NoError(t, scope.AddCloser(recordingCloser{order: &order, name: "first"}))
	require.NoError(t, scope.AddCloser(recordingCloser{order: &order, name: "second"}))

	require.NoError(t, scope.Close())
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestScope_CloseJoinsErrors(t *testing.T) {
	scope := NewScope("", nil)
	var order []string
	boom := errors.New("boom")

	require.NoError(t, scope.AddCloser(recordingCloser{order: &order, name: "a", err: boom}))
	require.NoError(t, scope.AddCloser(recordingCloser{order: &order, name: "b"}))

	err := scope.Close()
	assert.ErrorIs(t, err, boom)
	assert.Len(t, order, 2)
}

func TestScope_ClosedRejectsNewResources(t *testing.T) {
	scope := NewScope(t.TempDir(), nil)
	require.NoError(t, scope.Close())
	require.NoError(t, scope.Close())

	_, err := scope.CreateTempFile("x-*")
	assert.ErrorIs(t, err, ErrScopeClosed)
	assert.ErrorIs(t, scope.AddCloser(recordingCloser{order: new([]string)}), ErrScopeClosed)
}

func TestScope_AlreadyDeletedFileIsIgnored(t *testing.T) {
	scope := NewScope(t.TempDir(), nil)
	f, err := scope.CreateTempFile("gone-*")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, os.Remove(f.Name()))

	assert.NoError(t, scope.Close())
}
