package tmpfiles

import (
	"os"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestScopePaths(t *testing.T) {
	is := is.New(t)

	scope, err := NewScope(t.TempDir())
	is.NoErr(err)

	a := scope.NewPath(".iso")
	b := scope.NewPath(".iso")
	is.True(a != b)
	is.True(strings.HasPrefix(a, scope.Dir()))
	is.True(strings.HasSuffix(a, ".iso"))

	pipe := scope.NewPipe()
	is.True(strings.HasSuffix(pipe, ".fifo"))

	is.NoErr(os.WriteFile(a, []byte("payload"), 0o644))
	is.NoErr(scope.Cleanup())

	_, err = os.Stat(scope.Dir())
	is.True(os.IsNotExist(err))
}
