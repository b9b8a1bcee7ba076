package scripts

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReports(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"shadowed", "unused"}, Reports())
}

func TestFS_ReportScriptsReadable(t *testing.T) {
	t.Parallel()
	for _, name := range Reports() {
		data, err := fs.ReadFile(FS, "report/"+name+".risor")
		require.NoError(t, err, name)
		assert.Contains(t, string(data), "emit(", name)
	}
}
