package migrate

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/zvt-tap/db"
)

func TestDiscover(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b_up.sql":   {Data: []byte("SELECT 2")},
		"0001_a_up.sql":   {Data: []byte("SELECT 1")},
		"0001_a_down.sql": {Data: []byte("SELECT -1")},
		"readme.md":       {Data: []byte("x")},
		"abc_up.sql":      {Data: []byte("bad version")},
	}

	t.Run("按版本排序", func(t *testing.T) {
		ups, err := discover(fsys, "up")
		require.NoError(t, err)
		require.Len(t, ups, 2)
		assert.Equal(t, int64(1), ups[0].Version)
		assert.Equal(t, int64(2), ups[1].Version)
	})

	t.Run("回滚脚本", func(t *testing.T) {
		downs, err := discover(fsys, "down")
		require.NoError(t, err)
		require.Len(t, downs, 1)
		assert.Equal(t, "0001_a_down.sql", downs[0].Path)
	})

	t.Run("重复版本报错", func(t *testing.T) {
		dup := fstest.MapFS{
			"0001_a_up.sql": {Data: []byte("1")},
			"0001_b_up.sql": {Data: []byte("1")},
		}
		_, err := discover(dup, "up")
		assert.Error(t, err)
	})
}

func TestPending(t *testing.T) {
	r := Runner{FS: fstest.MapFS{
		"0001_a_up.sql": {Data: []byte("1")},
		"0002_b_up.sql": {Data: []byte("2")},
	}}
	got, err := r.Pending(map[int64]bool{1: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, got)

	_, err = Runner{}.Pending(nil)
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	r := Runner{FS: db.Migrations}
	got, err := r.Pending(nil)
	require.NoError(t, err)
	assert.Contains(t, got, int64(1))
}
