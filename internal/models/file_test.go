package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileListUnmarshal(t *testing.T) {
	data := `[
		{"name": "/file1", "size": 1234, "createtime": 1274439603, "deletetime": 1305975603},
		{"name": "/file2", "size": 5678, "createtime": 1274526004, "deletetime": 1306062004}
	]`

	var items []FileResponse
	require.NoError(t, json.Unmarshal([]byte(data), &items))
	require.Len(t, items, 2)

	first := items[0].Details()
	assert.Equal(t, "/file1", first.URI)
	assert.Equal(t, int64(1234), first.Size)
	assert.Equal(t, time.Date(2010, time.May, 21, 11, 0, 3, 0, time.UTC), first.CreateTime)
	assert.Equal(t, time.Date(2011, time.May, 21, 11, 0, 3, 0, time.UTC), first.DeleteTime)

	second := items[1].Details()
	assert.Equal(t, "/file2", second.URI)
	assert.Equal(t, int64(5678), second.Size)
	assert.Equal(t, int64(1274526004), second.CreateTime.Unix())
	assert.Equal(t, int64(1306062004), second.DeleteTime.Unix())
}

func TestFileDetailsString(t *testing.T) {
	f := FileResponse{Name: "/previously-uploaded-file", Size: 1947648, CreateTime: 1299076727, DeleteTime: 1299681527}.Details()
	assert.Equal(t,
		`FileDetails(uri="/previously-uploaded-file",size=1947648,createTime=1299076727,deleteTime=1299681527)`,
		f.String())
}
