package models

import (
	"fmt"
	"time"

	"github.com/fjacquet/restbackup/internal/utils"
)

// FileDetails describes a file stored in a backup account.
type FileDetails struct {
	// URI is the location of the file, e.g. "/files.20100521.tar.gz".
	URI string
	// Size is the file size in bytes.
	Size int64
	// CreateTime is when the file was uploaded.
	CreateTime time.Time
	// DeleteTime is when the service will delete the file automatically.
	DeleteTime time.Time
}

// String returns a diagnostic form such as
// FileDetails(uri="/previously-uploaded-file",size=1947648,createTime=1299076727,deleteTime=1299681527).
func (f FileDetails) String() string {
	return fmt.Sprintf("FileDetails(uri=%q,size=%d,createTime=%d,deleteTime=%d)",
		f.URI, f.Size, f.CreateTime.Unix(), f.DeleteTime.Unix())
}

// FileResponse is the JSON shape of one entry of the Backup API file listing.
// Times are epoch seconds.
type FileResponse struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	CreateTime int64  `json:"createtime"`
	DeleteTime int64  `json:"deletetime"`
}

// Details converts the listing entry into FileDetails.
func (r FileResponse) Details() FileDetails {
	return FileDetails{
		URI:        r.Name,
		Size:       r.Size,
		CreateTime: utils.EpochToTime(r.CreateTime),
		DeleteTime: utils.EpochToTime(r.DeleteTime),
	}
}
