package sitecontent

import "io"

// PutSlotRequest contains parameters for writing a slot
type PutSlotRequest struct {
	Page   string
	Key    string
	Patch  Patch
	Assets []AssetUpload
}

// AssetUpload is an uploaded binary destined for an image field.
// The stored reference replaces any value for Field in the patch.
type AssetUpload struct {
	Field    Field
	FileName string
	Reader   io.Reader
}
