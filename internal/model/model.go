// Package model defines the domain types used across the application.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// PostID identifies a post across every ingestion source.
// The server sends integers; the client treats the value as opaque.
type PostID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *PostID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode post id: %w", err)
		}
		*id = PostID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode post id: %w", err)
	}
	*id = PostID(n.String())
	return nil
}

// DecodeMsgpack accepts integer and string ids in binary push frames.
func (id *PostID) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterface()
	if err != nil {
		return fmt.Errorf("decode post id: %w", err)
	}
	switch x := v.(type) {
	case nil:
		*id = ""
	case string:
		*id = PostID(x)
	case int64:
		*id = PostID(strconv.FormatInt(x, 10))
	case uint64:
		*id = PostID(strconv.FormatUint(x, 10))
	case int8, int16, int32, uint8, uint16, uint32:
		*id = PostID(fmt.Sprint(x))
	default:
		return fmt.Errorf("decode post id: unsupported type %T", v)
	}
	return nil
}

// Post is a single entry of the feed as served by the posts API.
type Post struct {
	ID        PostID `json:"id" msgpack:"id"`
	Username  string `json:"username" msgpack:"username"`
	Content   string `json:"content" msgpack:"content"`
	CreatedAt string `json:"created_at" msgpack:"created_at"`
	ImagePath string `json:"image_path,omitempty" msgpack:"image_path"`
}

// HasImage reports whether the post carries an image attachment.
func (p Post) HasImage() bool {
	return p.ImagePath != ""
}

// SizeVariant is a presentation hint for a rendered post.
type SizeVariant string

// Supported size variants.
const (
	SizeDefault SizeVariant = "default"
	SizeWide    SizeVariant = "wide"
)

// InsertMode defines where a rendered post goes in the view.
type InsertMode string

// Supported insert modes.
const (
	Prepend InsertMode = "prepend"
	Append  InsertMode = "append"
)

// Source names the input a post was discovered through.
type Source string

// Ingestion sources.
const (
	SourceInitial Source = "initial"
	SourcePush    Source = "push"
	SourcePoll    Source = "poll"
	SourceSubmit  Source = "submit"
)

// SubmitForm is the payload of a new post.
type SubmitForm struct {
	Username string `validate:"max=100"`
	Content  string
	// ImageName and Image are optional; both must be set to attach a file.
	ImageName string
	Image     io.Reader
}

// HasImage reports whether the form carries an image file.
func (f SubmitForm) HasImage() bool {
	return f.Image != nil && f.ImageName != ""
}
