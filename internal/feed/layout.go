package feed

import "feedsync/internal/model"

// LayoutHint returns the size variant of the post at index within its
// rendered batch: image posts are wide every 5th slot, text posts every 7th.
func LayoutHint(post model.Post, index int) model.SizeVariant {
	if post.HasImage() && index%5 == 0 {
		return model.SizeWide
	}
	if !post.HasImage() && index%7 == 0 {
		return model.SizeWide
	}
	return model.SizeDefault
}
