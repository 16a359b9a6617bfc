package flow

import "time"

// CommentKind is the media type of a board comment.
type CommentKind string

const (
	CommentText  CommentKind = "text"
	CommentImage CommentKind = "image"
	CommentVideo CommentKind = "video"
)

// Comment is an editor annotation pinned onto the board canvas.
type Comment struct {
	ID          string      `json:"id" yaml:"id"`
	Author      string      `json:"author,omitempty" yaml:"author,omitempty"`
	Content     string      `json:"content" yaml:"content"`
	CommentType CommentKind `json:"comment_type" yaml:"comment_type"`
	Timestamp   int64       `json:"timestamp" yaml:"timestamp"`
	Coordinates [3]float64  `json:"coordinates" yaml:"coordinates"`
	Width       float64     `json:"width,omitempty" yaml:"width,omitempty"`
	Height      float64     `json:"height,omitempty" yaml:"height,omitempty"`
	Layer       string      `json:"layer,omitempty" yaml:"layer,omitempty"`
	Color       string      `json:"color,omitempty" yaml:"color,omitempty"`
	ZIndex      int         `json:"z_index,omitempty" yaml:"z_index,omitempty"`
}

// NewComment creates a text comment with a fresh ID.
func NewComment(author, content string) *Comment {
	return &Comment{
		ID:          NewID(),
		Author:      author,
		Content:     content,
		CommentType: CommentText,
		Timestamp:   time.Now().UnixMicro(),
	}
}

// Clone returns a copy of the comment.
func (c *Comment) Clone() *Comment {
	out := *c
	return &out
}
