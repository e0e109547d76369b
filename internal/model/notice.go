package model

import "time"

type Notice struct {
	ID            string      `json:"id"`
	AuthorID      string      `json:"author_id"`
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	ImageURL      string      `json:"image_url"`
	IsPinned      bool        `json:"is_pinned"`
	LikesCount    int         `json:"likes_count"`
	CommentsCount int         `json:"comments_count"`
	CreatedAt     time.Time   `json:"created_at"`
	Author        *UserPublic `json:"author,omitempty"`
}

type NoticeComment struct {
	ID        string      `json:"id"`
	NoticeID  string      `json:"notice_id"`
	AuthorID  string      `json:"author_id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Author    *UserPublic `json:"author,omitempty"`
}
