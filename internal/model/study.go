package model

import "time"

// Study is a bible study (EBD) article.
type Study struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Theme         string      `json:"theme"`
	BaseText      string      `json:"base_text"`
	Content       string      `json:"content"`
	CoverURL      string      `json:"cover_url"`
	AuthorID      string      `json:"author_id"`
	LikesCount    int         `json:"likes_count"`
	CommentsCount int         `json:"comments_count"`
	CreatedAt     time.Time   `json:"created_at"`
	Author        *UserPublic `json:"author,omitempty"`
}

type StudyComment struct {
	ID        string      `json:"id"`
	StudyID   string      `json:"study_id"`
	AuthorID  string      `json:"author_id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Author    *UserPublic `json:"author,omitempty"`
}
