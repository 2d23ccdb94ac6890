package models

import "time"

// Post is a short text message owned by exactly one User.
// Posts are never updated; they disappear only when their author is deleted.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Text      string    `gorm:"size:280;not null" json:"text"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

// FeedOrder is the display order of posts: newest first, insertion order on ties.
const FeedOrder = "created_at DESC, id ASC"

// FeedPost is the wire shape of a post in the feed.
type FeedPost struct {
	ID        uint        `json:"id"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
	Author    *PublicUser `json:"author,omitempty"`
}

// ToFeedPost converts a post for display, dropping the author's email.
func (p *Post) ToFeedPost() FeedPost {
	fp := FeedPost{ID: p.ID, Text: p.Text, CreatedAt: p.CreatedAt}
	if p.Author != nil {
		pub := p.Author.Public()
		fp.Author = &pub
	}
	return fp
}
