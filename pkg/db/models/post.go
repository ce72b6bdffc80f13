package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Post is the unit of gated content. The media itself lives in the blob store
// as `[12-byte IV][ciphertext][16-byte tag]`; the per-post content key is
// stored here wrapped under the process master key as three base64 fields.
type Post struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CreatorID uuid.UUID `gorm:"column:creator_id;type:uuid;not null;index"`
	Title     string    `gorm:"column:title;not null"`

	BasePrice            decimal.Decimal  `gorm:"column:base_price;type:numeric(20,6);not null"`
	BuyoutPrice          *decimal.Decimal `gorm:"column:buyout_price;type:numeric(20,6)"`
	IsFree               bool             `gorm:"column:is_free;not null;default:false"`
	AcceptedCurrencies   pq.StringArray   `gorm:"column:accepted_currencies;type:text[];not null"`
	MaxInvestorSlots     int              `gorm:"column:max_investor_slots;not null;default:10"`
	InvestorSharePercent int              `gorm:"column:investor_share_percent;not null;default:0"`
	CommentsGated        bool             `gorm:"column:comments_gated;not null;default:false"`
	CommentFee           decimal.Decimal  `gorm:"column:comment_fee;type:numeric(20,6);not null;default:0"`

	ViewCount     int64      `gorm:"column:view_count;not null;default:0"`
	UpvoteCount   int64      `gorm:"column:upvote_count;not null;default:0"`
	DownvoteCount int64      `gorm:"column:downvote_count;not null;default:0"`
	IsViral       bool       `gorm:"column:is_viral;not null;default:false"`
	ViralAt       *time.Time `gorm:"column:viral_detected_at"`

	MediaBlobKey     string `gorm:"column:media_blob_key;not null"`
	ThumbnailBlobKey string `gorm:"column:thumbnail_blob_key;not null"`

	EncryptedContentKey string `gorm:"column:encrypted_content_key;not null"`
	ContentKeyIV        string `gorm:"column:content_key_iv;not null"`
	ContentKeyTag       string `gorm:"column:content_key_tag;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// AcceptsCurrency reports whether the post accepts the given currency code.
func (p *Post) AcceptsCurrency(code string) bool {
	for _, accepted := range p.AcceptedCurrencies {
		if accepted == code {
			return true
		}
	}
	return false
}
