// Package portfolio stores portfolio case studies per business stream,
// attaches customer reviews to them under the review-write authorization
// rule, derives ratings on read and keeps item images in sync with the
// asset store.
package portfolio

import (
	"time"

	"github.com/brandworks/portfolio-engine/pkg/database"
)

// ItemRecord is one portfolio case study.
type ItemRecord struct {
	ID               string              `gorm:"primaryKey;column:id;type:varchar(36)"`
	Title            string              `gorm:"column:title;not null"`
	Category         string              `gorm:"column:category"`
	Stream           string              `gorm:"column:stream;index:idx_portfolio_items_stream_created,priority:1;not null"`
	ShortDescription string              `gorm:"column:short_description"`
	LongDescription  string              `gorm:"column:long_description;type:text"`
	ServiceType      string              `gorm:"column:service_type"`
	Image            string              `gorm:"column:image;type:varchar(1024)"`
	EligibleEmails   database.StringList `gorm:"column:eligible_emails;type:text;not null"`
	CreatedAt        time.Time           `gorm:"column:created_at;index:idx_portfolio_items_stream_created,priority:2"`
	UpdatedAt        time.Time           `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (ItemRecord) TableName() string { return "portfolio_items" }

// ReviewRecord is one customer review. The reviewer's display name and email
// are captured when the review is written.
type ReviewRecord struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	ItemID        string    `gorm:"column:item_id;type:varchar(36);not null;uniqueIndex:idx_portfolio_reviews_item_reviewer,priority:1"`
	ReviewerID    string    `gorm:"column:reviewer_id;not null;uniqueIndex:idx_portfolio_reviews_item_reviewer,priority:2"`
	ReviewerName  string    `gorm:"column:reviewer_name"`
	ReviewerEmail string    `gorm:"column:reviewer_email;index"`
	Rating        int       `gorm:"column:rating;not null;check:chk_portfolio_reviews_rating,rating >= 1 AND rating <= 5"`
	Comment       string    `gorm:"column:comment;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;index"`

	Item *ItemRecord `gorm:"foreignKey:ItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the GORM table name.
func (ReviewRecord) TableName() string { return "portfolio_reviews" }

// ReviewWithContext is a review joined with its parent item for the
// administrative audit listing.
type ReviewWithContext struct {
	ReviewRecord
	ItemTitle  string `gorm:"column:item_title"`
	ItemStream string `gorm:"column:item_stream"`
}

// ItemFields are the writable attributes of an item at creation.
type ItemFields struct {
	Title            string   `json:"title"`
	Category         string   `json:"category"`
	Stream           string   `json:"stream"`
	ShortDescription string   `json:"shortDescription"`
	LongDescription  string   `json:"longDescription"`
	ServiceType      string   `json:"serviceType"`
	EligibleEmails   []string `json:"eligibleEmails"`
}

// ItemPatch is a partial update. Nil fields are left unchanged.
type ItemPatch struct {
	Title            *string   `json:"title,omitempty"`
	Category         *string   `json:"category,omitempty"`
	Stream           *string   `json:"stream,omitempty"`
	ShortDescription *string   `json:"shortDescription,omitempty"`
	LongDescription  *string   `json:"longDescription,omitempty"`
	ServiceType      *string   `json:"serviceType,omitempty"`
	Image            *string   `json:"image,omitempty"`
	EligibleEmails   *[]string `json:"eligibleEmails,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.Title == nil && p.Category == nil && p.Stream == nil &&
		p.ShortDescription == nil && p.LongDescription == nil &&
		p.ServiceType == nil && p.Image == nil && p.EligibleEmails == nil
}

// columns returns the column updates for the patch.
func (p ItemPatch) columns() map[string]any {
	cols := map[string]any{}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Category != nil {
		cols["category"] = *p.Category
	}
	if p.Stream != nil {
		cols["stream"] = *p.Stream
	}
	if p.ShortDescription != nil {
		cols["short_description"] = *p.ShortDescription
	}
	if p.LongDescription != nil {
		cols["long_description"] = *p.LongDescription
	}
	if p.ServiceType != nil {
		cols["service_type"] = *p.ServiceType
	}
	if p.Image != nil {
		cols["image"] = *p.Image
	}
	if p.EligibleEmails != nil {
		cols["eligible_emails"] = database.StringList(*p.EligibleEmails)
	}
	return cols
}
