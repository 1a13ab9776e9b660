package portfolio

import "time"

// ItemView is an item as returned to callers, with its derived state and
// rating. EligibleEmails is only populated on administrative reads.
type ItemView struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Category         string    `json:"category,omitempty"`
	Stream           string    `json:"stream"`
	ShortDescription string    `json:"shortDescription,omitempty"`
	LongDescription  string    `json:"longDescription,omitempty"`
	ServiceType      string    `json:"serviceType,omitempty"`
	Image            string    `json:"image,omitempty"`
	State            State     `json:"state"`
	EligibleEmails   []string  `json:"eligibleEmails,omitempty"`
	Rating           float64   `json:"rating"`
	ReviewCount      int       `json:"reviewCount"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ReviewView is a review as returned to callers. ReviewerEmail is only
// populated on administrative reads.
type ReviewView struct {
	ID            string    `json:"id"`
	ItemID        string    `json:"itemId"`
	ReviewerID    string    `json:"reviewerId"`
	ReviewerName  string    `json:"reviewerName,omitempty"`
	ReviewerEmail string    `json:"reviewerEmail,omitempty"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ItemDetail is an item with its reviews, oldest first.
type ItemDetail struct {
	ItemView
	Reviews []ReviewView `json:"reviews"`
}

// AuditReview is a review joined with its item for the administrative
// listing.
type AuditReview struct {
	ReviewView
	ItemTitle  string `json:"itemTitle"`
	ItemStream string `json:"itemStream"`
}

// Eligibility reports whether an email may review an item.
type Eligibility struct {
	ItemID          string `json:"itemId"`
	Email           string `json:"email"`
	Listed          bool   `json:"listed"`
	AlreadyReviewed bool   `json:"alreadyReviewed"`
	CanReview       bool   `json:"canReview"`
}

func newItemView(rec *ItemRecord, rating Rating, private bool) ItemView {
	v := ItemView{
		ID:               rec.ID,
		Title:            rec.Title,
		Category:         rec.Category,
		Stream:           rec.Stream,
		ShortDescription: rec.ShortDescription,
		LongDescription:  rec.LongDescription,
		ServiceType:      rec.ServiceType,
		Image:            rec.Image,
		State:            StateOf(rec),
		Rating:           rating.Average,
		ReviewCount:      rating.Count,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
	if private {
		v.EligibleEmails = append([]string{}, rec.EligibleEmails...)
	}
	return v
}

func newReviewView(rec *ReviewRecord, private bool) ReviewView {
	v := ReviewView{
		ID:           rec.ID,
		ItemID:       rec.ItemID,
		ReviewerID:   rec.ReviewerID,
		ReviewerName: rec.ReviewerName,
		Rating:       rec.Rating,
		Comment:      rec.Comment,
		CreatedAt:    rec.CreatedAt,
	}
	if private {
		v.ReviewerEmail = rec.ReviewerEmail
	}
	return v
}
