package main

import "time"

// Response shapes of the portfolio API.

type item struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Category         string    `json:"category,omitempty"`
	Stream           string    `json:"stream"`
	ShortDescription string    `json:"shortDescription,omitempty"`
	LongDescription  string    `json:"longDescription,omitempty"`
	ServiceType      string    `json:"serviceType,omitempty"`
	Image            string    `json:"image,omitempty"`
	State            string    `json:"state"`
	EligibleEmails   []string  `json:"eligibleEmails,omitempty"`
	Rating           float64   `json:"rating"`
	ReviewCount      int       `json:"reviewCount"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type review struct {
	ID            string    `json:"id"`
	ItemID        string    `json:"itemId"`
	ReviewerID    string    `json:"reviewerId"`
	ReviewerName  string    `json:"reviewerName,omitempty"`
	ReviewerEmail string    `json:"reviewerEmail,omitempty"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"createdAt"`
	ItemTitle     string    `json:"itemTitle,omitempty"`
	ItemStream    string    `json:"itemStream,omitempty"`
}

type itemDetail struct {
	item
	Reviews []review `json:"reviews"`
}

type itemList struct {
	Stream string `json:"stream,omitempty"`
	Items  []item `json:"items"`
	Size   int    `json:"size"`
}

type reviewList struct {
	Reviews []review `json:"reviews"`
	Size    int      `json:"size"`
}

type cleanupResult struct {
	AssetRef    string `json:"assetRef,omitempty"`
	Attempted   bool   `json:"attempted"`
	Failed      bool   `json:"failed"`
	Error       string `json:"error,omitempty"`
	RetryQueued bool   `json:"retryQueued"`
	RetryJobID  string `json:"retryJobId,omitempty"`
}

type imageResult struct {
	Image   string        `json:"image"`
	State   string        `json:"state"`
	Cleanup cleanupResult `json:"cleanup"`
}

type eligibility struct {
	ItemID          string `json:"itemId"`
	Email           string `json:"email"`
	Listed          bool   `json:"listed"`
	AlreadyReviewed bool   `json:"alreadyReviewed"`
	CanReview       bool   `json:"canReview"`
}

type streamDef struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName,omitempty"`
	Paths       []string `json:"paths,omitempty"`
}

type auditEvent struct {
	ID           string         `json:"id"`
	Stream       string         `json:"stream,omitempty"`
	EventType    string         `json:"eventType"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType,omitempty"`
	ResourceIDs  []string       `json:"resourceIds,omitempty"`
	Outcome      string         `json:"outcome"`
	Reason       string         `json:"reason,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type auditEventList struct {
	Events        []auditEvent `json:"events"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
	TotalSize     int          `json:"totalSize"`
}

type cleanupJob struct {
	ID           string    `json:"id"`
	AssetRef     string    `json:"assetRef"`
	ItemID       string    `json:"itemId,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	RequestedBy  string    `json:"requestedBy"`
	RequestedAt  time.Time `json:"requestedAt"`
	State        string    `json:"state"`
	AttemptCount int       `json:"attemptCount"`
	LastError    string    `json:"lastError,omitempty"`
}

type cleanupJobList struct {
	Jobs          []cleanupJob `json:"jobs"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
	TotalSize     int          `json:"totalSize"`
}
