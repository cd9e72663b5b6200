// Package types provides the request shapes accepted by the media-extractor API.
package types

import (
	"github.com/go-playground/validator/v10"
)

// MaxBatchURLs caps the number of URLs in a single batch request.
const MaxBatchURLs = 50

// MaxRecentLimit caps the recent-images listing.
const MaxRecentLimit = 500

// ResolveRequest asks for the main image of HTML the caller already fetched.
type ResolveRequest struct {
	URL  string `json:"url" validate:"required,url"`
	HTML string `json:"html" validate:"required"`
}

// BatchRequest asks for the main images of several pages.
type BatchRequest struct {
	URLs        []string `json:"urls" validate:"required,min=1,max=50,dive,required,http_url"`
	Concurrency int      `json:"concurrency,omitempty" validate:"omitempty,min=1,max=16"`
}

// FeedRequest asks for the main images of the pages a feed links to.
type FeedRequest struct {
	FeedURL     string `json:"feed_url" validate:"required,http_url"`
	Limit       int    `json:"limit,omitempty" validate:"omitempty,min=1,max=50"`
	Concurrency int    `json:"concurrency,omitempty" validate:"omitempty,min=1,max=16"`
}

// RecentImagesQuery is the query of the recent-images listing.
type RecentImagesQuery struct {
	Limit int `validate:"gte=0,lte=500"`
}

// Validate validates the ResolveRequest using the validator.
func (r *ResolveRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the BatchRequest using the validator.
func (r *BatchRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the FeedRequest using the validator.
func (r *FeedRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the RecentImagesQuery using the validator.
func (q *RecentImagesQuery) Validate() error {
	validate := validator.New()
	return validate.Struct(q)
}
