package models

import (
	"time"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"

	DefaultRatingsAverage = 4.5
)

// Tour is a listing record. JSON fields are omitted when empty so that a
// projected read only renders the selected fields.
type Tour struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name,omitempty"`
	Slug            string             `bson:"slug" json:"slug,omitempty"`
	Duration        int                `bson:"duration" json:"duration,omitempty"`
	MaxGroupSize    int                `bson:"maxGroupSize" json:"maxGroupSize,omitempty"`
	Difficulty      string             `bson:"difficulty" json:"difficulty,omitempty"`
	RatingsAverage  float64            `bson:"ratingsAverage" json:"ratingsAverage,omitempty"`
	RatingsQuantity int                `bson:"ratingsQuantity" json:"ratingsQuantity,omitempty"`
	Price           float64            `bson:"price" json:"price,omitempty"`
	PriceDiscount   *float64           `bson:"priceDiscount,omitempty" json:"priceDiscount,omitempty"`
	Summary         string             `bson:"summary" json:"summary,omitempty"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string             `bson:"imageCover" json:"imageCover,omitempty"`
	Images          []string           `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt       *time.Time         `bson:"createdAt" json:"createdAt,omitempty"`
	StartDates      []time.Time        `bson:"startDates,omitempty" json:"startDates,omitempty"`
	SecretTour      bool               `bson:"secretTour" json:"secretTour,omitempty"`
}

// Slugify derives the URL slug stored alongside the name.
func Slugify(name string) string {
	return slug.Make(name)
}

// TourInput is the body of POST /tours.
type TourInput struct {
	Name            string      `json:"name" binding:"required,min=10,max=40"`
	Duration        int         `json:"duration" binding:"required,gt=0"`
	MaxGroupSize    int         `json:"maxGroupSize" binding:"required,gt=0"`
	Difficulty      string      `json:"difficulty" binding:"required,oneof=easy medium difficult"`
	RatingsAverage  *float64    `json:"ratingsAverage" binding:"omitempty,gte=0,lte=5"`
	RatingsQuantity int         `json:"ratingsQuantity" binding:"gte=0"`
	Price           float64     `json:"price" binding:"required,gt=0"`
	PriceDiscount   *float64    `json:"priceDiscount" binding:"omitempty,gte=0,ltfield=Price"`
	Summary         string      `json:"summary" binding:"required"`
	Description     string      `json:"description"`
	ImageCover      string      `json:"imageCover" binding:"required"`
	Images          []string    `json:"images"`
	StartDates      []time.Time `json:"startDates"`
	SecretTour      bool        `json:"secretTour"`
}

// Tour builds the stored record, applying defaults and the slug.
func (in TourInput) Tour(now time.Time) Tour {
	rating := DefaultRatingsAverage
	if in.RatingsAverage != nil {
		rating = *in.RatingsAverage
	}
	created := now.UTC()
	return Tour{
		Name:            in.Name,
		Slug:            Slugify(in.Name),
		Duration:        in.Duration,
		MaxGroupSize:    in.MaxGroupSize,
		Difficulty:      in.Difficulty,
		RatingsAverage:  rating,
		RatingsQuantity: in.RatingsQuantity,
		Price:           in.Price,
		PriceDiscount:   in.PriceDiscount,
		Summary:         in.Summary,
		Description:     in.Description,
		ImageCover:      in.ImageCover,
		Images:          in.Images,
		CreatedAt:       &created,
		StartDates:      in.StartDates,
		SecretTour:      in.SecretTour,
	}
}

// TourPatch is the body of PATCH /tours/:id. Only present fields are
// validated and written.
type TourPatch struct {
	Name            *string      `json:"name,omitempty" binding:"omitempty,min=10,max=40"`
	Duration        *int         `json:"duration,omitempty" binding:"omitempty,gt=0"`
	MaxGroupSize    *int         `json:"maxGroupSize,omitempty" binding:"omitempty,gt=0"`
	Difficulty      *string      `json:"difficulty,omitempty" binding:"omitempty,oneof=easy medium difficult"`
	RatingsAverage  *float64     `json:"ratingsAverage,omitempty" binding:"omitempty,gte=0,lte=5"`
	RatingsQuantity *int         `json:"ratingsQuantity,omitempty" binding:"omitempty,gte=0"`
	Price           *float64     `json:"price,omitempty" binding:"omitempty,gt=0"`
	PriceDiscount   *float64     `json:"priceDiscount,omitempty" binding:"omitempty,gte=0"`
	Summary         *string      `json:"summary,omitempty" binding:"omitempty,min=1"`
	Description     *string      `json:"description,omitempty"`
	ImageCover      *string      `json:"imageCover,omitempty" binding:"omitempty,min=1"`
	Images          *[]string    `json:"images,omitempty"`
	StartDates      *[]time.Time `json:"startDates,omitempty"`
	SecretTour      *bool        `json:"secretTour,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TourPatch) Empty() bool {
	return len(p.Fields()) == 0
}

// Fields returns the stored field names and values the patch sets. A new
// name also rewrites the slug.
func (p TourPatch) Fields() map[string]any {
	set := map[string]any{}
	if p.Name != nil {
		set["name"] = *p.Name
		set["slug"] = Slugify(*p.Name)
	}
	if p.Duration != nil {
		set["duration"] = *p.Duration
	}
	if p.MaxGroupSize != nil {
		set["maxGroupSize"] = *p.MaxGroupSize
	}
	if p.Difficulty != nil {
		set["difficulty"] = *p.Difficulty
	}
	if p.RatingsAverage != nil {
		set["ratingsAverage"] = *p.RatingsAverage
	}
	if p.RatingsQuantity != nil {
		set["ratingsQuantity"] = *p.RatingsQuantity
	}
	if p.Price != nil {
		set["price"] = *p.Price
	}
	if p.PriceDiscount != nil {
		set["priceDiscount"] = *p.PriceDiscount
	}
	if p.Summary != nil {
		set["summary"] = *p.Summary
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.ImageCover != nil {
		set["imageCover"] = *p.ImageCover
	}
	if p.Images != nil {
		set["images"] = *p.Images
	}
	if p.StartDates != nil {
		set["startDates"] = *p.StartDates
	}
	if p.SecretTour != nil {
		set["secretTour"] = *p.SecretTour
	}
	return set
}

// TourStats is one row of the per-difficulty aggregate.
type TourStats struct {
	Difficulty string  `bson:"_id" json:"_id"`
	NumTours   int     `bson:"numTours" json:"numTours"`
	NumRatings int     `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

// MonthlyPlan is one month of tour starts within a year.
type MonthlyPlan struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int      `bson:"numTourStarts" json:"numTourStarts"`
	Tours         []string `bson:"tours" json:"tours"`
}
