package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Zacison/natours-backend/models"
	"github.com/Zacison/natours-backend/query"
	"github.com/Zacison/natours-backend/utils"
)

const (
	ToursCollection = "tours"

	tourNotFound = "No tour found with that ID"

	// StatsMinRating is the ratings floor for the difficulty aggregate.
	StatsMinRating = 4.5
	monthlyPlanMax = 12
)

// tourSchema types filter values for the stored tour fields.
var tourSchema = query.Schema{
	"name":            query.String,
	"slug":            query.String,
	"difficulty":      query.String,
	"summary":         query.String,
	"description":     query.String,
	"imageCover":      query.String,
	"images":          query.String,
	"duration":        query.Number,
	"maxGroupSize":    query.Number,
	"ratingsAverage":  query.Number,
	"ratingsQuantity": query.Number,
	"price":           query.Number,
	"priceDiscount":   query.Number,
	"secretTour":      query.Bool,
}

// TourRepository defines the tour persistence operations. Reads never
// return secret tours; writes by id are not scoped.
type TourRepository interface {
	Find(ctx context.Context, q query.Query) ([]models.Tour, error)
	FindByID(ctx context.Context, id string) (*models.Tour, error)
	Create(ctx context.Context, tour *models.Tour) error
	Update(ctx context.Context, id string, patch models.TourPatch) (*models.Tour, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) ([]models.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]models.MonthlyPlan, error)
}

type tourRepository struct {
	col *mongo.Collection
}

func NewTourRepository(db *mongo.Database) TourRepository {
	return &tourRepository{col: db.Collection(ToursCollection)}
}

// VisibleTours scopes a read filter to non-secret tours.
func VisibleTours(filter bson.M) bson.M {
	scoped := bson.M{}
	for k, v := range filter {
		scoped[k] = v
	}
	scoped["secretTour"] = bson.M{"$ne": true}
	return scoped
}

// visiblePipeline prepends the secret-tour exclusion to an aggregation.
func visiblePipeline(stages ...bson.D) mongo.Pipeline {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"secretTour": bson.M{"$ne": true}}}}}
	return append(pipeline, stages...)
}

func (r *tourRepository) Find(ctx context.Context, q query.Query) ([]models.Tour, error) {
	cur, err := r.col.Find(ctx, VisibleTours(q.MongoFilterFor(tourSchema)), q.FindOptions())
	if err != nil {
		return nil, translate(err, tourNotFound, "find tours")
	}
	tours := []models.Tour{}
	if err := cur.All(ctx, &tours); err != nil {
		return nil, translate(err, tourNotFound, "decode tours")
	}
	return tours, nil
}

func (r *tourRepository) FindByID(ctx context.Context, id string) (*models.Tour, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var tour models.Tour
	if err := r.col.FindOne(ctx, VisibleTours(bson.M{"_id": oid})).Decode(&tour); err != nil {
		return nil, translate(err, tourNotFound, "find tour")
	}
	return &tour, nil
}

func (r *tourRepository) Create(ctx context.Context, tour *models.Tour) error {
	if tour.ID.IsZero() {
		tour.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, tour); err != nil {
		return translate(err, tourNotFound, "insert tour")
	}
	return nil
}

// Update applies patch and returns the stored result. An empty patch
// returns the document unchanged. A discount sent without a price must stay
// below the stored price; the check is part of the update filter.
func (r *tourRepository) Update(ctx context.Context, id string, patch models.TourPatch) (*models.Tour, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var tour models.Tour
	if patch.Empty() {
		err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&tour)
		if err != nil {
			return nil, translate(err, tourNotFound, "find tour")
		}
		return &tour, nil
	}

	filter := bson.M{"_id": oid}
	guarded := patch.PriceDiscount != nil && patch.Price == nil
	if guarded {
		filter["price"] = bson.M{"$gt": *patch.PriceDiscount}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M(patch.Fields())}, opts).Decode(&tour)
	if guarded && errors.Is(err, mongo.ErrNoDocuments) {
		return nil, r.discountRejected(ctx, oid, *patch.PriceDiscount)
	}
	if err != nil {
		return nil, translate(err, tourNotFound, "update tour")
	}
	return &tour, nil
}

// discountRejected tells a missing tour apart from one whose price is not
// above the requested discount.
func (r *tourRepository) discountRejected(ctx context.Context, oid primitive.ObjectID, discount float64) error {
	opts := options.FindOne().SetProjection(bson.M{"price": 1})
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}, opts).Err(); err != nil {
		return translate(err, tourNotFound, "find tour")
	}
	return utils.ValidationFailed([]string{fmt.Sprintf("priceDiscount (%v) should be below price", discount)}, nil)
}

func (r *tourRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	var deleted models.Tour
	if err := r.col.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&deleted); err != nil {
		return translate(err, tourNotFound, "delete tour")
	}
	return nil
}

// Stats groups highly rated tours by upper-cased difficulty, cheapest
// average price first.
func (r *tourRepository) Stats(ctx context.Context) ([]models.TourStats, error) {
	pipeline := visiblePipeline(
		bson.D{{Key: "$match", Value: bson.M{"ratingsAverage": bson.M{"$gte": StatsMinRating}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$toUpper": "$difficulty"}},
			{Key: "numTours", Value: bson.M{"$sum": 1}},
			{Key: "numRatings", Value: bson.M{"$sum": "$ratingsQuantity"}},
			{Key: "avgRating", Value: bson.M{"$avg": "$ratingsAverage"}},
			{Key: "avgPrice", Value: bson.M{"$avg": "$price"}},
			{Key: "minPrice", Value: bson.M{"$min": "$price"}},
			{Key: "maxPrice", Value: bson.M{"$max": "$price"}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: 1}}}},
	)

	stats := []models.TourStats{}
	if err := r.aggregate(ctx, pipeline, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// MonthlyPlan counts tour starts per month of year, busiest month first.
func (r *tourRepository) MonthlyPlan(ctx context.Context, year int) ([]models.MonthlyPlan, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	pipeline := visiblePipeline(
		bson.D{{Key: "$unwind", Value: "$startDates"}},
		bson.D{{Key: "$match", Value: bson.M{"startDates": bson.M{"$gte": from, "$lt": to}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$month": "$startDates"}},
			{Key: "numTourStarts", Value: bson.M{"$sum": 1}},
			{Key: "tours", Value: bson.M{"$push": "$name"}},
		}}},
		bson.D{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		bson.D{{Key: "$project", Value: bson.M{"_id": 0}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}, {Key: "month", Value: 1}}}},
		bson.D{{Key: "$limit", Value: monthlyPlanMax}},
	)

	plan := []models.MonthlyPlan{}
	if err := r.aggregate(ctx, pipeline, &plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *tourRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return translate(err, tourNotFound, "aggregate tours")
	}
	if err := cur.All(ctx, out); err != nil {
		return translate(err, tourNotFound, "decode aggregate")
	}
	return nil
}
