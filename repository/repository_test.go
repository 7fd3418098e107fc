package repository

import (
	"context"
	"net/url"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/Zacison/natours-backend/models"
	"github.com/Zacison/natours-backend/query"
	"github.com/Zacison/natours-backend/utils"
)

const dupEmailMsg = `E11000 duplicate key error collection: test.users index: email_1 dup key: { email: "jonas@example.com" }`

func wantKind(t *testing.T, err error, kind utils.ErrorKind) *utils.AppError {
	t.Helper()
	appErr, ok := utils.AsAppError(err)
	if !ok {
		t.Fatalf("error = %v, want AppError of kind %s", err, kind)
	}
	if appErr.Kind != kind {
		t.Fatalf("kind = %s, want %s (err %v)", appErr.Kind, kind, err)
	}
	return appErr
}

// =============================================================================
// Users
// =============================================================================

func TestUserRepository_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewUserRepository(mt.DB)

		user := &models.User{Name: "Jonas", Email: "Jonas@Example.com", Role: models.RoleUser}
		if err := repo.Create(context.Background(), user); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if user.ID.IsZero() {
			t.Error("Create() did not assign an ID")
		}
		if user.Email != "jonas@example.com" {
			t.Errorf("Email = %q, want lower-cased", user.Email)
		}
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: dupEmailMsg,
		}))
		repo := NewUserRepository(mt.DB)

		err := repo.Create(context.Background(), &models.User{Email: "jonas@example.com"})
		appErr := wantKind(t, err, utils.KindConflict)
		if appErr.StatusCode != 400 {
			t.Errorf("StatusCode = %d, want 400", appErr.StatusCode)
		}
		if want := `Duplicate field value: "jonas@example.com". Please use another value`; appErr.Message != want {
			t.Errorf("Message = %q, want %q", appErr.Message, want)
		}
	})
}

func TestUserRepository_FindByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Jonas"},
			{Key: "email", Value: "jonas@example.com"},
			{Key: "role", Value: "admin"},
		}))
		repo := NewUserRepository(mt.DB)

		user, err := repo.FindByID(context.Background(), id.Hex())
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if user.ID != id || user.Role != "admin" {
			t.Errorf("user = %+v", user)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch))
		repo := NewUserRepository(mt.DB)

		_, err := repo.FindByID(context.Background(), primitive.NewObjectID().Hex())
		wantKind(t, err, utils.KindNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)

		_, err := repo.FindByID(context.Background(), "not-an-id")
		appErr := wantKind(t, err, utils.KindValidation)
		if appErr.Message != "Invalid _id: not-an-id." {
			t.Errorf("Message = %q", appErr.Message)
		}
	})
}

func TestUserRepository_ConsumeResetToken(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("valid token", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "email", Value: "jonas@example.com"},
			{Key: "password", Value: "new-hash"},
		}}))
		repo := NewUserRepository(mt.DB)

		user, err := repo.ConsumeResetToken(context.Background(), "digest", now, "new-hash", now.Add(-time.Second))
		if err != nil {
			t.Fatalf("ConsumeResetToken() error = %v", err)
		}
		if user.ID != id {
			t.Errorf("ID = %v, want %v", user.ID, id)
		}

		cmd := mt.GetStartedEvent().Command
		if got := cmd.Lookup("query", "passwordResetToken").StringValue(); got != "digest" {
			t.Errorf("query hash = %q, want digest", got)
		}
		if _, err := cmd.LookupErr("query", "passwordResetExpires", "$gt"); err != nil {
			t.Errorf("query has no expiry bound: %v", err)
		}
		if _, err := cmd.LookupErr("update", "$unset", "passwordResetToken"); err != nil {
			t.Errorf("update does not clear the token: %v", err)
		}
	})

	mt.Run("already used or expired", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		repo := NewUserRepository(mt.DB)

		_, err := repo.ConsumeResetToken(context.Background(), "digest", now, "new-hash", now)
		appErr := wantKind(t, err, utils.KindValidation)
		if appErr.Message != "Token is invalid or has expired" {
			t.Errorf("Message = %q", appErr.Message)
		}
	})
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("matched", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		repo := NewUserRepository(mt.DB)

		if err := repo.UpdatePassword(context.Background(), primitive.NewObjectID(), "hash", time.Now()); err != nil {
			t.Fatalf("UpdatePassword() error = %v", err)
		}
	})

	mt.Run("no such user", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		repo := NewUserRepository(mt.DB)

		err := repo.UpdatePassword(context.Background(), primitive.NewObjectID(), "hash", time.Now())
		wantKind(t, err, utils.KindNotFound)
	})
}

// =============================================================================
// Tours
// =============================================================================

func TestVisibleTours(t *testing.T) {
	in := bson.M{"difficulty": "easy"}
	got := VisibleTours(in)

	if _, ok := in["secretTour"]; ok {
		t.Error("VisibleTours() mutated its input")
	}
	if got["difficulty"] != "easy" {
		t.Errorf("difficulty = %v, want easy", got["difficulty"])
	}
	ne, ok := got["secretTour"].(bson.M)
	if !ok || ne["$ne"] != true {
		t.Errorf("secretTour = %v, want {$ne: true}", got["secretTour"])
	}
}

func TestTourRepository_Find(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("scopes out secret tours", func(mt *mtest.T) {
		first := mtest.CreateCursorResponse(1, "test.tours", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "The Forest Hiker"}, {Key: "price", Value: 397.0}},
		)
		last := mtest.CreateCursorResponse(0, "test.tours", mtest.NextBatch)
		mt.AddMockResponses(first, last)
		repo := NewTourRepository(mt.DB)

		q, err := query.Parse(url.Values{"difficulty": {"easy"}, "fields": {"name,price"}, "limit": {"3"}}, 100)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		tours, err := repo.Find(context.Background(), q)
		if err != nil {
			t.Fatalf("Find() error = %v", err)
		}
		if len(tours) != 1 || tours[0].Name != "The Forest Hiker" {
			t.Fatalf("tours = %+v", tours)
		}

		cmd := mt.GetStartedEvent().Command
		if !cmd.Lookup("filter", "secretTour", "$ne").Boolean() {
			t.Error("filter does not exclude secret tours")
		}
		if got := cmd.Lookup("filter", "difficulty").StringValue(); got != "easy" {
			t.Errorf("filter difficulty = %q, want easy", got)
		}
		if got := cmd.Lookup("limit").AsInt64(); got != 3 {
			t.Errorf("limit = %d, want 3", got)
		}
	})
}

func TestTourRepository_FindByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.tours", mtest.FirstBatch))
		repo := NewTourRepository(mt.DB)

		_, err := repo.FindByID(context.Background(), primitive.NewObjectID().Hex())
		appErr := wantKind(t, err, utils.KindNotFound)
		if appErr.Message != "No tour found with that ID" {
			t.Errorf("Message = %q", appErr.Message)
		}

		cmd := mt.GetStartedEvent().Command
		if !cmd.Lookup("filter", "secretTour", "$ne").Boolean() {
			t.Error("findOne filter does not exclude secret tours")
		}
	})
}

func TestTourRepository_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deleted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "name", Value: "The Forest Hiker"},
		}}))
		repo := NewTourRepository(mt.DB)

		if err := repo.Delete(context.Background(), primitive.NewObjectID().Hex()); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		repo := NewTourRepository(mt.DB)

		err := repo.Delete(context.Background(), primitive.NewObjectID().Hex())
		wantKind(t, err, utils.KindNotFound)
	})
}

func TestTourRepository_Update_DiscountGuard(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	discount := 450.0
	patch := models.TourPatch{PriceDiscount: &discount}

	mt.Run("below stored price", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id}, {Key: "price", Value: 497.0}, {Key: "priceDiscount", Value: discount},
		}}))
		repo := NewTourRepository(mt.DB)

		tour, err := repo.Update(context.Background(), id.Hex(), patch)
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if tour.PriceDiscount == nil || *tour.PriceDiscount != discount {
			t.Errorf("PriceDiscount = %v", tour.PriceDiscount)
		}
		cmd := mt.GetStartedEvent().Command
		if got := cmd.Lookup("query", "price", "$gt").Double(); got != discount {
			t.Errorf("query price $gt = %v, want %v", got, discount)
		}
	})

	mt.Run("not below stored price", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.tours", mtest.FirstBatch, bson.D{{Key: "_id", Value: id}, {Key: "price", Value: 397.0}}),
		)
		repo := NewTourRepository(mt.DB)

		_, err := repo.Update(context.Background(), id.Hex(), patch)
		appErr := wantKind(t, err, utils.KindValidation)
		if want := "Invalid input data. priceDiscount (450) should be below price"; appErr.Message != want {
			t.Errorf("Message = %q, want %q", appErr.Message, want)
		}
	})

	mt.Run("missing tour", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.tours", mtest.FirstBatch),
		)
		repo := NewTourRepository(mt.DB)

		_, err := repo.Update(context.Background(), primitive.NewObjectID().Hex(), patch)
		wantKind(t, err, utils.KindNotFound)
	})

	mt.Run("price in the same patch", func(mt *mtest.T) {
		price := 500.0
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{{Key: "_id", Value: id}}}))
		repo := NewTourRepository(mt.DB)

		if _, err := repo.Update(context.Background(), id.Hex(), models.TourPatch{Price: &price, PriceDiscount: &discount}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if _, err := mt.GetStartedEvent().Command.LookupErr("query", "price"); err == nil {
			t.Error("stored price guarded although the patch sets price")
		}
	})
}

func TestTourRepository_Create_DuplicateName(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: `E11000 duplicate key error collection: test.tours index: name_1 dup key: { name: "The Forest Hiker" }`,
		}))
		repo := NewTourRepository(mt.DB)

		err := repo.Create(context.Background(), &models.Tour{Name: "The Forest Hiker"})
		appErr := wantKind(t, err, utils.KindConflict)
		if want := `Duplicate field value: "The Forest Hiker". Please use another value`; appErr.Message != want {
			t.Errorf("Message = %q, want %q", appErr.Message, want)
		}
	})
}

func TestTourRepository_Stats(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("aggregates visible tours", func(mt *mtest.T) {
		first := mtest.CreateCursorResponse(1, "test.tours", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "EASY"}, {Key: "numTours", Value: 4}, {Key: "avgPrice", Value: 1272.0}},
			bson.D{{Key: "_id", Value: "MEDIUM"}, {Key: "numTours", Value: 3}, {Key: "avgPrice", Value: 1663.0}},
		)
		last := mtest.CreateCursorResponse(0, "test.tours", mtest.NextBatch)
		mt.AddMockResponses(first, last)
		repo := NewTourRepository(mt.DB)

		stats, err := repo.Stats(context.Background())
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if len(stats) != 2 || stats[0].Difficulty != "EASY" || stats[0].NumTours != 4 {
			t.Errorf("stats = %+v", stats)
		}

		cmd := mt.GetStartedEvent().Command
		if !cmd.Lookup("pipeline", "0", "$match", "secretTour", "$ne").Boolean() {
			t.Error("pipeline does not start with the secret tour exclusion")
		}
		if got := cmd.Lookup("pipeline", "1", "$match", "ratingsAverage", "$gte").Double(); got != StatsMinRating {
			t.Errorf("ratings floor = %v, want %v", got, StatsMinRating)
		}
	})
}

func TestTourRepository_MonthlyPlan(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("groups by month", func(mt *mtest.T) {
		first := mtest.CreateCursorResponse(1, "test.tours", mtest.FirstBatch,
			bson.D{{Key: "month", Value: 7}, {Key: "numTourStarts", Value: 3}, {Key: "tours", Value: bson.A{"A", "B", "C"}}},
		)
		last := mtest.CreateCursorResponse(0, "test.tours", mtest.NextBatch)
		mt.AddMockResponses(first, last)
		repo := NewTourRepository(mt.DB)

		plan, err := repo.MonthlyPlan(context.Background(), 2021)
		if err != nil {
			t.Fatalf("MonthlyPlan() error = %v", err)
		}
		if len(plan) != 1 || plan[0].Month != 7 || len(plan[0].Tours) != 3 {
			t.Errorf("plan = %+v", plan)
		}

		cmd := mt.GetStartedEvent().Command
		from := cmd.Lookup("pipeline", "2", "$match", "startDates", "$gte").Time()
		to := cmd.Lookup("pipeline", "2", "$match", "startDates", "$lt").Time()
		if !from.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("range = [%v, %v)", from, to)
		}
	})
}
