package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Zacison/natours-backend/models"
	"github.com/Zacison/natours-backend/utils"
)

const (
	UsersCollection = "users"

	userNotFound = "No user found with that ID"
)

// UserRepository defines the user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	SetResetToken(ctx context.Context, id primitive.ObjectID, hash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id primitive.ObjectID) error
	ConsumeResetToken(ctx context.Context, hash string, now time.Time, passwordHash string, changedAt time.Time) (*models.User, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string, changedAt time.Time) error
}

type userRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{col: db.Collection(UsersCollection)}
}

// Create inserts user, assigning its ID. A taken email surfaces as a
// duplicate field error from the unique index.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.Email = strings.ToLower(user.Email)
	if _, err := r.col.InsertOne(ctx, user); err != nil {
		return translate(err, userNotFound, "insert user")
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		return nil, translate(err, userNotFound, "find user by id")
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.col.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&user)
	if err != nil {
		return nil, translate(err, "There is no user with that email address", "find user by email")
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetProjection(bson.D{{Key: "password", Value: 0}})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, translate(err, userNotFound, "list users")
	}
	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, translate(err, userNotFound, "decode users")
	}
	return users, nil
}

func (r *userRepository) SetResetToken(ctx context.Context, id primitive.ObjectID, hash string, expires time.Time) error {
	update := bson.M{"$set": bson.M{
		"passwordResetToken":   hash,
		"passwordResetExpires": expires.UTC(),
	}}
	return r.updateByID(ctx, id, update, "set reset token")
}

func (r *userRepository) ClearResetToken(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""}}
	return r.updateByID(ctx, id, update, "clear reset token")
}

// ConsumeResetToken matches an unexpired token by hash and, in the same
// write, clears it and stores the new password. Only one caller can win
// for a given token.
func (r *userRepository) ConsumeResetToken(ctx context.Context, hash string, now time.Time, passwordHash string, changedAt time.Time) (*models.User, error) {
	filter := bson.M{
		"passwordResetToken":   hash,
		"passwordResetExpires": bson.M{"$gt": now.UTC()},
	}
	update := bson.M{
		"$set": bson.M{
			"password":          passwordHash,
			"passwordChangedAt": changedAt.UTC(),
		},
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.NewValidation("Token is invalid or has expired").WithCause(err)
		}
		return nil, translate(err, userNotFound, "consume reset token")
	}
	return &user, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string, changedAt time.Time) error {
	update := bson.M{"$set": bson.M{
		"password":          passwordHash,
		"passwordChangedAt": changedAt.UTC(),
	}}
	return r.updateByID(ctx, id, update, "update password")
}

func (r *userRepository) updateByID(ctx context.Context, id primitive.ObjectID, update bson.M, op string) error {
	res, err := r.col.UpdateByID(ctx, id, update)
	if err != nil {
		return translate(err, userNotFound, op)
	}
	if res.MatchedCount == 0 {
		return utils.NewNotFound(userNotFound)
	}
	return nil
}
