package store

import (
	"context"
	"errors"
	"time"

	"github.com/edusphere/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	profilesCollection = "profiles"
	tagsCollection     = "tags"
	filesCollection    = "files"
)

type userDocument struct {
	ID                   primitive.ObjectID  `bson:"_id"`
	FirstName            string              `bson:"firstName"`
	LastName             string              `bson:"lastName"`
	Email                string              `bson:"email"`
	Password             string              `bson:"password"`
	AccountType          string              `bson:"accountType"`
	AdditionalDetails    *primitive.ObjectID `bson:"additionalDetails,omitempty"`
	Token                string              `bson:"token,omitempty"`
	ResetPasswordExpires *time.Time          `bson:"resetPasswordExpires,omitempty"`
	CreatedAt            time.Time           `bson:"createdAt"`
}

func (d userDocument) toUser() types.User {
	user := types.User{
		ID:           d.ID.Hex(),
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		PasswordHash: d.Password,
		AccountType:  types.Role(d.AccountType),
		CreatedAt:    d.CreatedAt,
	}
	if d.AdditionalDetails != nil {
		user.ProfileID = d.AdditionalDetails.Hex()
	}
	if d.Token != "" && d.ResetPasswordExpires != nil {
		user.SetReset(d.Token, *d.ResetPasswordExpires)
	}
	return user
}

type profileDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Gender      *string            `bson:"gender"`
	DateOfBirth *string            `bson:"dateOfBirth"`
	About       *string            `bson:"about"`
	ContactNo   *string            `bson:"contactNumber"`
	Profession  *string            `bson:"profession"`
	Image       string             `bson:"image"`
}

func (d profileDocument) toProfile() types.Profile {
	return types.Profile{
		ID:          d.ID.Hex(),
		Gender:      d.Gender,
		DateOfBirth: d.DateOfBirth,
		About:       d.About,
		ContactNo:   d.ContactNo,
		Profession:  d.Profession,
		Image:       d.Image,
	}
}

// EnsureMongoIndexes creates the unique indexes the repositories rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	if _, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: unique,
	}); err != nil {
		return err
	}
	if _, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "token", Value: 1}},
	}); err != nil {
		return err
	}
	_, err := db.Collection(tagsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: unique,
	})
	return err
}

// MongoUserRepository handles persistence for users in MongoDB.
type MongoUserRepository struct {
	users    *mongo.Collection
	profiles *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{
		users:    db.Collection(usersCollection),
		profiles: db.Collection(profilesCollection),
	}
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (types.User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user := doc.toUser()

	if doc.AdditionalDetails != nil {
		var profile profileDocument
		err := r.profiles.FindOne(ctx, bson.M{"_id": *doc.AdditionalDetails}).Decode(&profile)
		switch {
		case err == nil:
			p := profile.toProfile()
			user.Profile = &p
		case !errors.Is(err, mongo.ErrNoDocuments):
			return types.User{}, err
		}
	}
	return user, nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) GetByResetToken(ctx context.Context, token string, now time.Time) (types.User, error) {
	return r.findOne(ctx, bson.M{
		"token":                token,
		"resetPasswordExpires": bson.M{"$gt": now},
	})
}

func (r *MongoUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	doc := userDocument{
		ID:          primitive.NewObjectID(),
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Email:       user.Email,
		Password:    user.PasswordHash,
		AccountType: string(user.AccountType),
		CreatedAt:   time.Now().UTC(),
	}
	if user.ProfileID != "" {
		oid, err := primitive.ObjectIDFromHex(user.ProfileID)
		if err != nil {
			return types.User{}, err
		}
		doc.AdditionalDetails = &oid
	}

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		return types.User{}, translate(err)
	}
	user.ID = doc.ID.Hex()
	user.CreatedAt = doc.CreatedAt
	return user, nil
}

func (r *MongoUserRepository) SetReset(ctx context.Context, id, token string, expiry time.Time) error {
	return r.updateOne(ctx, id, bson.M{}, bson.M{
		"$set": bson.M{"token": token, "resetPasswordExpires": expiry},
	})
}

// ClearReset drops the pending reset only while the user still holds token.
func (r *MongoUserRepository) ClearReset(ctx context.Context, id, token string) error {
	return r.updateOne(ctx, id, bson.M{"token": token}, bson.M{
		"$unset": bson.M{"token": "", "resetPasswordExpires": ""},
	})
}

func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateOne(ctx, id, bson.M{}, bson.M{
		"$set": bson.M{"password": passwordHash},
	})
}

// updateOne applies update to the user id that also matches filter.
func (r *MongoUserRepository) updateOne(ctx context.Context, id string, filter, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	filter["_id"] = oid
	result, err := r.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) CompleteReset(ctx context.Context, id, token, passwordHash string, now time.Time) error {
	return r.updateOne(ctx, id,
		bson.M{"token": token, "resetPasswordExpires": bson.M{"$gt": now}},
		bson.M{
			"$set":   bson.M{"password": passwordHash},
			"$unset": bson.M{"token": "", "resetPasswordExpires": ""},
		},
	)
}

func (r *MongoUserRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	result, err := r.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MongoProfileRepository handles persistence for profiles in MongoDB.
type MongoProfileRepository struct {
	profiles *mongo.Collection
}

func NewMongoProfileRepository(db *mongo.Database) *MongoProfileRepository {
	return &MongoProfileRepository{profiles: db.Collection(profilesCollection)}
}

func (r *MongoProfileRepository) Create(ctx context.Context, profile types.Profile) (types.Profile, error) {
	doc := profileDocument{
		ID:          primitive.NewObjectID(),
		Gender:      profile.Gender,
		DateOfBirth: profile.DateOfBirth,
		About:       profile.About,
		ContactNo:   profile.ContactNo,
		Profession:  profile.Profession,
		Image:       profile.Image,
	}
	if _, err := r.profiles.InsertOne(ctx, doc); err != nil {
		return types.Profile{}, translate(err)
	}
	profile.ID = doc.ID.Hex()
	return profile, nil
}

func (r *MongoProfileRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	result, err := r.profiles.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type tagDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
}

// MongoTagRepository handles persistence for tags in MongoDB.
type MongoTagRepository struct {
	tags *mongo.Collection
}

func NewMongoTagRepository(db *mongo.Database) *MongoTagRepository {
	return &MongoTagRepository{tags: db.Collection(tagsCollection)}
}

func (r *MongoTagRepository) Create(ctx context.Context, tag types.Tag) (types.Tag, error) {
	doc := tagDocument{ID: primitive.NewObjectID(), Name: tag.Name, Description: tag.Description}
	if _, err := r.tags.InsertOne(ctx, doc); err != nil {
		return types.Tag{}, translate(err)
	}
	tag.ID = doc.ID.Hex()
	return tag, nil
}

func (r *MongoTagRepository) GetByName(ctx context.Context, name string) (types.Tag, error) {
	var doc tagDocument
	if err := r.tags.FindOne(ctx, bson.M{"name": name}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Tag{}, ErrNotFound
		}
		return types.Tag{}, err
	}
	return types.Tag{ID: doc.ID.Hex(), Name: doc.Name, Description: doc.Description}, nil
}

func (r *MongoTagRepository) List(ctx context.Context) ([]types.Tag, error) {
	cursor, err := r.tags.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []tagDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	tags := make([]types.Tag, 0, len(docs))
	for _, doc := range docs {
		tags = append(tags, types.Tag{ID: doc.ID.Hex(), Name: doc.Name, Description: doc.Description})
	}
	return tags, nil
}

type fileDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	ImageURL  string             `bson:"imageUrl"`
	Tag       string             `bson:"tags,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// MongoFileRepository handles persistence for uploaded file records in MongoDB.
type MongoFileRepository struct {
	files *mongo.Collection
}

func NewMongoFileRepository(db *mongo.Database) *MongoFileRepository {
	return &MongoFileRepository{files: db.Collection(filesCollection)}
}

func (r *MongoFileRepository) Create(ctx context.Context, file types.File) (types.File, error) {
	doc := fileDocument{
		ID:        primitive.NewObjectID(),
		Name:      file.Name,
		Email:     file.Email,
		ImageURL:  file.ImageURL,
		Tag:       file.Tag,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.files.InsertOne(ctx, doc); err != nil {
		return types.File{}, translate(err)
	}
	file.ID = doc.ID.Hex()
	file.CreatedAt = doc.CreatedAt
	return file, nil
}
