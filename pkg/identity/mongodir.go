package identity

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"buddyfeed/pkg/models"
)

const usersCollection = "users"

// publicFields keeps credentials and contact details out of every query result.
var publicFields = bson.M{"firstName": 1, "lastName": 1, "profilePicture": 1}

type userDoc struct {
	ID             primitive.ObjectID `bson:"_id"`
	FirstName      string             `bson:"firstName"`
	LastName       string             `bson:"lastName"`
	ProfilePicture string             `bson:"profilePicture"`
}

func (u userDoc) profile() models.PublicProfile {
	return withDefaultPicture(models.PublicProfile{
		ID:             u.ID.Hex(),
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
	})
}

// accountDoc is the full users document, credentials included.
type accountDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	FirstName      string             `bson:"firstName"`
	LastName       string             `bson:"lastName"`
	Email          string             `bson:"email"`
	Password       string             `bson:"password"`
	ProfilePicture string             `bson:"profilePicture"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

func (a accountDoc) account() Account {
	p := userDoc{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName, ProfilePicture: a.ProfilePicture}.profile()
	return Account{PublicProfile: p, Email: a.Email}
}

// MongoDirectory reads profiles from the users collection, where user ids are ObjectID hex
// strings.
type MongoDirectory struct {
	users *mongo.Collection
}

func NewMongoDirectory(db *mongo.Database) *MongoDirectory {
	return &MongoDirectory{users: db.Collection(usersCollection)}
}

func (d *MongoDirectory) Profile(ctx context.Context, id string) (models.PublicProfile, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.PublicProfile{}, ErrProfileNotFound
	}

	var u userDoc
	err = d.users.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(publicFields)).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.PublicProfile{}, ErrProfileNotFound
		}
		return models.PublicProfile{}, unavailable(err)
	}

	return u.profile(), nil
}

func (d *MongoDirectory) Profiles(ctx context.Context, ids []string) (map[string]models.PublicProfile, error) {
	found := make(map[string]models.PublicProfile, len(ids))

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return found, nil
	}

	cur, err := d.users.Find(ctx, bson.M{"_id": bson.M{"$in": oids}}, options.Find().SetProjection(publicFields))
	if err != nil {
		return nil, unavailable(err)
	}

	var users []userDoc
	if err := cur.All(ctx, &users); err != nil {
		return nil, unavailable(err)
	}
	for _, u := range users {
		found[u.ID.Hex()] = u.profile()
	}

	return found, nil
}

// EnsureIndexes creates the unique email index Register relies on.
func (d *MongoDirectory) EnsureIndexes(ctx context.Context) error {
	_, err := d.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (d *MongoDirectory) Register(ctx context.Context, reg Registration) (Account, error) {
	if err := reg.normalize(); err != nil {
		return Account{}, err
	}

	n, err := d.users.CountDocuments(ctx, bson.M{"email": reg.Email})
	if err != nil {
		return Account{}, unavailable(err)
	}
	if n > 0 {
		return Account{}, ErrAccountExists
	}

	hash, err := hashPassword(reg.Password)
	if err != nil {
		return Account{}, err
	}
	doc := accountDoc{
		ID:        primitive.NewObjectID(),
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		Email:     reg.Email,
		Password:  hash,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := d.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Account{}, ErrAccountExists
		}
		return Account{}, unavailable(err)
	}

	return doc.account(), nil
}

func (d *MongoDirectory) Authenticate(ctx context.Context, email, password string) (Account, error) {
	var doc accountDoc
	err := d.users.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Account{}, ErrBadCredentials
		}
		return Account{}, unavailable(err)
	}

	if err := checkPassword(doc.Password, password); err != nil {
		return Account{}, err
	}
	return doc.account(), nil
}

func (d *MongoDirectory) Account(ctx context.Context, id string) (Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Account{}, ErrProfileNotFound
	}

	var doc accountDoc
	opts := options.FindOne().SetProjection(bson.M{"password": 0})
	if err := d.users.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Account{}, ErrProfileNotFound
		}
		return Account{}, unavailable(err)
	}
	return doc.account(), nil
}
