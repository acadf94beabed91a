package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"sweetshop/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SweetCollection is the collection holding sweet documents.
const SweetCollection = "sweets"

// mongo "NamespaceExists" command error code.
const namespaceExistsCode = 48

type sweetDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Category  string             `bson:"category"`
	Price     float64            `bson:"price"`
	Quantity  int                `bson:"quantity"`
	Image     *imageDocument     `bson:"image,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type imageDocument struct {
	Data        []byte `bson:"data,omitempty"`
	ContentType string `bson:"contentType"`
}

func (d sweetDocument) toModel() models.Sweet {
	s := models.Sweet{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Category:  d.Category,
		Price:     d.Price,
		Quantity:  d.Quantity,
		CreatedAt: d.CreatedAt,
	}
	if d.Image != nil {
		s.ImageData = d.Image.Data
		s.ImageContentType = d.Image.ContentType
	}
	return s
}

// MongoSweetRepository is a MongoDB implementation of SweetRepository.
type MongoSweetRepository struct {
	coll *mongo.Collection
}

// NewMongoSweetRepository creates a repository over db's sweets collection.
func NewMongoSweetRepository(db *mongo.Database) *MongoSweetRepository {
	return &MongoSweetRepository{
		coll: db.Collection(SweetCollection),
	}
}

// EnsureMongoSchema creates the sweets collection with a validator that
// rejects documents breaking the field constraints. An existing collection
// is left alone.
func EnsureMongoSchema(ctx context.Context, db *mongo.Database) error {
	schema := bson.M{
		"bsonType": "object",
		"required": bson.A{"name", "category", "price", "quantity", "createdAt"},
		"properties": bson.M{
			"name":     bson.M{"bsonType": "string", "minLength": 1},
			"category": bson.M{"bsonType": "string", "minLength": 1},
			"price":    bson.M{"bsonType": bson.A{"double", "int", "long"}, "minimum": 0},
			"quantity": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
		},
	}
	opts := options.CreateCollection().SetValidator(bson.M{"$jsonSchema": schema})
	err := db.CreateCollection(ctx, SweetCollection, opts)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == namespaceExistsCode {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create %s collection: %w", SweetCollection, err)
	}
	return nil
}

// GetAll retrieves all sweets without their image payloads.
func (r *MongoSweetRepository) GetAll(ctx context.Context) ([]models.Sweet, error) {
	return r.find(ctx, bson.M{})
}

// Search retrieves the sweets matching every set field of the filter.
func (r *MongoSweetRepository) Search(ctx context.Context, filter models.SweetFilter) ([]models.Sweet, error) {
	query := bson.M{}
	if filter.Name != "" {
		query["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Name), Options: "i"}
	}
	if filter.Category != "" {
		query["category"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Category), Options: "i"}
	}
	price := bson.M{}
	if filter.MinPrice != nil {
		price["$gte"] = *filter.MinPrice
	}
	if filter.MaxPrice != nil {
		price["$lte"] = *filter.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}
	return r.find(ctx, query)
}

func (r *MongoSweetRepository) find(ctx context.Context, query bson.M) ([]models.Sweet, error) {
	opts := options.Find().
		SetProjection(bson.M{"image.data": 0}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweets: %w", err)
	}
	var docs []sweetDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode sweets: %w", err)
	}
	sweets := make([]models.Sweet, 0, len(docs))
	for _, d := range docs {
		sweets = append(sweets, d.toModel())
	}
	return sweets, nil
}

// GetByID retrieves a single sweet, image included.
func (r *MongoSweetRepository) GetByID(ctx context.Context, id string) (*models.Sweet, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var doc sweetDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("sweet with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get sweet by ID %s: %w", id, err)
	}
	sweet := doc.toModel()
	return &sweet, nil
}

// Create inserts a new sweet and fills in its ID and creation time.
func (r *MongoSweetRepository) Create(ctx context.Context, sweet *models.Sweet) error {
	doc := sweetDocument{
		ID:        primitive.NewObjectID(),
		Name:      sweet.Name,
		Category:  sweet.Category,
		Price:     sweet.Price,
		Quantity:  sweet.Quantity,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if sweet.HasImage() {
		doc.Image = &imageDocument{Data: sweet.ImageData, ContentType: sweet.ImageContentType}
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create sweet: %w", err)
	}
	sweet.ID = doc.ID.Hex()
	sweet.CreatedAt = doc.CreatedAt
	return nil
}

// Update applies every supplied field with a single $set.
func (r *MongoSweetRepository) Update(ctx context.Context, id string, changes models.SweetChanges) (*models.Sweet, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if changes.Name != nil {
		set["name"] = *changes.Name
	}
	if changes.Category != nil {
		set["category"] = *changes.Category
	}
	if changes.Price != nil {
		set["price"] = *changes.Price
	}
	if changes.Quantity != nil {
		set["quantity"] = *changes.Quantity
	}
	if changes.Image != nil {
		set["image"] = imageDocument{Data: changes.Image.Data, ContentType: changes.Image.ContentType}
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}

	return r.findOneAndUpdate(ctx, id, bson.M{"_id": oid}, bson.M{"$set": set})
}

// Delete hard-deletes a sweet by its ID.
func (r *MongoSweetRepository) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete sweet: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("sweet with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

// AdjustQuantity uses $inc guarded by $gte so the stock never goes negative.
func (r *MongoSweetRepository) AdjustQuantity(ctx context.Context, id string, delta int) (*models.Sweet, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid}
	if delta < 0 {
		filter["quantity"] = bson.M{"$gte": -delta}
	} else {
		filter["quantity"] = bson.M{"$lte": MaxQuantity - delta}
	}
	sweet, err := r.findOneAndUpdate(ctx, id, filter, bson.M{"$inc": bson.M{"quantity": delta}})
	if errors.Is(err, ErrNotFound) {
		n, countErr := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
		if countErr != nil {
			return nil, fmt.Errorf("failed to check sweet %s: %w", id, countErr)
		}
		if n > 0 && delta < 0 {
			return nil, ErrInsufficientStock
		}
		if n > 0 {
			return nil, ErrStockOverflow
		}
	}
	return sweet, err
}

func (r *MongoSweetRepository) findOneAndUpdate(ctx context.Context, id string, filter, update bson.M) (*models.Sweet, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc sweetDocument
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("sweet with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update sweet %s: %w", id, err)
	}
	sweet := doc.toModel()
	return &sweet, nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}
