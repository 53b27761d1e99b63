package mongodb

import (
	"context"
	stderrors "errors"
	"sort"

	"github.com/autom8ter/docstore/driver"
	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
	"github.com/autom8ter/docstore/pipeline"
	"github.com/autom8ter/docstore/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// DefaultDatabase is used when the connection string doesn't name a database
const DefaultDatabase = "docstore"

func init() {
	opener := func(ctx context.Context, address string) (driver.Driver, error) {
		d, err := Open(ctx, address)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	driver.Register("mongodb", opener)
	driver.Register("mongodb+srv", opener)
}

// server error codes mapped onto error kinds
const (
	codeBadValue          = 2
	codeFailedToParse     = 9
	codeTypeMismatch      = 14
	codeNamespaceNotFound = 26
	codeIndexNotFound     = 27
	codeIndexOptions      = 85
	codeIndexKeySpecs     = 86
	codeDocumentInvalid   = 121
)

// Driver translates tagged queries into mongodb commands
type Driver struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ driver.Driver = (*Driver)(nil)

// Open connects to the mongodb deployment and verifies the connection. The database is taken from the
// connection string path, ex: mongodb://localhost:27017/library
func Open(ctx context.Context, uri string) (*Driver, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, errors.Wrap(err, errors.Connection, "invalid mongodb connection string")
	}
	database := cs.Database
	if database == "" {
		database = DefaultDatabase
	}
	client, err := mongo.Connect(ctx, mopt.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, errors.Connection, "failed to connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, errors.Connection, "failed to ping mongodb")
	}
	return &Driver{client: client, db: client.Database(database)}, nil
}

func (d *Driver) coll(collection string) (*mongo.Collection, error) {
	if err := driver.ValidateCollection(collection); err != nil {
		return nil, err
	}
	return d.db.Collection(collection), nil
}

func (d *Driver) InsertMany(ctx context.Context, collection string, docs model.Documents) ([]string, error) {
	c, err := d.coll(collection)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []string{}, nil
	}
	ids := make([]string, 0, len(docs))
	values := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		converted, err := toBSONDocument(doc)
		if err != nil {
			return nil, err
		}
		values = append(values, converted)
		ids = append(ids, doc.ID())
	}
	if _, err := c.InsertMany(ctx, values); err != nil {
		return nil, wrapErr(err, "failed to insert documents into %s", collection)
	}
	return ids, nil
}

func (d *Driver) Find(ctx context.Context, collection string, filter query.Filter, opts driver.FindOptions) (driver.Cursor, error) {
	c, err := d.coll(collection)
	if err != nil {
		return nil, err
	}
	findOpts := mopt.Find()
	if projection := buildProjection(opts.Projection); projection != nil {
		findOpts.SetProjection(projection)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(buildSort(opts.Sort))
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(int64(opts.Skip))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	cur, err := c.Find(ctx, buildFilter(filter), findOpts)
	if err != nil {
		return nil, wrapErr(err, "failed to find documents in %s", collection)
	}
	return &cursor{cursor: cur}, nil
}

func (d *Driver) UpdateMany(ctx context.Context, collection string, filter query.Filter, patch query.Patch) (int, error) {
	if err := patch.Validate(); err != nil {
		return 0, err
	}
	c, err := d.coll(collection)
	if err != nil {
		return 0, err
	}
	result, err := c.UpdateMany(ctx, buildFilter(filter), buildUpdate(patch))
	if err != nil {
		return 0, wrapErr(err, "failed to update documents in %s", collection)
	}
	return int(result.ModifiedCount), nil
}

func (d *Driver) DeleteMany(ctx context.Context, collection string, filter query.Filter) (int, error) {
	c, err := d.coll(collection)
	if err != nil {
		return 0, err
	}
	result, err := c.DeleteMany(ctx, buildFilter(filter))
	if err != nil {
		return 0, wrapErr(err, "failed to delete documents in %s", collection)
	}
	return int(result.DeletedCount), nil
}

func (d *Driver) Aggregate(ctx context.Context, collection string, p pipeline.Pipeline) (model.Documents, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c, err := d.coll(collection)
	if err != nil {
		return nil, err
	}
	stages, err := buildPipeline(p)
	if err != nil {
		return nil, err
	}
	cur, err := c.Aggregate(ctx, stages)
	if err != nil {
		return nil, wrapErr(err, "failed to aggregate %s", collection)
	}
	return (&cursor{cursor: cur}).All(ctx)
}

type indexSpec struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique"`
}

func (s indexSpec) index() model.Index {
	index := model.Index{Name: s.Name, Unique: s.Unique}
	for _, e := range s.Key {
		direction := 1
		switch v := e.Value.(type) {
		case int32:
			direction = int(v)
		case int64:
			direction = int(v)
		case float64:
			direction = int(v)
		}
		index.Keys = append(index.Keys, model.IndexKey{Field: e.Key, Direction: direction})
	}
	if index.Name == model.PrimaryIndexName {
		index.Unique = true
	}
	return index
}

func (d *Driver) CreateIndex(ctx context.Context, collection string, index model.Index) (string, error) {
	if err := index.Validate(); err != nil {
		return "", err
	}
	index = index.Named()
	existing, err := d.ListIndexes(ctx, collection)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(existing))
	for name := range existing {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if existing[name].SameDefinition(index) {
			return name, nil
		}
	}
	if _, ok := existing[index.Name]; ok {
		return "", errors.New(errors.Validation, "index '%s' already exists with a different definition", index.Name)
	}
	c, err := d.coll(collection)
	if err != nil {
		return "", err
	}
	name, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    buildIndexKeys(index),
		Options: mopt.Index().SetName(index.Name).SetUnique(index.Unique),
	})
	if err != nil {
		return "", wrapErr(err, "failed to create index %s on %s", index.Name, collection)
	}
	return name, nil
}

func (d *Driver) ListIndexes(ctx context.Context, collection string) (map[string]model.Index, error) {
	c, err := d.coll(collection)
	if err != nil {
		return nil, err
	}
	indexes := map[string]model.Index{
		model.PrimaryIndexName: model.PrimaryIndex(),
	}
	cur, err := c.Indexes().List(ctx)
	if err != nil {
		if hasCode(err, codeNamespaceNotFound) {
			return indexes, nil
		}
		return nil, wrapErr(err, "failed to list indexes on %s", collection)
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var spec indexSpec
		if err := cur.Decode(&spec); err != nil {
			return nil, wrapErr(err, "failed to decode index on %s", collection)
		}
		indexes[spec.Name] = spec.index()
	}
	if err := cur.Err(); err != nil {
		return nil, wrapErr(err, "failed to list indexes on %s", collection)
	}
	return indexes, nil
}

func (d *Driver) DropIndex(ctx context.Context, collection string, name string) error {
	if name == model.PrimaryIndexName {
		return errors.New(errors.Validation, "the '%s' index cannot be dropped", model.PrimaryIndexName)
	}
	c, err := d.coll(collection)
	if err != nil {
		return err
	}
	if _, err := c.Indexes().DropOne(ctx, name); err != nil {
		if hasCode(err, codeNamespaceNotFound) {
			return errors.New(errors.NotFound, "index '%s' not found on collection '%s'", name, collection)
		}
		return wrapErr(err, "failed to drop index %s on %s", name, collection)
	}
	return nil
}

func (d *Driver) DropCollection(ctx context.Context, collection string) error {
	c, err := d.coll(collection)
	if err != nil {
		return err
	}
	return wrapErr(c.Drop(ctx), "failed to drop %s", collection)
}

func (d *Driver) ListCollections(ctx context.Context) ([]string, error) {
	names, err := d.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, wrapErr(err, "failed to list collections")
	}
	sort.Strings(names)
	return names, nil
}

// SetValidator attaches the json schema with collMod, creating the collection if it doesn't exist
func (d *Driver) SetValidator(ctx context.Context, collection string, schema []byte) error {
	if err := driver.ValidateCollection(collection); err != nil {
		return err
	}
	validator := bson.D{}
	if len(schema) > 0 {
		var jsonSchema bson.D
		if err := bson.UnmarshalExtJSON(schema, false, &jsonSchema); err != nil {
			return errors.Wrap(err, errors.Validation, "invalid json schema")
		}
		validator = bson.D{{Key: "$jsonSchema", Value: jsonSchema}}
	}
	err := d.db.RunCommand(ctx, bson.D{
		{Key: "collMod", Value: collection},
		{Key: "validator", Value: validator},
	}).Err()
	if hasCode(err, codeNamespaceNotFound) {
		err = d.db.CreateCollection(ctx, collection, mopt.CreateCollection().SetValidator(validator))
	}
	return wrapErr(err, "failed to set validator on %s", collection)
}

func (d *Driver) Ping(ctx context.Context) error {
	return wrapErr(d.client.Ping(ctx, nil), "failed to ping mongodb")
}

func (d *Driver) Close(ctx context.Context) error {
	return wrapErr(d.client.Disconnect(ctx), "failed to disconnect from mongodb")
}

func hasCode(err error, code int) bool {
	var serverErr mongo.ServerError
	return stderrors.As(err, &serverErr) && serverErr.HasErrorCode(code)
}

// wrapErr maps driver errors onto error kinds
func wrapErr(err error, msg string, args ...any) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return errors.Wrap(err, errors.Validation, msg, args...)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), stderrors.Is(err, mongo.ErrClientDisconnected):
		return errors.Wrap(err, errors.Connection, msg, args...)
	case hasCode(err, codeIndexNotFound):
		return errors.Wrap(err, errors.NotFound, msg, args...)
	case hasCode(err, codeDocumentInvalid), hasCode(err, codeTypeMismatch), hasCode(err, codeBadValue),
		hasCode(err, codeFailedToParse), hasCode(err, codeIndexOptions), hasCode(err, codeIndexKeySpecs):
		return errors.Wrap(err, errors.Validation, msg, args...)
	default:
		return errors.Wrap(err, errors.Internal, msg, args...)
	}
}

type cursor struct {
	cursor  *mongo.Cursor
	current *model.Document
	err     error
	closed  bool
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if !c.cursor.Next(ctx) {
		c.err = wrapErr(c.cursor.Err(), "cursor failed")
		_ = c.Close(ctx)
		return false
	}
	doc, err := fromBSON(c.cursor.Current)
	if err != nil {
		c.err = err
		_ = c.Close(ctx)
		return false
	}
	c.current = doc
	return true
}

func (c *cursor) Document() *model.Document {
	return c.current
}

func (c *cursor) Err() error {
	return c.err
}

func (c *cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	return wrapErr(c.cursor.Close(ctx), "failed to close cursor")
}

func (c *cursor) All(ctx context.Context) (model.Documents, error) {
	return driver.Drain(ctx, c)
}
