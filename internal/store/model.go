// Package store defines the Store interface the storage engine exposes
// and the four revisioned document shapes every implementation (the
// production go.mongodb.org/mongo-driver backend in impl_mongo, and the
// in-memory reference backend in impl_inmem used by this package's tests)
// writes and reads. Field names and bson tags are load-bearing: the data
// outlives any one implementation.
package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OpenSentinel is the "valid forever" marker used in place of the
// source's datetime.max — chosen because time.Time has no portable
// infinite future. It is used consistently on both read and write.
var OpenSentinel = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// RefDoc is one row of the refs collection: one per (source, ticker) pair
// ever created. All aliases of the same instrument share Props, Series,
// and Scenarios.
type RefDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Source     string             `bson:"source"`
	Ticker     string             `bson:"ticker"`
	ValidFrom  time.Time          `bson:"valid_from"`
	ValidUntil time.Time          `bson:"valid_until"`
	Props      primitive.ObjectID `bson:"props"`
	Series     primitive.ObjectID `bson:"series"`
	Scenarios  primitive.ObjectID `bson:"scenarios"`
}

// PathDoc is a revisioned path document: one attribute (properties, or the
// series index) of one instrument, at one revision instant R.
type PathDoc struct {
	ID primitive.ObjectID `bson:"_id"`
	K  primitive.ObjectID `bson:"k"`
	R  time.Time          `bson:"r"`
	V  interface{}        `bson:"v"`
}

// SheetDoc is one revisioned observation.
type SheetDoc struct {
	K primitive.ObjectID `bson:"k"`
	R time.Time          `bson:"r"`
	T time.Time          `bson:"t"`
	V interface{}        `bson:"v"`
}

// SeriesIndex is the decoded form of a series-index path's V field: series
// name to sheet key.
type SeriesIndex map[string]primitive.ObjectID
