// Package db provides the optional Mongo-backed curated passage source.
package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Passage is a curated typing passage document.
type Passage struct {
	Story           string `bson:"story"`
	TotalCharacters int    `bson:"totalCharacters"`
	TotalWords      int    `bson:"totalWords"`
	Hash            string `bson:"hash"`
}

// Passages wraps the passage collection.
type Passages struct {
	client *mongo.Client
}

// Connect dials Mongo at uri. The returned handle is nil-safe to skip when no
// URI is configured.
func Connect(uri string) (*Passages, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return &Passages{client: client}, nil
}

// Random returns one passage sampled uniformly from the collection.
func (p *Passages) Random(ctx context.Context) (*Passage, error) {
	collection := p.client.Database("TypingRacer").Collection("passages")

	pipeline := mongo.Pipeline{
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: 1}}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var passage Passage
	if cursor.Next(ctx) {
		if err := cursor.Decode(&passage); err != nil {
			return nil, err
		}
		return &passage, nil
	}
	return nil, mongo.ErrNoDocuments
}

// Close disconnects the underlying client.
func (p *Passages) Close(ctx context.Context) error {
	return p.client.Disconnect(ctx)
}
