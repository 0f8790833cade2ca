package main

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	mongoClient       *mongo.Client
	historyCollection *mongo.Collection
)

// connectMongo wires the transfer-history store. History is optional:
// without a mongo URL the bot still relays files, it just forgets them.
func connectMongo(mongoURL string) {
	if mongoURL == "" {
		fmt.Println("⚠️ mongo.url not set! Transfer history will not be saved.")
		return
	}
	mCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mClient, err := mongo.Connect(mCtx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		fmt.Println("❌ MongoDB Connection Error:", err)
		return
	}
	if err := mClient.Ping(mCtx, nil); err != nil {
		fmt.Println("❌ MongoDB Ping Failed:", err)
		return
	}
	mongoClient = mClient
	historyCollection = mClient.Database("mega_gofile_bot").Collection("transfers")
	fmt.Println("🍃 [MONGODB] Connected for Transfer History!")
}

func saveTransferRecord(rec TransferRecord) {
	if historyCollection == nil {
		return
	}
	if _, err := historyCollection.InsertOne(context.Background(), rec); err != nil {
		fmt.Printf("❌ Mongo Save Error: %v\n", err)
	}
}

// recentTransfers returns the newest records first.
func recentTransfers(limit int64) ([]TransferRecord, error) {
	if historyCollection == nil {
		return nil, fmt.Errorf("history store not connected")
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "finished_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := historyCollection.Find(context.Background(), bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var records []TransferRecord
	if err := cursor.All(context.Background(), &records); err != nil {
		return nil, err
	}
	return records, nil
}
