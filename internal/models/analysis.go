package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AnalysisChat  = "chat"
	AnalysisImage = "image"
	AnalysisFile  = "file"
)

// Analysis is one AI interaction stored in MongoDB.
type Analysis struct {
	ID             primitive.ObjectID `json:"id"              bson:"_id,omitempty"`
	Kind           string             `json:"kind"            bson:"kind"`
	ConversationID string             `json:"conversation_id" bson:"conversation_id,omitempty"`
	Filename       string             `json:"filename"        bson:"filename,omitempty"`
	Prompt         string             `json:"prompt"          bson:"prompt"`
	Result         string             `json:"result"          bson:"result"`
	Model          string             `json:"model"           bson:"model"`
	CreatedAt      time.Time          `json:"created_at"      bson:"created_at"`
}

// VideoJob is the persisted snapshot of a background video analysis.
type VideoJob struct {
	ID        string    `json:"id"         bson:"_id"`
	Filename  string    `json:"filename"   bson:"filename"`
	Status    string    `json:"status"     bson:"status"`
	Stage     string    `json:"stage"      bson:"stage"`
	Error     string    `json:"error"      bson:"error,omitempty"`
	ResultKey string    `json:"result_key" bson:"result_key,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// ChatRequest is the JSON body for POST /chat.
type ChatRequest struct {
	Input          string `json:"input"`
	ConversationID string `json:"conversation_id"`
}
