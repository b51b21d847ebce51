package entities

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WebhookEventAll subscribes an endpoint to every event kind.
const WebhookEventAll = "all"

// WebhookPayload is the JSON body POSTed to consumer endpoints.
type WebhookPayload struct {
	Event          EventKind `json:"event" bson:"event"`
	TxID           string    `json:"txId" bson:"tx_id"`
	Amount         Groth     `json:"amount" bson:"amount"`
	ValueFormatted string    `json:"value_formatted" bson:"value_formatted"`
	AssetID        int64     `json:"asset_id" bson:"asset_id"`
	AssetName      string    `json:"asset_name" bson:"asset_name"`
	Address        string    `json:"address" bson:"address"`
	Comment        string    `json:"comment,omitempty" bson:"comment,omitempty"`
	Kernel         string    `json:"kernel,omitempty" bson:"kernel,omitempty"`
	Reason         string    `json:"reason,omitempty" bson:"reason,omitempty"`
}

// WebhookEndpoint is a consumer-registered delivery target for one event kind,
// or for all kinds when EventType is "all".
type WebhookEndpoint struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	URL       string             `json:"url" bson:"url"`
	EventType string             `json:"event_type" bson:"event_type"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// FailedWebhook is a dead-lettered delivery, replayed on later dispatcher
// cycles and deleted once a replay succeeds.
type FailedWebhook struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	URL         string             `json:"url" bson:"url"`
	EventType   EventKind          `json:"event_type" bson:"event_type"`
	Data        WebhookPayload     `json:"data" bson:"data"`
	LastAttempt time.Time          `json:"last_attempt" bson:"last_attempt"`
	Attempts    int                `json:"attempts" bson:"attempts"`
}
