package models

import (
	"bytes"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Collection names used by the dashboard.
const (
	CollectionTrades           = "trades"
	CollectionUsers            = "users"
	CollectionExchangeAccounts = "weexData"
)

// Document is one schemaless record in the document store.
// CreatedAt is assigned by the store and is the ordering key for collection queries.
type Document struct {
	Collection string         `gorm:"primaryKey;size:64" json:"collection"`
	ID         string         `gorm:"primaryKey;size:64" json:"id"`
	OwnerID    string         `gorm:"size:64;index:idx_documents_owner" json:"owner_id"`
	Data       datatypes.JSON `json:"data"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName pins the table name.
func (Document) TableName() string {
	return "documents"
}

// Fields decodes the document body. Numbers are kept as json.Number so that
// decimal amounts survive without float rounding. A corrupt body yields an empty map.
func (d Document) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if len(d.Data) == 0 {
		return fields
	}
	dec := json.NewDecoder(bytes.NewReader(d.Data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return make(map[string]interface{})
	}
	return fields
}
