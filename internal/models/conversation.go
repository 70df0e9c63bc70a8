package models

import (
	"time"

	"gorm.io/datatypes"
)

// Diagram type values for Conversation.DiagramType.
const (
	DiagramNone     = "none"
	DiagramERD      = "erd"
	DiagramPhysical = "physical_db"
)

// Conversation holds the schema-design state for one chat thread. A
// conversation is created lazily on the first message and carries at most one
// conceptual (ERD) and one physical schema. Domain is write-once: set on the
// first confidently classified message, never overwritten.
type Conversation struct {
	ID               string         `gorm:"primaryKey;size:36" json:"id"`
	OwnerID          string         `gorm:"size:64;not null;index" json:"ownerId"`
	Domain           string         `gorm:"size:128" json:"domain,omitempty"`
	DomainConfidence float64        `gorm:"default:0" json:"domainConfidence,omitempty"`
	DiagramType      string         `gorm:"size:16;default:none;index" json:"diagramType"`
	ErdSchema        datatypes.JSON `json:"erdSchema,omitempty"`
	PhysicalSchema   datatypes.JSON `json:"physicalSchema,omitempty"`
	DDL              string         `gorm:"type:text" json:"ddl,omitempty"`
	LastMessageAt    time.Time      `json:"lastMessageAt"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`

	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// HasErd reports whether a conceptual schema has been generated.
func (c *Conversation) HasErd() bool { return len(c.ErdSchema) > 0 }

// HasPhysical reports whether a physical schema has been generated.
func (c *Conversation) HasPhysical() bool { return len(c.PhysicalSchema) > 0 }

// Message is one entry in a conversation's append-only history. Snapshots
// record the schema/DDL as of the assistant turn that produced them.
type Message struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string         `gorm:"size:36;not null;index" json:"conversationId"`
	Role           string         `gorm:"size:16;not null" json:"role"` // "user" or "assistant"
	Content        string         `gorm:"type:text" json:"content"`
	Intent         string         `gorm:"size:32" json:"intent,omitempty"`
	SchemaSnapshot datatypes.JSON `json:"schemaSnapshot,omitempty"`
	DDLSnapshot    string         `gorm:"type:text" json:"ddlSnapshot,omitempty"`
	RunID          string         `gorm:"size:64" json:"runId,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}
