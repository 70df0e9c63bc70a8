package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vantor/schemacraft/internal/models"
	"gorm.io/gorm"
)

// DomainConfidenceFloor is the minimum classifier confidence required to
// capture a conversation's domain. Domain is write-once: later events never
// overwrite it, whatever their confidence.
const DomainConfidenceFloor = 0.7

// ErrNotOwner is returned when a caller addresses a conversation they do
// not own. The check runs before any read-modify-write of state or history.
var ErrNotOwner = errors.New("conversation: caller does not own this conversation")

// Classifier is the external intent-classification collaborator.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifiedIntent, error)
}

// ClassifyRequest carries one user message to the classifier.
type ClassifyRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// Generator is the external schema/DDL-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// GenerateRequest asks the generation workflow for a new or modified schema.
type GenerateRequest struct {
	ConversationID string          `json:"conversationId"`
	Content        string          `json:"content"`
	Target         DiagramType     `json:"target"`
	Modify         bool            `json:"modify"`
	CurrentSchema  json.RawMessage `json:"currentSchema,omitempty"`
	Domain         string          `json:"domain,omitempty"`
}

// GenerateResult is the generation workflow's reply. DDL is set only for
// physical targets.
type GenerateResult struct {
	Schema json.RawMessage `json:"schema"`
	DDL    string          `json:"ddl,omitempty"`
	Reply  string          `json:"reply"`
	RunID  string          `json:"runId,omitempty"`
}

// Converter is the external ERD→physical conversion collaborator.
type Converter interface {
	Convert(ctx context.Context, req ConvertRequest) (*ConvertResult, error)
}

// ConvertRequest carries the existing ERD to the conversion workflow.
type ConvertRequest struct {
	ConversationID string          `json:"conversationId"`
	ErdSchema      json.RawMessage `json:"erdSchema"`
	Content        string          `json:"content"`
	Domain         string          `json:"domain,omitempty"`
}

// ConvertResult is the conversion workflow's reply.
type ConvertResult struct {
	Schema json.RawMessage `json:"schema"`
	DDL    string          `json:"ddl"`
	Reply  string          `json:"reply"`
	RunID  string          `json:"runId,omitempty"`
}

// Responder answers side questions without touching schema state.
type Responder interface {
	Answer(ctx context.Context, req AnswerRequest) (string, error)
}

// AnswerRequest carries a side question to the response workflow.
type AnswerRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// Service applies the transition table to incoming messages and owns all
// Conversation/Message mutations. Concurrent messages on the same
// conversation id are not serialized; senders are expected to await each
// reply before sending the next message.
type Service struct {
	db         *gorm.DB
	classifier Classifier
	generator  Generator
	converter  Converter
	responder  Responder
}

// NewService wires the tracker to its collaborators.
func NewService(db *gorm.DB, cl Classifier, g Generator, cv Converter, r Responder) *Service {
	return &Service{db: db, classifier: cl, generator: g, converter: cv, responder: r}
}

// HandleOpts carries one inbound user message. Event may be supplied by
// callers that already hold a classification; when nil the service invokes
// the classifier collaborator.
type HandleOpts struct {
	ConversationID string
	OwnerID        string
	Content        string
	Event          *ClassifiedIntent
}

// Result is the reply for one handled message. On rejection, Message holds
// the refusal and the schema fields echo the unchanged artifacts.
type Result struct {
	ConversationID string          `json:"conversationId"`
	Outcome        string          `json:"outcome"`
	Rejected       bool            `json:"rejected"`
	Message        string          `json:"message"`
	DiagramType    DiagramType     `json:"diagramType"`
	ErdSchema      json.RawMessage `json:"erdSchema,omitempty"`
	Schema         json.RawMessage `json:"schema,omitempty"`
	DDL            string          `json:"ddl,omitempty"`
	RunID          string          `json:"runId,omitempty"`
}

// HandleMessage validates, classifies, evaluates, and applies one user
// message. Generation collaborators are invoked only after a non-reject
// decision.
func (s *Service) HandleMessage(ctx context.Context, opts HandleOpts) (*Result, error) {
	if opts.ConversationID == "" {
		return nil, fmt.Errorf("conversation: conversation id is required")
	}
	if opts.OwnerID == "" {
		return nil, fmt.Errorf("conversation: owner id is required")
	}

	conv, err := s.loadOrCreate(opts.ConversationID, opts.OwnerID)
	if err != nil {
		return nil, err
	}

	ev := opts.Event
	if ev == nil {
		ev, err = s.classifier.Classify(ctx, ClassifyRequest{
			ConversationID: conv.ID,
			Content:        opts.Content,
		})
		if err != nil {
			return nil, fmt.Errorf("conversation: classify: %w", err)
		}
	}

	dec := Evaluate(stateOf(conv), *ev)
	switch dec.Outcome {
	case OutcomeReject:
		return s.reject(conv, opts.Content, ev, dec)
	case OutcomeAnswer:
		return s.answer(ctx, conv, opts.Content, ev)
	case OutcomeConvert:
		return s.convert(ctx, conv, opts.Content, ev)
	default:
		return s.generate(ctx, conv, opts.Content, ev, dec.Target)
	}
}

// Get returns the conversation with its full message history, enforcing
// ownership.
func (s *Service) Get(conversationID, ownerID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	}).First(&conv, "id = ?", conversationID).Error
	if err != nil {
		return nil, fmt.Errorf("conversation: load %s: %w", conversationID, err)
	}
	if conv.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return &conv, nil
}

// loadOrCreate fetches the conversation, creating it lazily on the first
// message. Ownership is checked before anything else happens.
func (s *Service) loadOrCreate(conversationID, ownerID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.First(&conv, "id = ?", conversationID).Error
	if err == nil {
		if conv.OwnerID != ownerID {
			return nil, ErrNotOwner
		}
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("conversation: load %s: %w", conversationID, err)
	}

	conv = models.Conversation{
		ID:          conversationID,
		OwnerID:     ownerID,
		DiagramType: models.DiagramNone,
	}
	if err := s.db.Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("conversation: create %s: %w", conversationID, err)
	}
	return &conv, nil
}

// stateOf derives the tracker state from the stored conversation.
func stateOf(conv *models.Conversation) State {
	return State{
		DiagramType: DiagramType(conv.DiagramType),
		HasErd:      conv.HasErd(),
		HasPhysical: conv.HasPhysical(),
	}
}

// reject appends the user message and the refusal to the history and
// changes nothing else.
func (s *Service) reject(conv *models.Conversation, content string, ev *ClassifiedIntent, dec Decision) (*Result, error) {
	assistant := models.Message{Content: dec.RejectMessage}
	if err := s.persistTurn(conv, ev, content, assistant, nil); err != nil {
		return nil, err
	}
	res := s.resultFor(conv, OutcomeReject)
	res.Rejected = true
	res.Message = dec.RejectMessage
	return res, nil
}

// answer handles side questions: a reply is generated but schema state is
// untouched.
func (s *Service) answer(ctx context.Context, conv *models.Conversation, content string, ev *ClassifiedIntent) (*Result, error) {
	reply, err := s.responder.Answer(ctx, AnswerRequest{ConversationID: conv.ID, Content: content})
	if err != nil {
		return nil, fmt.Errorf("conversation: answer: %w", err)
	}
	assistant := models.Message{Content: reply}
	if err := s.persistTurn(conv, ev, content, assistant, func(c *models.Conversation) {
		captureDomain(c, ev)
	}); err != nil {
		return nil, err
	}
	res := s.resultFor(conv, OutcomeAnswer)
	res.Message = reply
	return res, nil
}

// convert promotes the existing ERD to a physical schema via the
// conversion collaborator.
func (s *Service) convert(ctx context.Context, conv *models.Conversation, content string, ev *ClassifiedIntent) (*Result, error) {
	out, err := s.converter.Convert(ctx, ConvertRequest{
		ConversationID: conv.ID,
		ErdSchema:      json.RawMessage(conv.ErdSchema),
		Content:        content,
		Domain:         conv.Domain,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: convert: %w", err)
	}

	assistant := models.Message{
		Content:        out.Reply,
		SchemaSnapshot: []byte(out.Schema),
		DDLSnapshot:    out.DDL,
		RunID:          out.RunID,
	}
	if err := s.persistTurn(conv, ev, content, assistant, func(c *models.Conversation) {
		captureDomain(c, ev)
		c.PhysicalSchema = []byte(out.Schema)
		c.DDL = out.DDL
		c.DiagramType = models.DiagramPhysical
	}); err != nil {
		return nil, err
	}
	res := s.resultFor(conv, OutcomeConvert)
	res.Message = out.Reply
	res.RunID = out.RunID
	return res, nil
}

// generate delegates to the generation collaborator and persists the
// resulting artifact under the target diagram type.
func (s *Service) generate(ctx context.Context, conv *models.Conversation, content string, ev *ClassifiedIntent, target DiagramType) (*Result, error) {
	req := GenerateRequest{
		ConversationID: conv.ID,
		Content:        content,
		Target:         target,
		Modify:         ev.SchemaIntent == SchemaIntentModify,
		Domain:         conv.Domain,
	}
	if target == DiagramERD {
		req.CurrentSchema = json.RawMessage(conv.ErdSchema)
	} else {
		req.CurrentSchema = json.RawMessage(conv.PhysicalSchema)
	}

	out, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("conversation: generate: %w", err)
	}

	assistant := models.Message{
		Content:        out.Reply,
		SchemaSnapshot: []byte(out.Schema),
		DDLSnapshot:    out.DDL,
		RunID:          out.RunID,
	}
	if err := s.persistTurn(conv, ev, content, assistant, func(c *models.Conversation) {
		captureDomain(c, ev)
		if target == DiagramERD {
			c.ErdSchema = []byte(out.Schema)
			c.DiagramType = models.DiagramERD
		} else {
			c.PhysicalSchema = []byte(out.Schema)
			c.DDL = out.DDL
			c.DiagramType = models.DiagramPhysical
		}
	}); err != nil {
		return nil, err
	}
	res := s.resultFor(conv, OutcomeGenerate)
	res.Message = out.Reply
	res.RunID = out.RunID
	return res, nil
}

// persistTurn appends the user/assistant message pair and applies the state
// mutation in one transaction, keeping history and state in step. A nil
// apply means a rejected turn: only the messages are written and the
// conversation row itself stays untouched.
func (s *Service) persistTurn(conv *models.Conversation, ev *ClassifiedIntent, userContent string, assistant models.Message, apply func(*models.Conversation)) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		user := models.Message{
			ConversationID: conv.ID,
			Role:           "user",
			Content:        userContent,
			Intent:         intentLabel(ev),
			CreatedAt:      now,
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("append user message: %w", err)
		}

		assistant.ConversationID = conv.ID
		assistant.Role = "assistant"
		assistant.CreatedAt = now
		if err := tx.Create(&assistant).Error; err != nil {
			return fmt.Errorf("append assistant message: %w", err)
		}

		if apply == nil {
			return nil
		}
		apply(conv)
		conv.LastMessageAt = now
		if err := tx.Save(conv).Error; err != nil {
			return fmt.Errorf("save conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("conversation: persist turn for %s: %w", conv.ID, err)
	}
	return nil
}

// captureDomain writes the domain exactly once, on the first confidently
// classified event. Already-set domains are never overwritten.
func captureDomain(conv *models.Conversation, ev *ClassifiedIntent) {
	if conv.Domain != "" {
		return
	}
	if ev.Domain == "" || ev.DomainConfidence < DomainConfidenceFloor {
		return
	}
	conv.Domain = ev.Domain
	conv.DomainConfidence = ev.DomainConfidence
}

// intentLabel renders the classified intent for the message log.
func intentLabel(ev *ClassifiedIntent) string {
	if ev.SchemaIntent == SchemaIntentNone {
		return string(ev.Intent)
	}
	return string(ev.Intent) + "/" + string(ev.SchemaIntent)
}

// resultFor snapshots the conversation's current artifacts into a Result.
func (s *Service) resultFor(conv *models.Conversation, outcome Outcome) *Result {
	return &Result{
		ConversationID: conv.ID,
		Outcome:        outcome.String(),
		DiagramType:    DiagramType(conv.DiagramType),
		ErdSchema:      json.RawMessage(conv.ErdSchema),
		Schema:         json.RawMessage(conv.PhysicalSchema),
		DDL:            conv.DDL,
	}
}
