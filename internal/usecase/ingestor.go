package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/mapping"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/internal/storage"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
)

// IngestContext carries what a batch of leads needs to become records.
type IngestContext struct {
	RecordType string
	Setting    string
	PageID     string
	FormID     string
	Mappings   []model.FieldMapping
	// Page is handed to the dispatcher for every created record.
	Page *model.PageConfig
}

// IngestResult counts what happened to each lead of a batch.
type IngestResult struct {
	Created    int `json:"created"`
	Existing   int `json:"existing"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
	Invalid    int `json:"invalid"`
	Dispatched int `json:"dispatched"`
}

// Add accumulates other into r.
func (r *IngestResult) Add(other IngestResult) {
	r.Created += other.Created
	r.Existing += other.Existing
	r.Duplicates += other.Duplicates
	r.Failed += other.Failed
	r.Invalid += other.Invalid
	r.Dispatched += other.Dispatched
}

// LeadIngestor turns raw leads into CRM records, at most one per meta lead id.
type LeadIngestor struct {
	store         storage.RecordStore
	dispatcher    Dispatcher
	defaultStatus string
}

// NewLeadIngestor creates a LeadIngestor. dispatcher may be nil to skip outbound sync.
func NewLeadIngestor(store storage.RecordStore, dispatcher Dispatcher, defaultStatus string) *LeadIngestor {
	if defaultStatus == "" {
		defaultStatus = model.RecordStatusLead
	}
	return &LeadIngestor{store: store, dispatcher: dispatcher, defaultStatus: defaultStatus}
}

// Ingest processes leads in order. A failing lead is logged and counted and
// never stops the batch.
func (i *LeadIngestor) Ingest(ctx context.Context, leads []model.RawLead, ic IngestContext) IngestResult {
	var result IngestResult
	for _, lead := range leads {
		switch i.ingestOne(ctx, lead, ic) {
		case outcomeCreated:
			result.Created++
		case outcomeDispatched:
			result.Created++
			result.Dispatched++
		case outcomeExisting:
			result.Existing++
		case outcomeDuplicate:
			result.Duplicates++
		case outcomeInvalid:
			result.Invalid++
		default:
			result.Failed++
		}
	}

	observer.AddLeads("created", result.Created)
	observer.AddLeads("existing", result.Existing)
	observer.AddLeads("duplicate", result.Duplicates)
	observer.AddLeads("failed", result.Failed)
	observer.AddLeads("invalid", result.Invalid)
	return result
}

type leadOutcome int

const (
	outcomeFailed leadOutcome = iota
	outcomeCreated
	outcomeDispatched
	outcomeExisting
	outcomeDuplicate
	outcomeInvalid
)

func (i *LeadIngestor) ingestOne(ctx context.Context, lead model.RawLead, ic IngestContext) leadOutcome {
	log := logger.FromContext(ctx)
	if lead.ID == "" {
		log.Warn("Skipping lead without id", zap.String("form_id", ic.FormID))
		return outcomeInvalid
	}
	log = log.With(zap.String("meta_lead_id", lead.ID))

	exists, err := i.store.Exists(ctx, ic.RecordType, lead.ID)
	if err != nil {
		log.Error("Failed to check for an existing record", zap.Error(err))
		return outcomeFailed
	}
	if exists {
		log.Debug("Record already exists for lead")
		return outcomeExisting
	}

	fields := mapping.ApplyMapping(lead, ic.Mappings)
	record := i.newRecord(lead, ic)
	if err := record.ApplyFields(fields); err != nil {
		log.Error("Failed to apply mapped fields", zap.Any("field_mapping", fields), zap.Error(err))
		return outcomeFailed
	}

	if err := i.store.Create(ctx, record); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			log.Info("Duplicate Lead Prevented", zap.String("record_type", ic.RecordType))
			return outcomeDuplicate
		}
		log.Error("Failed to create record from lead",
			zap.Any("field_mapping", fields),
			zap.Error(err),
			zap.Stack("stack"))
		return outcomeFailed
	}
	log.Info("Record created from lead", zap.Uint("record_id", record.ID))

	if i.dispatch(ctx, record, ic.Page) {
		return outcomeDispatched
	}
	return outcomeCreated
}

func (i *LeadIngestor) newRecord(lead model.RawLead, ic IngestContext) *model.CrmRecord {
	formID := lead.FormID
	if formID == "" {
		formID = ic.FormID
	}
	return &model.CrmRecord{
		RecordType:    ic.RecordType,
		MetaLeadID:    lead.ID,
		Status:        i.defaultStatus,
		PageID:        ic.PageID,
		FormID:        formID,
		SyncSetting:   ic.Setting,
		LeadJSON:      datatypes.JSON(lead.JSON()),
		LeadCreatedAt: lead.CreatedAt(),
	}
}

// dispatch runs after the record is committed. Nothing it does can undo the record.
func (i *LeadIngestor) dispatch(ctx context.Context, record *model.CrmRecord, page *model.PageConfig) (sent bool) {
	if i.dispatcher == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("[panic] Recovered from panic during event dispatch",
				zap.String("meta_lead_id", record.MetaLeadID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			sent = false
		}
	}()

	result := i.dispatcher.Dispatch(ctx, record, page)
	if !result.OK() {
		logger.FromContext(ctx).Warn("Event for new record was not sent",
			zap.String("meta_lead_id", record.MetaLeadID),
			zap.String("dispatch_status", string(result.Status)),
			zap.String("error_kind", result.Error),
			zap.String("message", result.Message))
		return false
	}
	return true
}
