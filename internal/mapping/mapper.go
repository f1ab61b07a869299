// Package mapping turns lead form questions into CRM field mappings and lead
// answers into CRM field values.
package mapping

import (
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

// Mapper holds the question type lookup table. The PHONE target is
// configurable because deployments disagree on mobile_no vs phone.
type Mapper struct {
	byType map[string]model.CrmField
}

// New builds a Mapper sending PHONE questions to phoneField.
// An empty phoneField falls back to mobile_no.
func New(phoneField string) *Mapper {
	phone := model.FieldMobileNo
	if phoneField != "" {
		phone = model.CrmField(phoneField)
	}
	return &Mapper{byType: map[string]model.CrmField{
		model.QuestionTypeEmail:    model.FieldEmail,
		model.QuestionTypeFullName: model.FieldFirstName,
		model.QuestionTypePhone:    phone,
	}}
}

// FieldFor returns the CRM field a question lands in.
func (m *Mapper) FieldFor(q model.Question) model.CrmField {
	if f, ok := m.byType[q.Type]; ok {
		return f
	}
	return model.CrmField(q.Key)
}

// DeriveMappings builds one mapping per distinct question key, in question order.
// A key seen twice keeps its first mapping.
func (m *Mapper) DeriveMappings(questions []model.Question) []model.FieldMapping {
	seen := make(map[string]struct{}, len(questions))
	out := make([]model.FieldMapping, 0, len(questions))
	for _, q := range questions {
		if _, dup := seen[q.Key]; dup {
			continue
		}
		seen[q.Key] = struct{}{}
		out = append(out, model.FieldMapping{
			LeadField:      string(m.FieldFor(q)),
			FormField:      q.Key,
			FormFieldLabel: q.Label,
			FormFieldType:  q.Type,
		})
	}
	return out
}

// ApplyMapping maps every answered question that has a mapping. The first
// mapping whose form field matches wins. Answers with no values map to nil.
func ApplyMapping(lead model.RawLead, mappings []model.FieldMapping) model.MappedFields {
	index := make(map[string]model.CrmField, len(mappings))
	for _, mp := range mappings {
		if _, ok := index[mp.FormField]; !ok {
			index[mp.FormField] = model.CrmField(mp.LeadField)
		}
	}

	out := make(model.MappedFields, len(lead.FieldData))
	for _, fd := range lead.FieldData {
		field, ok := index[fd.Name]
		if !ok {
			continue
		}
		if len(fd.Values) == 0 {
			out[field] = nil
			continue
		}
		v := fd.Values[0]
		out[field] = &v
	}
	return out
}
