package firestore

import (
	"strings"
	"time"

	"codestash/projects"
)

// Wire field names of a project document.
const (
	fieldUserID        = "userId"
	fieldProjectName   = "projectName"
	fieldWorkspacePath = "workspacePath"
	fieldFiles         = "files"
)

// value is the subset of the Firestore value union this collection uses.
type value struct {
	StringValue *string     `json:"stringValue,omitempty"`
	ArrayValue  *arrayValue `json:"arrayValue,omitempty"`
}

type arrayValue struct {
	Values []value `json:"values,omitempty"`
}

// document is a Firestore REST document. CreateTime/UpdateTime are assigned
// by the store and only ever read.
type document struct {
	Name       string           `json:"name,omitempty"`
	Fields     map[string]value `json:"fields,omitempty"`
	CreateTime *time.Time       `json:"createTime,omitempty"`
	UpdateTime *time.Time       `json:"updateTime,omitempty"`
}

func stringValue(s string) value {
	return value{StringValue: &s}
}

func stringsValue(items []string) value {
	values := make([]value, 0, len(items))
	for _, item := range items {
		values = append(values, stringValue(item))
	}
	return value{ArrayValue: &arrayValue{Values: values}}
}

func encodeProject(p projects.Project) map[string]value {
	return map[string]value{
		fieldUserID:        stringValue(p.OwnerID),
		fieldProjectName:   stringValue(p.Name),
		fieldWorkspacePath: stringValue(p.WorkspacePath),
		fieldFiles:         stringsValue(p.Files),
	}
}

// encodeUpdate returns the changed fields plus the update mask paths, so a
// partial mutation never clobbers fields it does not name.
func encodeUpdate(u projects.Update) (map[string]value, []string) {
	fields := map[string]value{}
	var mask []string
	if u.Name != nil {
		fields[fieldProjectName] = stringValue(*u.Name)
		mask = append(mask, fieldProjectName)
	}
	if u.WorkspacePath != nil {
		fields[fieldWorkspacePath] = stringValue(*u.WorkspacePath)
		mask = append(mask, fieldWorkspacePath)
	}
	if u.Files != nil {
		fields[fieldFiles] = stringsValue(*u.Files)
		mask = append(mask, fieldFiles)
	}
	return fields, mask
}

func decodeProject(doc document) projects.Project {
	p := projects.Project{
		ID: docID(doc.Name),
	}
	if v, ok := doc.Fields[fieldUserID]; ok && v.StringValue != nil {
		p.OwnerID = *v.StringValue
	}
	if v, ok := doc.Fields[fieldProjectName]; ok && v.StringValue != nil {
		p.Name = *v.StringValue
	}
	if v, ok := doc.Fields[fieldWorkspacePath]; ok && v.StringValue != nil {
		p.WorkspacePath = *v.StringValue
	}
	if v, ok := doc.Fields[fieldFiles]; ok && v.ArrayValue != nil {
		for _, item := range v.ArrayValue.Values {
			if item.StringValue != nil {
				p.Files = append(p.Files, *item.StringValue)
			}
		}
	}
	if doc.CreateTime != nil {
		p.CreatedAt = *doc.CreateTime
	}
	if doc.UpdateTime != nil {
		p.UpdatedAt = *doc.UpdateTime
	}
	return p
}

// docID extracts the final path segment of a full document resource name.
func docID(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
