package clickup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

// apiField is a ClickUp custom field definition.
type apiField struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	TypeConfig struct {
		Options []apiOption `json:"options"`
	} `json:"type_config"`
}

type apiOption struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	OrderIndex json.Number `json:"orderindex"`
}

func (f apiField) toDomain() domain.FieldDescriptor {
	d := domain.FieldDescriptor{
		ID:           f.ID,
		Name:         f.Name,
		Type:         semanticType(f.Type),
		ProviderType: f.Type,
	}
	// Only drop-downs take a single option ID; labels take arrays and are not enumerated here.
	if f.Type == "drop_down" {
		for i, opt := range f.TypeConfig.Options {
			order, err := opt.OrderIndex.Int64()
			if err != nil {
				order = int64(i)
			}
			d.Options = append(d.Options, domain.FieldOption{ID: opt.ID, Name: opt.Name, OrderIndex: int(order)})
		}
	}
	return d
}

// semanticType maps ClickUp field types onto the engine's four kinds.
func semanticType(providerType string) domain.FieldType {
	switch providerType {
	case "short_text", "text", "email", "url", "phone":
		return domain.FieldShortText
	case "number", "currency":
		return domain.FieldNumber
	case "date":
		return domain.FieldDate
	default:
		return domain.FieldOther
	}
}

// providerType maps a creatable semantic type onto a ClickUp field type.
func providerType(t domain.FieldType) (string, bool) {
	switch t {
	case domain.FieldShortText:
		return "short_text", true
	case domain.FieldNumber:
		return "number", true
	case domain.FieldDate:
		return "date", true
	default:
		return "", false
	}
}

// ListFields returns the custom fields of a list in ClickUp's order.
func (c *Client) ListFields(ctx context.Context, listID string) ([]domain.FieldDescriptor, error) {
	var out struct {
		Fields []apiField `json:"fields"`
	}
	err := c.do(ctx, request{
		op:     "list fields of " + listID,
		method: http.MethodGet,
		path:   "list/" + listID + "/field",
		out:    &out,
	})
	if err != nil {
		return nil, err
	}

	fields := make([]domain.FieldDescriptor, 0, len(out.Fields))
	for _, f := range out.Fields {
		fields = append(fields, f.toDomain())
	}
	return fields, nil
}

// CreateField creates a custom field on a list.
func (c *Client) CreateField(ctx context.Context, listID, name string, fieldType domain.FieldType) (*domain.FieldDescriptor, error) {
	kind, ok := providerType(fieldType)
	if !ok {
		return nil, fmt.Errorf("create field %q: %w: type %s cannot be created", name, domain.ErrInvalidInput, fieldType)
	}

	var raw json.RawMessage
	err := c.do(ctx, request{
		op:     "create field " + strconv.Quote(name),
		method: http.MethodPost,
		path:   "list/" + listID + "/field",
		body:   map[string]string{"name": name, "type": kind},
		out:    &raw,
		refine: func(status int, apiErr *APIError) error {
			if status == http.StatusConflict ||
				(status == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "already exist")) {
				return domain.ErrFieldCreationConflict
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	// The field comes back either bare or wrapped in {"field": ...}.
	var wrapped struct {
		Field *apiField `json:"field"`
	}
	var created apiField
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Field != nil {
		created = *wrapped.Field
	} else if err := json.Unmarshal(raw, &created); err != nil {
		return nil, fmt.Errorf("create field %q: decode response: %w", name, err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("create field %q: %w: response carried no field id", name, domain.ErrRemoteUnavailable)
	}
	if created.Name == "" {
		created.Name = name
	}
	if created.Type == "" {
		created.Type = kind
	}

	field := created.toDomain()
	return &field, nil
}

// SetFieldValue writes one custom field value on a task.
func (c *Client) SetFieldValue(ctx context.Context, taskID, fieldID string, value domain.FieldWrite) error {
	body := map[string]any{"value": value.Value}
	if value.DateHasTime {
		body["value_options"] = map[string]bool{"time": true}
	}

	return c.do(ctx, request{
		op:     "set field " + fieldID + " on " + taskID,
		method: http.MethodPost,
		path:   "task/" + taskID + "/field/" + fieldID,
		body:   body,
		refine: func(status int, _ *APIError) error {
			if status == http.StatusBadRequest {
				return domain.ErrValueRejected
			}
			return nil
		},
	})
}
